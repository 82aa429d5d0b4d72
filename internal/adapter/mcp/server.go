package mcp

import (
	"log/slog"

	"github.com/guillermoBallester/querytrail/internal/core/port"
	"github.com/guillermoBallester/querytrail/internal/core/service"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/trace"
)

// NewServer creates an MCPServer exposing the read-only query log tools,
// with logging, tracing and metrics hooks.
func NewServer(version string, history *service.HistoryService, opts ToolOptions, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *server.MCPServer {
	s := server.NewMCPServer(
		serverName,
		version,
		server.WithToolCapabilities(false),
		server.WithHooks(ToolCallHooks(logger, tracer, inst)),
	)

	RegisterTools(s, history, opts)

	return s
}
