package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/guillermoBallester/querytrail/internal/core/port"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var errToolResult = errors.New("tool returned error")

// toolCall is the in-flight state of one tools/call request.
type toolCall struct {
	tool    string
	start   time.Time
	span    trace.Span
	filters []attribute.KeyValue
}

// ToolCallHooks creates MCP hooks that log every query log lookup with the
// filters it used and the number of results it returned. A nil tracer or
// inst disables spans or metrics.
func ToolCallHooks(logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *server.Hooks {
	hooks := &server.Hooks{}
	var inflight sync.Map // request id -> *toolCall

	finish := func(id any) *toolCall {
		if v, ok := inflight.LoadAndDelete(id); ok {
			return v.(*toolCall)
		}
		return &toolCall{}
	}

	hooks.AddBeforeCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest) {
		call := &toolCall{
			tool:    req.Params.Name,
			start:   time.Now(),
			filters: lookupFilters(req.GetArguments()),
		}
		if tracer != nil {
			attrs := append([]attribute.KeyValue{attribute.String("mcp.tool", call.tool)}, call.filters...)
			_, call.span = tracer.Start(ctx, "querytrail.lookup "+call.tool,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attrs...),
			)
		}
		inflight.Store(id, call)
	})

	hooks.AddAfterCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest, result any) {
		call := finish(id)
		elapsed := time.Since(call.start)

		r, _ := result.(*mcp.CallToolResult)
		failed := r != nil && r.IsError
		count, counted := resultCount(r)

		attrs := logAttrs(req.Params.Name, elapsed, call.filters)
		level := slog.LevelInfo
		if failed {
			level = slog.LevelWarn
			attrs = append(attrs, slog.String("error.message", resultText(r)))
		} else if counted {
			attrs = append(attrs, slog.Int("querytrail.result_count", count))
		}
		logger.LogAttrs(ctx, level, "query log lookup", attrs...)

		if inst != nil {
			inst.RecordToolDuration(ctx, float64(elapsed.Milliseconds()))
		}
		if call.span == nil {
			return
		}
		if failed {
			call.span.RecordError(errToolResult, trace.WithAttributes(attribute.String("error.message", resultText(r))))
			call.span.SetStatus(codes.Error, errToolResult.Error())
		} else if counted {
			call.span.SetAttributes(attribute.Int("querytrail.result_count", count))
		}
		call.span.End()
	})

	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
		req, ok := message.(*mcp.CallToolRequest)
		if !ok {
			return
		}
		call := finish(id)
		elapsed := time.Since(call.start)

		attrs := logAttrs(req.Params.Name, elapsed, call.filters)
		attrs = append(attrs, slog.String("error.message", err.Error()))
		logger.LogAttrs(ctx, slog.LevelError, "query log lookup failed", attrs...)

		if call.span != nil {
			call.span.RecordError(err)
			call.span.SetStatus(codes.Error, err.Error())
			call.span.End()
		}
	})

	return hooks
}

// lookupFilters turns the filter arguments of a tool call into attributes.
// A raw where predicate is flagged but never copied out.
func lookupFilters(args map[string]any) []attribute.KeyValue {
	var out []attribute.KeyValue
	for _, key := range []string{"range", "type", "caller", "source"} {
		if v, ok := args[key].(string); ok && v != "" {
			out = append(out, attribute.String("querytrail."+key, v))
		}
	}
	if v, ok := args["limit"].(float64); ok {
		out = append(out, attribute.Int("querytrail.limit", int(v)))
	}
	if v, ok := args["id"].(float64); ok {
		out = append(out, attribute.Int64("querytrail.record_id", int64(v)))
	}
	if w, ok := args["where"].(string); ok && w != "" {
		out = append(out, attribute.Bool("querytrail.raw_filter", true))
	}
	return out
}

func logAttrs(tool string, elapsed time.Duration, filters []attribute.KeyValue) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(filters)+4)
	attrs = append(attrs,
		slog.String("rpc.method", "tools/call"),
		slog.String("mcp.tool", tool),
		slog.Duration("duration", elapsed),
	)
	for _, kv := range filters {
		attrs = append(attrs, slog.Any(string(kv.Key), kv.Value.AsInterface()))
	}
	return attrs
}

// resultCount reports how many query records a successful result carries:
// the length of a history list, the total of a stats summary, or one record.
func resultCount(r *mcp.CallToolResult) (int, bool) {
	if r == nil || r.IsError {
		return 0, false
	}
	text := resultText(r)
	if text == "" {
		return 0, false
	}

	var list []json.RawMessage
	if err := json.Unmarshal([]byte(text), &list); err == nil {
		return len(list), true
	}
	var obj struct {
		Total *int   `json:"total"`
		ID    *int64 `json:"id"`
	}
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return 0, false
	}
	switch {
	case obj.Total != nil:
		return *obj.Total, true
	case obj.ID != nil:
		return 1, true
	}
	return 0, false
}

func resultText(r *mcp.CallToolResult) string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	switch c := r.Content[0].(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	}
	return ""
}
