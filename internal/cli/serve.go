package cli

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/guillermoBallester/querytrail/internal/adapter/mcp"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the query log to MCP clients",
		Long: `Expose the query log as read-only MCP tools: query_history, query_stats
and get_record.

The stdio transport (default) speaks MCP over stdin/stdout. The http
transport serves streamable HTTP on /mcp behind a bearer token, with an
unauthenticated /health probe.

Examples:
  querytrail serve --store ./querytrail.db
  querytrail serve --transport http --http-addr :8080 --http-bearer-token s3cret`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, rootOpts)
		},
	}
}

func runServe(cmd *cobra.Command, opts *RootOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := newApp(ctx, opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	a.logger.Info("starting querytrail",
		slog.String("version", opts.Version),
		slog.String("log_level", a.cfg.LogLevel.String()),
		slog.String("store", a.cfg.StorePath),
		slog.String("transport", a.cfg.Transport),
		slog.Bool("allow_raw_filter", a.cfg.AllowRawFilter),
	)

	s := mcp.NewServer(opts.Version, a.history(),
		mcp.ToolOptions{AllowRawFilter: a.cfg.AllowRawFilter},
		a.logger, a.tracer, a.inst,
	)

	if a.cfg.Transport == "http" {
		return serveHTTP(ctx, s, a)
	}

	a.logger.Info("serving MCP over stdio")
	stdio := mcpserver.NewStdioServer(s)
	if err := stdio.Listen(ctx, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio server: %w", err)
	}

	a.logger.Info("shutdown complete")
	return nil
}

func serveHTTP(ctx context.Context, s *mcpserver.MCPServer, a *app) error {
	mux := http.NewServeMux()
	mux.Handle("/mcp", bearerAuthMiddleware(mcpserver.NewStreamableHTTPServer(s), a.cfg.HTTPBearerToken))
	mux.HandleFunc("/health", healthHandler)

	var handler http.Handler = recoveryMiddleware(mux, a.logger)
	if a.cfg.OTelEnabled {
		handler = otelhttp.NewHandler(handler, "querytrail.http")
	}

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("serving MCP over HTTP", slog.String("addr", a.cfg.HTTPAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
	}

	a.logger.Info("shutdown complete")
	return nil
}

// bearerAuthMiddleware rejects requests without the exact bearer token.
func bearerAuthMiddleware(next http.Handler, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="querytrail"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recoveryMiddleware turns a handler panic into a 500.
func recoveryMiddleware(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.ErrorContext(r.Context(), "panic in http handler",
					slog.Any("panic", rec),
					slog.String("http.route", r.URL.Path),
				)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
