package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rendis/calltree/internal/logging"
	"github.com/rendis/calltree/pkg/mcp"
)

func main() {
	cfg := loadConfig()
	logger := newLogger(cfg)

	srv, err := mcp.NewCallTreeServer(mcp.ServerDeps{Logger: logger})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start calltree: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("calltree server starting", "transport", "stdio", "log_level", cfg.LogLevel)
	if err := srv.Serve(ctx); err != nil && ctx.Err() == nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("calltree server stopped")
}

// newLogger builds the process logger. Stdout is the MCP transport, so
// logs go to stderr.
func newLogger(cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}

	var inner slog.Handler
	if cfg.LogFormat == "json" {
		inner = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		inner = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(logging.NewCorrelationHandler(inner))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
