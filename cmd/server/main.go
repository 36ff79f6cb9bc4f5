package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gpavault/internal/app"
	"gpavault/internal/platform/config"
	"gpavault/internal/platform/httpserver"
	"gpavault/internal/platform/logger"
)

const shutdownTimeout = 10 * time.Second

// main loads configuration, wires the app, and runs the HTTP server and the
// audit worker until SIGINT or SIGTERM.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "gpavault:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Log)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log, app.WithAsyncAudit())
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		_ = a.Close(context.Background())
		return fmt.Errorf("listen on %s: %w", cfg.Server.Addr, err)
	}
	srv := httpserver.New(cfg.Server.Addr, a.Handler())
	runErr := a.Serve(ctx, srv, ln, shutdownTimeout)

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Close(closeCtx); err != nil {
		log.Error("failed to release resources", "error", err)
	}
	return runErr
}
