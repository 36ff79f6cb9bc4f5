// Package serverless adapts the GPA app to platforms whose entry point is a
// bare http.HandlerFunc. The app is built on the first request and reused
// for the lifetime of the warm instance.
package serverless

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"gpavault/internal/app"
	"gpavault/internal/platform/config"
	"gpavault/internal/platform/logger"
	dErrors "gpavault/pkg/domain-errors"
	"gpavault/pkg/platform/httputil"
)

// DefaultRoutePrefix is used when the configuration does not set one.
const DefaultRoutePrefix = "/api"

// Loader builds the configuration. Replaced in tests.
type Loader func() (*config.Config, error)

// Handler lazily builds the app. A failed build is retried on the next
// request so a cold start during a database blip does not poison the
// instance.
type Handler struct {
	load    Loader
	options []app.Option

	mu  sync.Mutex
	app *app.App
}

func New(load Loader, opts ...app.Option) *Handler {
	return &Handler{load: load, options: opts}
}

var (
	defaultOnce    sync.Once
	defaultHandler *Handler
)

// Default returns the process-wide handler backed by config.Load.
func Default() *Handler {
	defaultOnce.Do(func() {
		defaultHandler = New(config.Load)
	})
	return defaultHandler
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a, err := h.get(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to initialise gpa service", "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "Service unavailable"))
		return
	}
	a.Handler().ServeHTTP(w, r)
}

func (h *Handler) get(ctx context.Context) (*app.App, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.app != nil {
		return h.app, nil
	}

	cfg, err := h.load()
	if err != nil {
		return nil, err
	}
	if cfg.Server.RoutePrefix == "" {
		cfg.Server.RoutePrefix = DefaultRoutePrefix
	}
	// Nothing scrapes a function instance.
	cfg.Server.MetricsEnabled = false

	log := logger.NewWithWriter(os.Stderr, cfg.Log)
	slog.SetDefault(log)

	// The request context ends with this invocation; connections must outlive it.
	a, err := app.New(context.WithoutCancel(ctx), cfg, log, h.options...)
	if err != nil {
		return nil, err
	}
	h.app = a
	return a, nil
}
