// Package app assembles the GPA service from configuration. Every deployment
// (long-running server, serverless function, CLI) builds through here so
// they share one set of routes and one store handle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twmb/franz-go/pkg/kgo"

	"gpavault/internal/audit"
	"gpavault/internal/gpa/handler"
	gpametrics "gpavault/internal/gpa/metrics"
	"gpavault/internal/gpa/service"
	"gpavault/internal/gpa/store"
	"gpavault/internal/platform/config"
	"gpavault/internal/platform/kafka"
	"gpavault/internal/platform/metrics"
	"gpavault/internal/platform/middleware"
	"gpavault/pkg/platform/httputil"
	"gpavault/pkg/platform/middleware/metadata"
	"gpavault/pkg/platform/middleware/requesttime"
)

// App is a fully wired GPA service.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	store    store.Backend
	service  *service.Service
	router   chi.Router

	auditQueue  *audit.Queue
	auditWorker *audit.Worker
	kafka       *kgo.Client
}

type options struct {
	store      store.Backend
	asyncAudit bool
}

type Option func(*options)

// WithStore injects an already opened backend instead of connecting the
// configured one.
func WithStore(backend store.Backend) Option {
	return func(o *options) {
		o.store = backend
	}
}

// WithAsyncAudit buffers audit events for a background worker started by
// Serve or RunBackground. Without it events are delivered inline, which suits serverless
// handlers that cannot keep goroutines alive between invocations.
func WithAsyncAudit() Option {
	return func(o *options) {
		o.asyncAudit = true
	}
}

// New connects the store and audit publisher and builds the router.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	a := &App{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a.store = o.store
	if a.store == nil {
		backend, err := OpenStore(ctx, cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("open %s store: %w", cfg.Store, err)
		}
		a.store = backend
	}

	publisher, err := a.buildAuditPublisher(ctx, o.asyncAudit)
	if err != nil {
		_ = a.store.Close(context.Background())
		return nil, err
	}

	gpaMetrics := gpametrics.New(a.registry)
	svcOpts := []service.Option{
		service.WithLogger(logger),
		service.WithMetrics(gpaMetrics),
		service.WithPolicy(cfg.UpsertPolicy()),
	}
	if publisher != nil {
		svcOpts = append(svcOpts, service.WithAuditPublisher(publisher))
	}
	a.service = service.New(a.store, svcOpts...)
	a.router = a.buildRouter()

	logger.InfoContext(ctx, "gpa service ready",
		"store", cfg.Store,
		"upsert_policy", cfg.UpsertPolicy(),
		"audit_publisher", cfg.Audit.Publisher,
		"cache_ttl", cfg.CacheTTL,
		"route_prefix", cfg.Server.RoutePrefix,
	)
	return a, nil
}

func (a *App) buildAuditPublisher(ctx context.Context, async bool) (service.AuditPublisher, error) {
	var sink audit.Sink
	switch a.cfg.Audit.Publisher {
	case config.AuditNone:
		return nil, nil
	case config.AuditKafka:
		client, err := kafka.New(a.cfg.Kafka)
		if err != nil {
			return nil, err
		}
		if err := kafka.EnsureTopic(ctx, client, a.cfg.Kafka.Topic, -1, -1); err != nil {
			// Brokers with auto-create or restricted ACLs still accept produce.
			a.logger.WarnContext(ctx, "could not ensure audit topic", "topic", a.cfg.Kafka.Topic, "error", err)
		}
		a.kafka = client
		sink = audit.NewKafkaSink(client, a.cfg.Kafka.Topic)
	default:
		sink = audit.NewLogSink(a.logger)
	}

	if !async {
		return audit.NewPublisher(sink), nil
	}
	a.auditQueue = audit.NewQueue(a.cfg.Audit.QueueSize)
	a.auditWorker = audit.NewWorker(sink, a.auditQueue, a.logger)
	return a.auditQueue, nil
}

func (a *App) buildRouter() chi.Router {
	httpMetrics := metrics.NewHTTP(a.registry)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(a.logger))
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(middleware.AccessLog(a.logger))
	r.Use(middleware.Latency(httpMetrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))
	r.Use(middleware.Timeout(a.cfg.Server.RequestTimeout))

	r.Get("/health", a.handleHealth)
	if a.cfg.Server.MetricsEnabled {
		r.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}))
	}

	gpaHandler := handler.New(a.service, a.logger)
	if prefix := a.cfg.Server.RoutePrefix; prefix != "" && prefix != "/" {
		r.Route(prefix, gpaHandler.Register)
	} else {
		gpaHandler.Register(r)
	}
	return r
}

type healthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := a.store.Ping(r.Context()); err != nil {
		a.logger.WarnContext(r.Context(), "health check failed", "store", a.cfg.Store, "error", err)
		httputil.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Store: a.cfg.Store})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok", Store: a.cfg.Store})
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.router
}

// Service exposes the record service for non-HTTP callers such as the CLI.
func (a *App) Service() *service.Service {
	return a.service
}

// Registry returns the Prometheus registry all metrics are registered on.
func (a *App) Registry() *prometheus.Registry {
	return a.registry
}

// RunBackground runs the audit worker until ctx is cancelled. With inline
// audit delivery it only waits for cancellation.
func (a *App) RunBackground(ctx context.Context) error {
	if a.auditWorker == nil {
		<-ctx.Done()
		return nil
	}
	err := a.auditWorker.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases the store and the Kafka client.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.kafka != nil {
		if err := a.kafka.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush kafka: %w", err))
		}
		a.kafka.Close()
	}
	if err := a.store.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}
