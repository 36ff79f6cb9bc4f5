package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gpavault/internal/gpa/models"
	"gpavault/pkg/platform/circuit"
	"gpavault/pkg/platform/sentinel"
)

// Guarded fails fast with sentinel.ErrUnavailable while the breaker is open.
// Not-found results, conflicts and caller cancellations do not count as failures.
type Guarded struct {
	Backend
	breaker *circuit.Breaker
	logger  *slog.Logger
}

func NewGuarded(backend Backend, breaker *circuit.Breaker, logger *slog.Logger) *Guarded {
	return &Guarded{Backend: backend, breaker: breaker, logger: logger}
}

func (g *Guarded) Get(ctx context.Context, registrationNumber string) (*models.Record, error) {
	if err := g.admit(); err != nil {
		return nil, err
	}
	record, err := g.Backend.Get(ctx, registrationNumber)
	g.record(ctx, err)
	return record, err
}

func (g *Guarded) MergeGpas(ctx context.Context, registrationNumber string, gpas map[string]float64) error {
	if err := g.admit(); err != nil {
		return err
	}
	err := g.Backend.MergeGpas(ctx, registrationNumber, gpas)
	g.record(ctx, err)
	return err
}

func (g *Guarded) ReplaceGpas(ctx context.Context, registrationNumber string, gpas map[string]float64) error {
	if err := g.admit(); err != nil {
		return err
	}
	err := g.Backend.ReplaceGpas(ctx, registrationNumber, gpas)
	g.record(ctx, err)
	return err
}

func (g *Guarded) admit() error {
	if !g.breaker.Allow() {
		return fmt.Errorf("%s circuit open: %w", g.breaker.Name(), sentinel.ErrUnavailable)
	}
	return nil
}

func (g *Guarded) record(ctx context.Context, err error) {
	if err == nil || errors.Is(err, sentinel.ErrNotFound) {
		if _, change := g.breaker.RecordSuccess(); change.Closed {
			g.logger.InfoContext(ctx, "store circuit closed", "breaker", g.breaker.Name())
		}
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, sentinel.ErrConflict) {
		g.breaker.Release()
		return
	}
	if _, change := g.breaker.RecordFailure(); change.Opened {
		g.logger.WarnContext(ctx, "store circuit opened", "breaker", g.breaker.Name(), "error", err)
	}
}
