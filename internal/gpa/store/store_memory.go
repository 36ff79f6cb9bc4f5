package store

import (
	"context"
	"maps"
	"sync"

	"gpavault/internal/gpa/models"
	"gpavault/pkg/platform/sentinel"
	"gpavault/pkg/requestcontext"
)

// InMemory keeps records in a map guarded by a RWMutex. Merge and replace run
// under the write lock, so concurrent upserts to one key never lose updates.
type InMemory struct {
	mu      sync.RWMutex
	records map[string]*models.Record
}

// NewInMemory constructs an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{records: make(map[string]*models.Record)}
}

func (s *InMemory) Get(_ context.Context, registrationNumber string) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[registrationNumber]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneRecord(record), nil
}

func (s *InMemory) MergeGpas(ctx context.Context, registrationNumber string, gpas map[string]float64) error {
	return s.write(ctx, registrationNumber, func(existing map[string]float64) map[string]float64 {
		return models.MergeGpas(existing, gpas)
	})
}

func (s *InMemory) ReplaceGpas(ctx context.Context, registrationNumber string, gpas map[string]float64) error {
	return s.write(ctx, registrationNumber, func(map[string]float64) map[string]float64 {
		return maps.Clone(gpas)
	})
}

func (s *InMemory) write(ctx context.Context, registrationNumber string, apply func(map[string]float64) map[string]float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[registrationNumber]
	if !ok {
		record = &models.Record{RegistrationNumber: registrationNumber, CreatedAt: now}
		s.records[registrationNumber] = record
	}
	record.Gpas = apply(record.Gpas)
	if record.Gpas == nil {
		record.Gpas = map[string]float64{}
	}
	record.UpdatedAt = now
	return nil
}

// Count returns the number of stored records.
func (s *InMemory) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Ping always succeeds.
func (s *InMemory) Ping(context.Context) error {
	return nil
}

// Close is a no-op.
func (s *InMemory) Close(context.Context) error {
	return nil
}

func cloneRecord(r *models.Record) *models.Record {
	out := *r
	out.Gpas = maps.Clone(r.Gpas)
	if out.Gpas == nil {
		out.Gpas = map[string]float64{}
	}
	return &out
}
