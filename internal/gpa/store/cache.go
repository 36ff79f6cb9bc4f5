package store

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"gpavault/internal/gpa/models"
)

// Backend is the full contract every store implements.
type Backend interface {
	Get(ctx context.Context, registrationNumber string) (*models.Record, error)
	MergeGpas(ctx context.Context, registrationNumber string, gpas map[string]float64) error
	ReplaceGpas(ctx context.Context, registrationNumber string, gpas map[string]float64) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Cached is a read-through cache in front of a Backend. Entries are evicted
// on every write through this instance; writes made by other processes become
// visible once the TTL expires. A read that overlapped a write to the same key
// is returned but not cached.
type Cached struct {
	Backend
	cache *gocache.Cache

	mu          sync.Mutex
	generations map[string]uint64
}

// NewCached wraps backend with a cache holding records for ttl.
func NewCached(backend Backend, ttl time.Duration) *Cached {
	return &Cached{
		Backend:     backend,
		cache:       gocache.New(ttl, 2*ttl),
		generations: make(map[string]uint64),
	}
}

func (c *Cached) Get(ctx context.Context, registrationNumber string) (*models.Record, error) {
	if v, ok := c.cache.Get(registrationNumber); ok {
		return cloneRecord(v.(*models.Record)), nil
	}
	generation := c.generation(registrationNumber)
	record, err := c.Backend.Get(ctx, registrationNumber)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	if c.generations[registrationNumber] == generation {
		c.cache.SetDefault(registrationNumber, cloneRecord(record))
	}
	c.mu.Unlock()
	return record, nil
}

func (c *Cached) MergeGpas(ctx context.Context, registrationNumber string, gpas map[string]float64) error {
	defer c.invalidate(registrationNumber)
	return c.Backend.MergeGpas(ctx, registrationNumber, gpas)
}

func (c *Cached) ReplaceGpas(ctx context.Context, registrationNumber string, gpas map[string]float64) error {
	defer c.invalidate(registrationNumber)
	return c.Backend.ReplaceGpas(ctx, registrationNumber, gpas)
}

func (c *Cached) generation(registrationNumber string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[registrationNumber]
}

func (c *Cached) invalidate(registrationNumber string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[registrationNumber]++
	c.cache.Delete(registrationNumber)
}
