package audit

import (
	"context"
	"sync"
)

// MemorySink keeps events in memory, keyed by registration number.
type MemorySink struct {
	mu     sync.RWMutex
	events map[string][]Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{events: make(map[string][]Event)}
}

func (s *MemorySink) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.RegistrationNumber] = append(s.events[event.RegistrationNumber], event)
	return nil
}

func (s *MemorySink) ListByRegistration(_ context.Context, registrationNumber string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event{}, s.events[registrationNumber]...), nil
}
