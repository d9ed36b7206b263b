package audit

import (
	"context"
	"slices"
	"sync"
)

// MemoryStorage keeps events in process memory.
type MemoryStorage struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (s *MemoryStorage) Store(_ context.Context, events ...Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

func (s *MemoryStorage) Query(_ context.Context, c Criteria) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Event
	for _, e := range slices.Backward(s.events) {
		if c.matches(e) {
			out = append(out, e)
		}
	}
	if c.Offset >= len(out) {
		return []Event{}, nil
	}
	out = out[c.Offset:]
	if c.Limit > 0 && c.Limit < len(out) {
		out = out[:c.Limit]
	}
	return out, nil
}
