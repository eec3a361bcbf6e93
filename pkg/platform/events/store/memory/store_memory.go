package memory

import (
	"context"
	"sort"
	"sync"

	"lifeline/pkg/platform/events"
)

// InMemoryStore keeps events in insertion order for dev runs and tests.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []events.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, cloneEvent(event))
	return nil
}

func (s *InMemoryStore) ListByEntity(_ context.Context, entity events.Entity, entityID string) ([]events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []events.Event
	for _, e := range s.events {
		if e.Entity() == entity && e.EntityID == entityID {
			out = append(out, cloneEvent(e))
		}
	}
	return out, nil
}

// ListRecent returns the newest events first.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]events.Event, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, cloneEvent(e))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListKind returns every event of the given kind in insertion order.
func (s *InMemoryStore) ListKind(_ context.Context, kind events.Kind) []events.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []events.Event
	for _, e := range s.events {
		if e.Kind == kind {
			out = append(out, cloneEvent(e))
		}
	}
	return out
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

func cloneEvent(e events.Event) events.Event {
	if e.Attributes != nil {
		attrs := make(map[string]string, len(e.Attributes))
		for k, v := range e.Attributes {
			attrs[k] = v
		}
		e.Attributes = attrs
	}
	return e
}
