package planner

import (
	"context"
	"sync"
	"time"
)

// AuditEvent records one discovery run or one coordination pass.
type AuditEvent struct {
	ID         string
	Kind       string // "discovery" or "query"
	Expert     string
	Mode       string
	Query      string
	CallCount  int
	Status     string // "ok" or "error"
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// AuditFilter narrows List results. Zero values match everything.
type AuditFilter struct {
	Expert string
	Kind   string
	Status string
	Limit  int
}

// AuditStore persists audit events.
type AuditStore interface {
	Record(ctx context.Context, event AuditEvent) error
	List(ctx context.Context, filter AuditFilter) ([]AuditEvent, error)
}

// MemoryAuditStore keeps audit events in memory. Intended for tests and for
// sessions that run without a database.
type MemoryAuditStore struct {
	mu     sync.Mutex
	events []AuditEvent
}

// NewMemoryAuditStore creates an empty in-memory store.
func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{}
}

// Record stores a single audit event.
func (s *MemoryAuditStore) Record(_ context.Context, event AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// List returns audit events matching the filter, oldest first.
func (s *MemoryAuditStore) List(_ context.Context, filter AuditFilter) ([]AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []AuditEvent
	for _, event := range s.events {
		if !matchesFilter(event, filter) {
			continue
		}
		out = append(out, event)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func matchesFilter(event AuditEvent, filter AuditFilter) bool {
	if filter.Expert != "" && event.Expert != filter.Expert {
		return false
	}
	if filter.Kind != "" && event.Kind != filter.Kind {
		return false
	}
	if filter.Status != "" && event.Status != filter.Status {
		return false
	}
	return true
}
