// Package memory provides an in-memory implementation of the incident
// repository, used in tests and in simulation mode when no database is
// configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/agrilog/warroom/internal/domain"
)

// Repository implements incident.Repository with a mutex-guarded map.
// Append order is preserved through timestamps assigned under the lock.
type Repository struct {
	mu        sync.RWMutex
	incidents map[string]*domain.Incident
}

// NewRepository creates an empty in-memory repository.
func NewRepository() *Repository {
	return &Repository{
		incidents: make(map[string]*domain.Incident),
	}
}

// Append stores a new incident, assigning creation timestamps.
func (r *Repository) Append(_ context.Context, inc *domain.Incident) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	inc.CreatedAt = now
	inc.UpdatedAt = now

	stored := *inc
	r.incidents[inc.ID] = &stored
	return nil
}

// MarkResolved flips an incident to resolved. Idempotent; reports
// whether this call changed the row.
func (r *Repository) MarkResolved(_ context.Context, id string) (*domain.Incident, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.incidents[id]
	if !ok {
		return nil, false, nil
	}

	changed := false
	if !stored.IsResolved() {
		stored.Status = domain.IncidentStatusResolved
		stored.UpdatedAt = time.Now().UTC()
		changed = true
	}

	out := *stored
	return &out, changed, nil
}

// ListActive returns pending incidents, severity descending, newest first
// on ties, bounded to limit.
func (r *Repository) ListActive(_ context.Context, limit int) ([]*domain.Incident, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	active := make([]*domain.Incident, 0, len(r.incidents))
	for _, inc := range r.incidents {
		if inc.IsResolved() {
			continue
		}
		out := *inc
		active = append(active, &out)
	}

	sort.Slice(active, func(i, j int) bool {
		if active[i].Severity != active[j].Severity {
			return active[i].Severity > active[j].Severity
		}
		return active[i].CreatedAt.After(active[j].CreatedAt)
	})

	if limit > 0 && len(active) > limit {
		active = active[:limit]
	}
	return active, nil
}

// Ping always succeeds.
func (r *Repository) Ping(_ context.Context) error {
	return nil
}
