package incident

import (
	"context"

	"github.com/agrilog/warroom/internal/domain"
)

// DefaultListLimit bounds ListActive when the caller passes no limit.
const DefaultListLimit = 1000

// Repository is the durable event store: the append-only source of truth
// for incidents and the catch-up source for dashboards. Records are never
// physically deleted; resolution flips the status field.
type Repository interface {
	// Append persists a new incident. The incident carries its
	// pre-assigned id; CreatedAt/UpdatedAt are set by the store.
	Append(ctx context.Context, inc *domain.Incident) error

	// MarkResolved transitions an incident to resolved. Returns the
	// incident, or nil if the id is unknown, and whether this call
	// performed the transition. Resolving an already-resolved incident
	// is a no-op success with changed == false.
	MarkResolved(ctx context.Context, id string) (inc *domain.Incident, changed bool, err error)

	// ListActive returns unresolved incidents ordered by severity
	// descending, ties broken by newest first, bounded to limit rows.
	ListActive(ctx context.Context, limit int) ([]*domain.Incident, error)

	// Ping reports store reachability for health checks.
	Ping(ctx context.Context) error
}
