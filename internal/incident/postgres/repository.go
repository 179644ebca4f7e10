// Package postgres provides the PostgreSQL implementation of the incident
// repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/agrilog/warroom/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements incident.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Append inserts a new incident row.
func (r *Repository) Append(ctx context.Context, inc *domain.Incident) error {
	query := `
		INSERT INTO incidents (
			id, type, title, description, lat, lon, region,
			severity, status, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		inc.ID,
		inc.Type,
		inc.Title,
		inc.Description,
		inc.Location.Lat,
		inc.Location.Lon,
		inc.Region,
		inc.Severity,
		inc.Status,
		inc.Metadata,
	).Scan(&inc.CreatedAt, &inc.UpdatedAt)

	if err != nil {
		return fmt.Errorf("append incident: %w", err)
	}
	return nil
}

// MarkResolved sets status to resolved. The WHERE clause keeps the update
// idempotent: an already-resolved row is returned untouched, and the
// affected-row count tells the caller whether this call did the
// transition.
func (r *Repository) MarkResolved(ctx context.Context, id string) (*domain.Incident, bool, error) {
	query := `
		UPDATE incidents
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status <> $2
	`
	tag, err := r.db.Exec(ctx, query, id, domain.IncidentStatusResolved)
	if err != nil {
		return nil, false, fmt.Errorf("mark resolved: %w", err)
	}
	changed := tag.RowsAffected() > 0

	inc, err := r.getByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get resolved incident: %w", err)
	}
	return inc, changed, nil
}

// ListActive returns unresolved incidents ordered by severity descending,
// newest first on ties.
func (r *Repository) ListActive(ctx context.Context, limit int) ([]*domain.Incident, error) {
	query := `
		SELECT id, type, title, description, lat, lon, region,
		       severity, status, metadata, created_at, updated_at
		FROM incidents
		WHERE status <> $1
		ORDER BY severity DESC, created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, domain.IncidentStatusResolved, limit)
	if err != nil {
		return nil, fmt.Errorf("list active incidents: %w", err)
	}
	defer rows.Close()

	// Non-nil so an empty result serializes as [] and not null.
	incidents := make([]*domain.Incident, 0)
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		incidents = append(incidents, inc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incidents: %w", err)
	}
	return incidents, nil
}

// Ping reports database reachability.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *Repository) getByID(ctx context.Context, id string) (*domain.Incident, error) {
	query := `
		SELECT id, type, title, description, lat, lon, region,
		       severity, status, metadata, created_at, updated_at
		FROM incidents
		WHERE id = $1
	`
	return scanIncident(r.db.QueryRow(ctx, query, id))
}

func scanIncident(row pgx.Row) (*domain.Incident, error) {
	var inc domain.Incident
	err := row.Scan(
		&inc.ID,
		&inc.Type,
		&inc.Title,
		&inc.Description,
		&inc.Location.Lat,
		&inc.Location.Lon,
		&inc.Region,
		&inc.Severity,
		&inc.Status,
		&inc.Metadata,
		&inc.CreatedAt,
		&inc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inc, nil
}
