package incident

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agrilog/warroom/internal/broadcast"
	"github.com/agrilog/warroom/internal/domain"
	"github.com/agrilog/warroom/internal/pkg/ctxlog"
)

// ErrValidation marks a rejected creation input. The wrapping message
// names the offending field.
var ErrValidation = errors.New("validation failed")

// AnalyticsSink receives every accepted incident payload as a
// fire-and-forget side channel. Implementations must never block the
// caller on broker trouble; failures are theirs to log.
type AnalyticsSink interface {
	RecordIncident(ctx context.Context, inc *domain.Incident)
	RecordResolution(ctx context.Context, id string, resolvedAt time.Time)
}

// Service is the ingestion gateway: it validates incoming reports, writes
// them to the durable store and publishes them on the fan-out channel.
// The two side effects are deliberately not atomic: a stored incident
// whose publish reaches no live subscriber is still recoverable through
// the query path, while a failed store write short-circuits the publish.
type Service struct {
	repo      Repository
	broker    broadcast.Broker
	analytics AnalyticsSink
}

// NewService creates the ingestion gateway.
func NewService(repo Repository, broker broadcast.Broker, analytics AnalyticsSink) *Service {
	return &Service{
		repo:      repo,
		broker:    broker,
		analytics: analytics,
	}
}

// CreateInput holds a validated-to-be incoming incident report.
type CreateInput struct {
	Type        string
	Title       string
	Description string
	Location    *domain.Location
	Region      string
	Severity    *int
	Metadata    map[string]any
}

// ResolutionEvent is the minimal payload published when an incident is
// resolved.
type ResolutionEvent struct {
	ID        string                `json:"id"`
	Status    domain.IncidentStatus `json:"status"`
	UpdatedAt time.Time             `json:"updatedAt"`
}

// Create validates, persists and publishes a new incident. Validation
// failures leave the store untouched and publish nothing.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Incident, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	severity := domain.DefaultSeverity
	if input.Severity != nil {
		severity = *input.Severity
	}

	inc := &domain.Incident{
		ID:          domain.NewIncidentID(),
		Type:        input.Type,
		Title:       input.Title,
		Description: input.Description,
		Location:    *input.Location,
		Region:      input.Region,
		Severity:    severity,
		Status:      domain.IncidentStatusPending,
		Metadata:    input.Metadata,
	}

	if err := s.repo.Append(ctx, inc); err != nil {
		return nil, fmt.Errorf("append incident: %w", err)
	}
	recordIncidentCreated(inc.Type)

	s.publish(ctx, broadcast.EventIncidentNew, inc)
	s.analytics.RecordIncident(ctx, inc)

	return inc, nil
}

// Resolve transitions an incident to resolved. Idempotent: resolving a
// resolved incident succeeds with the same body but publishes nothing,
// so dashboards and the analytics log see exactly one update per
// transition.
func (s *Service) Resolve(ctx context.Context, id string) (*domain.Incident, error) {
	inc, changed, err := s.repo.MarkResolved(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("mark resolved: %w", err)
	}
	if inc == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !changed {
		return inc, nil
	}
	recordIncidentResolved()

	s.publish(ctx, broadcast.EventIncidentUpdate, ResolutionEvent{
		ID:        inc.ID,
		Status:    inc.Status,
		UpdatedAt: inc.UpdatedAt,
	})
	s.analytics.RecordResolution(ctx, inc.ID, inc.UpdatedAt)

	return inc, nil
}

// ListActive returns unresolved incidents for initial dashboard hydration.
// The push channel alone cannot provide this: events published before a
// session joined are not retroactively delivered.
func (s *Service) ListActive(ctx context.Context) ([]*domain.Incident, error) {
	return s.repo.ListActive(ctx, DefaultListLimit)
}

// publish sends an envelope on the incident topic. The durable write has
// already succeeded by the time this runs, so a publish failure is logged
// and swallowed: live viewers catch up through ListActive.
func (s *Service) publish(ctx context.Context, event string, data any) {
	payload, err := broadcast.NewEnvelope(event, data)
	if err != nil {
		ctxlog.FromContext(ctx).Error("encode envelope", "event", event, "error", err)
		return
	}
	if err := s.broker.Publish(ctx, broadcast.TopicIncidentEvents, payload); err != nil {
		ctxlog.FromContext(ctx).Warn("publish incident event",
			"event", event,
			"error", err,
		)
	}
}

func validateCreateInput(input CreateInput) error {
	switch {
	case input.Type == "":
		return fmt.Errorf("%w: type is required", ErrValidation)
	case input.Title == "":
		return fmt.Errorf("%w: title is required", ErrValidation)
	case input.Location == nil:
		return fmt.Errorf("%w: location is required", ErrValidation)
	case input.Region == "":
		return fmt.Errorf("%w: region is required", ErrValidation)
	}
	if input.Severity != nil && (*input.Severity < 0 || *input.Severity > 100) {
		return fmt.Errorf("%w: severity must be between 0 and 100", ErrValidation)
	}
	return nil
}
