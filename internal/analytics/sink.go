// Package analytics forwards incident payloads to a durable log for
// offline analytics. This is a fire-and-forget side channel: the primary
// store write has already succeeded, so failures here are logged and
// never surfaced to the HTTP caller.
package analytics

import (
	"context"
	"time"

	"github.com/agrilog/warroom/internal/domain"
)

// NoopSink discards everything. Used when the analytics log is not
// configured.
type NoopSink struct{}

// NewNoopSink creates a sink that drops all records.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

// RecordIncident discards the incident.
func (*NoopSink) RecordIncident(context.Context, *domain.Incident) {}

// RecordResolution discards the resolution.
func (*NoopSink) RecordResolution(context.Context, string, time.Time) {}

// Close is a no-op.
func (*NoopSink) Close() error { return nil }
