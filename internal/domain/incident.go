package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// IncidentStatus represents the lifecycle state of an incident.
type IncidentStatus string

// Incident statuses. Transitions are one-way: pending -> resolved.
const (
	IncidentStatusPending  IncidentStatus = "pending"
	IncidentStatusResolved IncidentStatus = "resolved"
)

// DefaultSeverity is assigned when the reporter does not specify one.
const DefaultSeverity = 50

// Location is a WGS84 coordinate pair. It serializes as [lat, lon]
// to match the dashboard wire format.
type Location struct {
	Lat float64
	Lon float64
}

// MarshalJSON encodes the location as a two-element array.
func (l Location) MarshalJSON() ([]byte, error) {
	return fmt.Appendf(nil, "[%g,%g]", l.Lat, l.Lon), nil
}

// UnmarshalJSON decodes a [lat, lon] array.
func (l *Location) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("location must be a [lat, lon] pair: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("location must have exactly 2 elements, got %d", len(pair))
	}
	l.Lat, l.Lon = pair[0], pair[1]
	return nil
}

// Incident is an operational event record: cold-chain anomaly, route
// delay, fraud alert. The durable store owns the authoritative copy.
type Incident struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Location    Location       `json:"location"`
	Region      string         `json:"region"`
	Severity    int            `json:"severity"`
	Status      IncidentStatus `json:"status"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// IsResolved reports whether the incident has reached its terminal state.
func (i *Incident) IsResolved() bool {
	return i.Status == IncidentStatusResolved
}

// NewIncidentID generates an opaque incident identifier of the form
// INC-<random hex>.
func NewIncidentID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "INC-" + strings.ToUpper(hex[:12])
}
