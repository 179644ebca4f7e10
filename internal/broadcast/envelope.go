package broadcast

import "encoding/json"

// Named events carried inside envelopes. Dashboards switch on the event
// name, so create and update frames stay distinguishable without
// inspecting payload shape.
const (
	EventIncidentNew    = "incident:new"
	EventIncidentUpdate = "incident:update"
	EventMetricsUpdate  = "metrics:update"
)

// Envelope wraps every payload published on the fan-out channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NewEnvelope marshals data into an envelope ready to publish.
func NewEnvelope(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// ParseEnvelope decodes an envelope from a published payload.
func ParseEnvelope(payload []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(payload, &env)
	return env, err
}
