package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/agrilog/warroom/internal/domain"
	"github.com/segmentio/kafka-go"
)

// KafkaSink writes incident payloads to a Kafka topic consumed by the
// analytics pipeline. Writes are asynchronous; the completion callback
// only logs, so a broker outage never blocks or fails ingestion.
type KafkaSink struct {
	writer *kafka.Writer
}

// KafkaConfig configures the analytics sink.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

// NewKafkaSink creates a Kafka-backed analytics sink. The connection is
// lazy: an unreachable broker surfaces through the completion callback,
// not here, because this sink must not gate startup.
func NewKafkaSink(cfg KafkaConfig) *KafkaSink {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: cfg.BatchTimeout,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				slog.Warn("analytics sink write failed",
					"messages", len(messages),
					"error", err,
				)
			}
		},
	}
	return &KafkaSink{writer: writer}
}

type incidentRecord struct {
	Kind     string           `json:"kind"`
	Incident *domain.Incident `json:"incident"`
}

type resolutionRecord struct {
	Kind       string    `json:"kind"`
	ID         string    `json:"id"`
	ResolvedAt time.Time `json:"resolvedAt"`
}

// RecordIncident enqueues the incident for the analytics log.
func (s *KafkaSink) RecordIncident(ctx context.Context, inc *domain.Incident) {
	s.write(ctx, inc.ID, incidentRecord{Kind: "incident.created", Incident: inc})
}

// RecordResolution enqueues a resolution marker for the analytics log.
func (s *KafkaSink) RecordResolution(ctx context.Context, id string, resolvedAt time.Time) {
	s.write(ctx, id, resolutionRecord{Kind: "incident.resolved", ID: id, ResolvedAt: resolvedAt})
}

func (s *KafkaSink) write(ctx context.Context, key string, record any) {
	value, err := json.Marshal(record)
	if err != nil {
		slog.Error("encode analytics record", "error", err)
		return
	}

	// Async writer: WriteMessages only enqueues, errors arrive via the
	// completion callback.
	if err := s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
	}); err != nil {
		slog.Warn("enqueue analytics record", "error", err)
	}
}

// Close flushes and closes the writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
