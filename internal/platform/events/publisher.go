// Package events publishes lookup audit events to Kafka for downstream
// analytics. Publication is strictly best-effort: the durable audit row in
// Postgres is the system of record, the stream is observability fan-out.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"afmcheck/internal/verify/models"
)

// DefaultTopic is the audit event stream topic.
const DefaultTopic = "afmcheck.lookups"

// LookupEvent is the wire form of one audit entry.
type LookupEvent struct {
	AFM         string                         `json:"afm"`
	CallerID    string                         `json:"callerId"`
	Sources     map[string]models.SourceStatus `json:"sources"`
	Fingerprint string                         `json:"fingerprint"`
	Timestamp   time.Time                      `json:"timestamp"`
}

// Publisher wraps a franz-go client. A nil Publisher (Kafka unconfigured)
// silently drops events so call sites need no branching.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// New connects a producer to the given brokers. Returns nil when brokers is
// empty, which disables the stream.
func New(brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, nil
	}
	if topic == "" {
		topic = DefaultTopic
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, err
	}
	return &Publisher{client: client, topic: topic, logger: logger}, nil
}

// PublishLookup produces one event asynchronously. Delivery failures are
// logged, never propagated.
func (p *Publisher) PublishLookup(ctx context.Context, entry models.AuditEntry) {
	if p == nil || p.client == nil {
		return
	}
	value, err := json.Marshal(LookupEvent{
		AFM:         entry.AFM,
		CallerID:    entry.CallerID,
		Sources:     entry.Sources,
		Fingerprint: entry.Fingerprint,
		Timestamp:   entry.CreatedAt,
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "encode lookup event", "error", err)
		return
	}

	record := &kgo.Record{Key: []byte(entry.AFM), Value: value}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.WarnContext(ctx, "lookup event delivery failed", "error", err)
		}
	})
}

// Close flushes and shuts the producer down.
func (p *Publisher) Close() {
	if p == nil || p.client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = p.client.Flush(ctx)
	p.client.Close()
}
