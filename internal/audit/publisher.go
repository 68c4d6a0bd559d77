package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

const defaultTopic = "mindwell.audit"

// KafkaPublisher mirrors audit entries to a Kafka topic so the operational
// telemetry pipeline can detect audit gaps independently of the primary
// store. Production is fire-and-forget: a broker outage never blocks or
// fails the request path.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

type kafkaEntry struct {
	ID           string    `json:"id"`
	ActorID      string    `json:"actorId,omitempty"`
	Action       string    `json:"action"`
	ResourceType string    `json:"resourceType"`
	ResourceID   string    `json:"resourceId"`
	IP           string    `json:"ipAddress"`
	UserAgent    string    `json:"userAgent"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewKafkaPublisher(brokers []string, logger *slog.Logger) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(defaultTopic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, err
	}
	return &KafkaPublisher{client: client, topic: defaultTopic, logger: logger}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, entry Entry) {
	out := kafkaEntry{
		ID:           entry.ID.String(),
		Action:       string(entry.Action),
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		IP:           entry.IP,
		UserAgent:    entry.UserAgent,
		Timestamp:    entry.Timestamp,
	}
	if entry.ActorID != nil {
		out.ActorID = entry.ActorID.String()
	}
	payload, err := json.Marshal(out)
	if err != nil {
		p.logger.Error("audit kafka marshal failed", "error", err)
		return
	}
	record := &kgo.Record{Topic: p.topic, Key: []byte(out.ID), Value: payload}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Warn("audit kafka produce failed", "error", err, "action", out.Action)
		}
	})
}

func (p *KafkaPublisher) Close() {
	p.client.Close()
}
