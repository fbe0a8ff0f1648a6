package auditlog

import (
	"context"
	"encoding/json"
	"fmt"

	"covenant/internal/platform/kafka/producer"
)

// KafkaSink streams persisted consent log entries to a Kafka topic, keyed by
// principal so one subject's trail stays ordered within a partition.
type KafkaSink struct {
	producer *producer.Producer
	topic    string
}

func NewKafkaSink(p *producer.Producer, topic string) *KafkaSink {
	return &KafkaSink{producer: p, topic: topic}
}

func (s *KafkaSink) Send(ctx context.Context, entry Entry) error {
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal consent log entry: %w", err)
	}
	return s.producer.Publish(ctx, producer.Message{
		Topic: s.topic,
		Key:   []byte(entry.PrincipalID),
		Value: value,
		Headers: map[string]string{
			"action": string(entry.Action),
		},
	})
}
