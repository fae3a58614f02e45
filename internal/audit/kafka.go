// Package audit holds the sinks that security audit events are delivered to.
package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jasonachkar/secure-api-gateway-sub001/internal/platform/kafka/producer"
	pkgaudit "github.com/jasonachkar/secure-api-gateway-sub001/pkg/platform/audit"
)

// Producer is the subset of the Kafka producer the sink needs.
type Producer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// KafkaSink publishes events as JSON records keyed by principal, so events
// for one principal stay ordered within a partition.
type KafkaSink struct {
	producer Producer
	topic    string
}

// NewKafkaSink creates a sink writing to topic.
func NewKafkaSink(p Producer, topic string) *KafkaSink {
	return &KafkaSink{producer: p, topic: topic}
}

// Write encodes and produces one event, waiting for the broker ack.
func (s *KafkaSink) Write(ctx context.Context, event pkgaudit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}

	msg := &producer.Message{
		Topic: s.topic,
		Value: payload,
		Headers: map[string]string{
			"event_type": string(event.Action),
		},
	}
	if key := event.Key(); key != "" {
		msg.Key = []byte(key)
	}
	if event.RequestID != "" {
		msg.Headers["request_id"] = event.RequestID
	}

	if err := s.producer.Produce(ctx, msg); err != nil {
		return fmt.Errorf("publish audit event: %w", err)
	}
	return nil
}
