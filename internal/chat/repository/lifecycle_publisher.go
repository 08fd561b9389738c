package repository

import (
	"context"
	"encoding/json"

	"direct_chat_service/internal/chat/domain"

	"github.com/segmentio/kafka-go"
)

// LifecyclePublisher append persisted status transitions to an outbound stream
type LifecyclePublisher interface {
	Publish(ctx context.Context, event domain.LifecycleEvent) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaLifecyclePublisher struct {
	writer messageWriter
}

// NewKafkaLifecyclePublisher publish to kafka, keyed by conversation so one conversation stays ordered
func NewKafkaLifecyclePublisher(writer *kafka.Writer) LifecyclePublisher {
	return &kafkaLifecyclePublisher{writer: writer}
}

func (p *kafkaLifecyclePublisher) Publish(ctx context.Context, event domain.LifecycleEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.ConversationID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "status", Value: []byte(event.To)},
		},
	})
}

func (p *kafkaLifecyclePublisher) Close() error {
	return p.writer.Close()
}

type nopLifecyclePublisher struct{}

// NewNopLifecyclePublisher used when kafka is disabled
func NewNopLifecyclePublisher() LifecyclePublisher {
	return nopLifecyclePublisher{}
}

func (nopLifecyclePublisher) Publish(context.Context, domain.LifecycleEvent) error { return nil }

func (nopLifecyclePublisher) Close() error { return nil }
