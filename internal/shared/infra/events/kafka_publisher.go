package events

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/segmentio/kafka-go"

	sharedBus "github.com/davicafu/promolab/internal/shared/infra/platform/bus"
)

// KafkaPublisher escribe mensajes del bus en Kafka. El writer no fija topic:
// cada mensaje lleva el suyo.
type KafkaPublisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

func NewKafkaPublisher(writer *kafka.Writer, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, log: log}
}

func (p *KafkaPublisher) Publish(ctx context.Context, msg sharedBus.Message) error {
	kmsg := kafka.Message{
		Topic: msg.Topic,
		Key:   []byte(msg.Key),
		Value: msg.Payload,
		Headers: []kafka.Header{
			{Key: sharedBus.EventTypeHeader, Value: []byte(msg.EventType)},
		},
	}

	if err := p.writer.WriteMessages(ctx, kmsg); err != nil {
		p.log.Error("Error publishing to Kafka",
			zap.String("topic", msg.Topic),
			zap.String("key", msg.Key),
			zap.Error(err),
		)
		return fmt.Errorf("kafka write %s: %w", msg.Topic, err)
	}

	p.log.Debug("Event published successfully",
		zap.String("topic", msg.Topic),
		zap.String("event_type", msg.EventType),
		zap.String("key", msg.Key),
	)
	return nil
}

// Verificación estática
var _ sharedBus.EventBus = (*KafkaPublisher)(nil)
