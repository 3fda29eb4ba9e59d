package events

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	sharedBus "github.com/davicafu/promolab/internal/shared/infra/platform/bus"
)

// ConsumerAdapter es el "oído" que escucha en Kafka.
// El offset solo se confirma cuando el handler termina sin error (at-least-once).
type ConsumerAdapter struct {
	reader     *kafka.Reader
	handler    sharedBus.MessageHandler
	retryDelay time.Duration
	log        *zap.Logger
}

func NewConsumerAdapter(reader *kafka.Reader, handler sharedBus.MessageHandler, retryDelay time.Duration, log *zap.Logger) *ConsumerAdapter {
	return &ConsumerAdapter{
		reader:     reader,
		handler:    handler,
		retryDelay: retryDelay,
		log:        log,
	}
}

// Start inicia el bucle de consumo de mensajes en una goroutine.
func (c *ConsumerAdapter) Start(ctx context.Context) {
	c.log.Info("🎧 Iniciando consumidor de Kafka...",
		zap.String("topic", c.reader.Config().Topic),
		zap.Strings("brokers", c.reader.Config().Brokers),
	)

	go func() {
		for {
			// FetchMessage es bloqueante y no confirma el offset.
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					c.log.Info("Consumidor de Kafka detenido.", zap.String("topic", c.reader.Config().Topic))
					return
				}
				c.log.Error("Error al leer mensaje de Kafka", zap.Error(err))
				continue
			}

			if !c.deliver(ctx, msg) {
				return
			}

			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				c.log.Warn("⚠️ No se pudo confirmar el offset", zap.Int64("offset", msg.Offset), zap.Error(err))
			}
		}
	}()
}

// deliver reentrega el mensaje al handler hasta que lo acepte.
// Devuelve false si el contexto se cancela antes.
func (c *ConsumerAdapter) deliver(ctx context.Context, msg kafka.Message) bool {
	busMsg := toBusMessage(msg)
	for {
		err := c.handler.HandleMessage(ctx, busMsg)
		if err == nil {
			return true
		}
		c.log.Warn("⚠️ Mensaje no procesado, se reintentará",
			zap.Int64("offset", msg.Offset),
			zap.Int("partition", msg.Partition),
			zap.Duration("retry_in", c.retryDelay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.retryDelay):
		}
	}
}

func toBusMessage(msg kafka.Message) sharedBus.Message {
	out := sharedBus.Message{
		Topic:   msg.Topic,
		Key:     string(msg.Key),
		Payload: msg.Value,
	}
	for _, h := range msg.Headers {
		if h.Key == sharedBus.EventTypeHeader {
			out.EventType = string(h.Value)
		}
	}
	return out
}
