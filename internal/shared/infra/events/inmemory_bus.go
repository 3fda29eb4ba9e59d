package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	sharedBus "github.com/davicafu/promolab/internal/shared/infra/platform/bus"
	sharedUtils "github.com/davicafu/promolab/internal/shared/infra/utils"
)

// InMemoryEventBus implementa el bus con canales de Go, un slice de suscriptores por topic.
type InMemoryEventBus struct {
	subscribers map[string][]chan sharedBus.Message
	mu          sync.RWMutex
}

// Verifica en tiempo de compilación que cumple la interfaz
var _ sharedBus.EventBus = (*InMemoryEventBus)(nil)

func NewInMemoryEventBus() *InMemoryEventBus {
	return &InMemoryEventBus{
		subscribers: make(map[string][]chan sharedBus.Message),
	}
}

// errSubscriberFull: algún suscriptor no tenía hueco y no recibió el mensaje.
var errSubscriberFull = errors.New("in-memory bus: subscriber buffer full, message not delivered")

// Publish entrega el mensaje a los suscriptores del topic sin bloquear.
// Si el buffer de algún suscriptor está lleno devuelve errSubscriberFull,
// para que el relayer no lo cuente como publicado.
func (b *InMemoryEventBus) Publish(ctx context.Context, msg sharedBus.Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	// Copiamos el payload: el llamante puede reutilizar su slice.
	payload := append([]byte(nil), msg.Payload...)
	msg.Payload = payload

	dropped := 0
	for _, subChan := range b.subscribers[msg.Topic] {
		select {
		case subChan <- msg:
		case <-ctx.Done():
			return ctx.Err()
		default:
			dropped++
		}
	}
	if dropped > 0 {
		return fmt.Errorf("%w (topic %s, %d subscriber(s))", errSubscriberFull, msg.Topic, dropped)
	}
	return nil
}

// Subscribe suscribe un nuevo oyente a un topic.
func (b *InMemoryEventBus) Subscribe(topic string, bufferSize int) <-chan sharedBus.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	subChan := make(chan sharedBus.Message, bufferSize)
	b.subscribers[topic] = append(b.subscribers[topic], subChan)
	return subChan
}

const (
	localRetryAttempts = 3
	localRetryDelay    = 200 * time.Millisecond
	localRedelivery    = 2 * time.Second
)

// BackgroundConsumerChan consume un canal del bus en memoria con el mismo handler que Kafka.
// Igual que ConsumerAdapter, un mensaje se reentrega hasta que el handler lo acepta
// o se cancela el contexto; nunca se descarta.
func BackgroundConsumerChan(ctx context.Context, ch <-chan sharedBus.Message, handler sharedBus.MessageHandler, log *zap.Logger) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				log.Info("In-memory consumer stopped")
				return
			case msg := <-ch:
				if !deliverLocal(ctx, msg, handler, log) {
					log.Info("In-memory consumer stopped")
					return
				}
			}
		}
	}()
}

// deliverLocal devuelve false si el contexto se cancela antes de que el handler acepte.
func deliverLocal(ctx context.Context, msg sharedBus.Message, handler sharedBus.MessageHandler, log *zap.Logger) bool {
	for {
		err := sharedUtils.Retry(ctx, localRetryAttempts, localRetryDelay, func() error {
			return handler.HandleMessage(ctx, msg)
		})
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		log.Warn("⚠️ Mensaje no procesado, se reintentará",
			zap.String("topic", msg.Topic),
			zap.String("key", msg.Key),
			zap.Duration("retry_in", localRedelivery),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(localRedelivery):
		}
	}
}
