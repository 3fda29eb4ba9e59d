package bus

import "context"

// EventTypeHeader es la cabecera que etiqueta cada mensaje con su tipo.
const EventTypeHeader = "eventType"

// Message es la unidad que viaja por el bus: clave de partición, tipo y cuerpo opaco.
type Message struct {
	Topic     string
	Key       string
	EventType string
	Payload   []byte
}

// La semántica de topic/nombre y formato del payload la decides en los adapters.
type EventBus interface {
	Publish(ctx context.Context, msg Message) error
}

// MessageHandler lo implementa cualquier consumidor de mensajes (Kafka o en memoria).
// Un error indica que el mensaje debe volver a entregarse.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg Message) error
}
