package domain

import (
	"context"
	"time"
)

type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "PENDING"
	OutboxPublished OutboxStatus = "PUBLISHED"
	OutboxFailed    OutboxStatus = "FAILED"
)

// OutboxEvent representa un evento pendiente de publicar en el broker.
// Solo el relayer cambia su estado: PENDING -> PUBLISHED o PENDING -> FAILED.
type OutboxEvent struct {
	ID          int64        `json:"id"` // asignado por la BBDD, monótono
	EventType   string       `json:"event_type"`
	AggregateID string       `json:"aggregate_id"`
	Payload     string       `json:"payload"` // JSON ya serializado
	Status      OutboxStatus `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	PublishedAt *time.Time   `json:"published_at,omitempty"` // solo si PUBLISHED
}

// OutboxRepository define el contrato para acceder a la tabla outbox.
// Append se une a la transacción que viaje en el contexto, si la hay.
type OutboxRepository interface {
	Append(ctx context.Context, eventType, aggregateID, payload string) (OutboxEvent, error)
	FetchPending(ctx context.Context, limit int) ([]OutboxEvent, error)
	MarkPublished(ctx context.Context, id int64, at time.Time) error
	MarkFailed(ctx context.Context, id int64) error
	ListByStatus(ctx context.Context, status OutboxStatus, limit int) ([]OutboxEvent, error)
}

// TxManager ejecuta fn dentro de una única transacción local.
// Los repositorios que reciban el ctx de fn escriben en esa transacción.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
