package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/davicafu/promolab/internal/promotion/domain"
	sharedDomain "github.com/davicafu/promolab/internal/shared/domain"
)

// IdempotencyLedger registra qué eventos entrantes ya se han tratado.
// Lee siempre del almacén: nada de caché delante.
type IdempotencyLedger struct {
	repo domain.ProcessedEventRepository
	now  func() time.Time
}

func NewIdempotencyLedger(repo domain.ProcessedEventRepository) *IdempotencyLedger {
	return &IdempotencyLedger{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

func (l *IdempotencyLedger) HasProcessed(ctx context.Context, eventID string) (bool, error) {
	return l.repo.Exists(ctx, eventID)
}

// HasPayload es la segunda barrera, por huella del contenido. Un hash vacío nunca coincide.
func (l *IdempotencyLedger) HasPayload(ctx context.Context, payloadHash string) (bool, error) {
	if payloadHash == "" {
		return false, nil
	}
	return l.repo.ExistsByPayloadHash(ctx, payloadHash)
}

// MarkProcessed devuelve un error con sharedDomain.ErrConflict si el evento ya estaba.
// Se une a la transacción del contexto, si la hay.
func (l *IdempotencyLedger) MarkProcessed(ctx context.Context, eventID, payloadHash string, status domain.Outcome) error {
	err := l.repo.Insert(ctx, domain.ProcessedEvent{
		EventID:     eventID,
		PayloadHash: payloadHash,
		Status:      status,
		ProcessedAt: l.now(),
	})
	if err != nil {
		if errors.Is(err, sharedDomain.ErrConflict) {
			return fmt.Errorf("event %s already processed: %w", eventID, err)
		}
		return fmt.Errorf("mark event %s processed: %w", eventID, err)
	}
	return nil
}

func (l *IdempotencyLedger) Get(ctx context.Context, eventID string) (*domain.ProcessedEvent, error) {
	return l.repo.GetByID(ctx, eventID)
}
