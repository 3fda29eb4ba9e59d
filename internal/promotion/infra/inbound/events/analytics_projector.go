package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/davicafu/promolab/internal/promotion/domain"
	sharedBus "github.com/davicafu/promolab/internal/shared/infra/platform/bus"
)

// AnalyticsProjector proyecta promotion.applied/failed al almacén analítico por lotes.
// Es best-effort: si el almacén falla, el lote se conserva hasta maxBuffer y se reintenta.
type AnalyticsProjector struct {
	repo      domain.ApplicationAnalyticsRepository
	batchSize int
	maxBuffer int
	interval  time.Duration
	log       *zap.Logger

	mu     sync.Mutex
	buffer []domain.PromotionOutcomeEvent
}

func NewAnalyticsProjector(repo domain.ApplicationAnalyticsRepository, batchSize int, interval time.Duration, logger *zap.Logger) *AnalyticsProjector {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &AnalyticsProjector{
		repo:      repo,
		batchSize: batchSize,
		maxBuffer: batchSize * 10,
		interval:  interval,
		log:       logger.Named("analytics"),
	}
}

var _ sharedBus.MessageHandler = (*AnalyticsProjector)(nil)

func (p *AnalyticsProjector) HandleMessage(ctx context.Context, msg sharedBus.Message) error {
	if msg.EventType != domain.PromotionApplied && msg.EventType != domain.PromotionFailed {
		return nil
	}
	var evt domain.PromotionOutcomeEvent
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		p.log.Warn("Failed to unmarshal promotion outcome", zap.String("key", msg.Key), zap.Error(err))
		return nil
	}

	p.mu.Lock()
	p.buffer = append(p.buffer, evt)
	full := len(p.buffer) >= p.batchSize
	p.mu.Unlock()

	if full {
		p.Flush(ctx)
	}
	return nil
}

// Start vacía el buffer cada interval y una última vez al cancelar el contexto.
func (p *AnalyticsProjector) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				p.Flush(context.Background())
				p.log.Info("Analytics projector stopped")
				return
			case <-ticker.C:
				p.Flush(ctx)
			}
		}
	}()
}

// Flush escribe lo acumulado. Ante error devuelve los eventos al buffer.
func (p *AnalyticsProjector) Flush(ctx context.Context) {
	p.mu.Lock()
	batch := p.buffer
	p.buffer = nil
	p.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	if err := p.repo.LogBatch(ctx, batch); err != nil {
		p.log.Warn("Analytics batch not written, keeping it for next flush", zap.Int("events", len(batch)), zap.Error(err))
		p.requeue(batch)
		return
	}
	p.log.Debug("Analytics batch written", zap.Int("events", len(batch)))
}

func (p *AnalyticsProjector) requeue(batch []domain.PromotionOutcomeEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buffer = append(batch, p.buffer...)
	if over := len(p.buffer) - p.maxBuffer; over > 0 {
		p.log.Error("Analytics buffer full, dropping oldest events", zap.Int("dropped", over))
		p.buffer = p.buffer[over:]
	}
}

// Pending devuelve cuántos eventos esperan escritura.
func (p *AnalyticsProjector) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buffer)
}
