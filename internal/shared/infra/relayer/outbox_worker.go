package relayer

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/promolab/internal/shared/domain"
	sharedDomainEvents "github.com/davicafu/promolab/internal/shared/domain/events"
	sharedBus "github.com/davicafu/promolab/internal/shared/infra/platform/bus"
	"github.com/davicafu/promolab/internal/shared/infra/platform/observability"
)

var (
	errInvalidOutboxEvent = errors.New("outbox event missing key, type or payload")
	errUnknownEventType   = errors.New("event type not in registry")
)

// BatchResult son los contadores de un ciclo. No hay estado compartido entre ciclos.
type BatchResult struct {
	Published int
	Failed    int
}

// Worker publica eventos pendientes de la tabla outbox.
// Una sola instancia por base de datos: no hay lease sobre las filas.
type Worker struct {
	repo          sharedDomain.OutboxRepository
	publisher     sharedBus.EventBus
	eventRegistry sharedDomainEvents.Registry
	interval      time.Duration
	batchSize     int
	now           func() time.Time
	log           *zap.Logger
}

func NewOutboxWorker(
	repo sharedDomain.OutboxRepository,
	publisher sharedBus.EventBus,
	registry sharedDomainEvents.Registry,
	interval time.Duration,
	batchSize int,
	log *zap.Logger,
) *Worker {
	return &Worker{
		repo:          repo,
		publisher:     publisher,
		eventRegistry: registry,
		interval:      interval,
		batchSize:     batchSize,
		now:           func() time.Time { return time.Now().UTC() },
		log:           log,
	}
}

// Start inicia el bucle de polling del worker. Bloquea hasta que ctx se cancela.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("🚀 Outbox worker iniciado",
		zap.Duration("interval", w.interval),
		zap.Int("batch_size", w.batchSize),
	)

	for {
		select {
		case <-ctx.Done():
			w.log.Info("🛑 Outbox worker detenido.")
			return
		case <-ticker.C:
			w.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch publica un lote de eventos PENDING, en orden.
// Un fallo de publicación deja el evento en FAILED y sigue con el siguiente.
func (w *Worker) ProcessBatch(ctx context.Context) BatchResult {
	var result BatchResult

	events, err := w.repo.FetchPending(ctx, w.batchSize)
	if err != nil {
		w.log.Warn("⚠️ Error al obtener eventos pendientes", zap.Error(err))
		return result
	}
	if len(events) == 0 {
		return result
	}

	for _, evt := range events {
		if w.publishAndMark(ctx, evt) {
			result.Published++
		} else {
			result.Failed++
		}
	}

	observability.OutboxEventsTotal.WithLabelValues("published").Add(float64(result.Published))
	observability.OutboxEventsTotal.WithLabelValues("failed").Add(float64(result.Failed))

	w.log.Info("📬 Outbox publishing completed",
		zap.Int("successful", result.Published),
		zap.Int("failed", result.Failed),
	)
	return result
}

// publishAndMark devuelve true solo si el evento quedó PUBLISHED.
func (w *Worker) publishAndMark(ctx context.Context, evt sharedDomain.OutboxEvent) bool {
	log := w.log.With(
		zap.Int64("event_id", evt.ID),
		zap.String("event_type", evt.EventType),
		zap.String("aggregate_id", evt.AggregateID),
	)

	msg, err := w.toMessage(evt)
	if err == nil {
		err = w.publisher.Publish(ctx, msg)
	}
	if err != nil {
		log.Warn("⚠️ No se pudo publicar evento", zap.Error(err))
		if markErr := w.repo.MarkFailed(ctx, evt.ID); markErr != nil {
			log.Error("No se pudo marcar evento como FAILED", zap.Error(markErr))
		}
		return false
	}

	if err := w.repo.MarkPublished(ctx, evt.ID, w.now()); err != nil {
		// Ya está en el broker; el consumidor deduplica si se vuelve a publicar.
		log.Warn("⚠️ Evento publicado pero no marcado", zap.Error(err))
		return false
	}

	log.Debug("✅ Evento publicado y marcado")
	return true
}

func (w *Worker) toMessage(evt sharedDomain.OutboxEvent) (sharedBus.Message, error) {
	if strings.TrimSpace(evt.EventType) == "" || evt.AggregateID == "" || evt.Payload == "" {
		return sharedBus.Message{}, errInvalidOutboxEvent
	}
	metadata, ok := w.eventRegistry[evt.EventType]
	if !ok {
		return sharedBus.Message{}, errUnknownEventType
	}
	return sharedBus.Message{
		Topic:     metadata.Topic,
		Key:       evt.AggregateID,
		EventType: evt.EventType,
		Payload:   []byte(evt.Payload),
	}, nil
}
