package application

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/davicafu/promolab/internal/promotion/domain"
	sharedDomain "github.com/davicafu/promolab/internal/shared/domain"
)

// --- Fakes en memoria, con el mismo contrato de conflicto que los repos SQL ---

type inMemoryProcessedRepo struct {
	mu     sync.Mutex
	events map[string]domain.ProcessedEvent
	err    error
}

func newInMemoryProcessedRepo() *inMemoryProcessedRepo {
	return &inMemoryProcessedRepo{events: make(map[string]domain.ProcessedEvent)}
}

func (r *inMemoryProcessedRepo) Exists(ctx context.Context, eventID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	_, ok := r.events[eventID]
	return ok, nil
}

func (r *inMemoryProcessedRepo) ExistsByPayloadHash(ctx context.Context, hash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.PayloadHash == hash {
			return true, nil
		}
	}
	return false, nil
}

func (r *inMemoryProcessedRepo) Insert(ctx context.Context, evt domain.ProcessedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[evt.EventID]; ok {
		return sharedDomain.ErrConflict
	}
	r.events[evt.EventID] = evt
	return nil
}

func (r *inMemoryProcessedRepo) GetByID(ctx context.Context, eventID string) (*domain.ProcessedEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[eventID]
	if !ok {
		return nil, domain.ErrProcessedEventNotFound
	}
	return &e, nil
}

type inMemoryAppRepo struct {
	mu   sync.Mutex
	apps []domain.PromotionApplication
	// createErr simula un fallo de almacenamiento.
	createErr error
}

func (r *inMemoryAppRepo) ExistsByIdempotencyKey(ctx context.Context, key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.apps {
		if a.IdempotencyKey == key {
			return true, nil
		}
	}
	return false, nil
}

func (r *inMemoryAppRepo) Create(ctx context.Context, app *domain.PromotionApplication) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	for _, a := range r.apps {
		if a.IdempotencyKey == app.IdempotencyKey {
			return sharedDomain.ErrConflict
		}
	}
	r.apps = append(r.apps, *app)
	return nil
}

func (r *inMemoryAppRepo) ListByTransaction(ctx context.Context, transactionID int64) ([]domain.PromotionApplication, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.PromotionApplication
	for _, a := range r.apps {
		if a.TransactionID == transactionID {
			out = append(out, a)
		}
	}
	return out, nil
}

type inMemoryOutbox struct {
	mu     sync.Mutex
	Outbox []sharedDomain.OutboxEvent
}

func (o *inMemoryOutbox) Append(ctx context.Context, eventType, aggregateID, payload string) (sharedDomain.OutboxEvent, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	evt := sharedDomain.OutboxEvent{
		ID:          int64(len(o.Outbox) + 1),
		EventType:   eventType,
		AggregateID: aggregateID,
		Payload:     payload,
		Status:      sharedDomain.OutboxPending,
	}
	o.Outbox = append(o.Outbox, evt)
	return evt, nil
}

func (o *inMemoryOutbox) FetchPending(ctx context.Context, limit int) ([]sharedDomain.OutboxEvent, error) {
	return nil, nil
}

func (o *inMemoryOutbox) MarkPublished(ctx context.Context, id int64, at time.Time) error { return nil }

func (o *inMemoryOutbox) MarkFailed(ctx context.Context, id int64) error { return nil }

func (o *inMemoryOutbox) ListByStatus(ctx context.Context, status sharedDomain.OutboxStatus, limit int) ([]sharedDomain.OutboxEvent, error) {
	return nil, nil
}

// passthroughTx ejecuta fn sin transacción real; la atomicidad se prueba en los repos SQL.
type passthroughTx struct{}

func (passthroughTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type inMemoryPromotionRepo struct {
	promos []domain.Promotion
	calls  int
}

func (r *inMemoryPromotionRepo) ListCandidates(ctx context.Context) ([]domain.Promotion, error) {
	r.calls++
	var out []domain.Promotion
	for _, p := range r.promos {
		if p.Status != domain.PromotionInactive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *inMemoryPromotionRepo) List(ctx context.Context) ([]domain.Promotion, error) {
	return r.promos, nil
}

func (r *inMemoryPromotionRepo) GetByID(ctx context.Context, id string) (*domain.Promotion, error) {
	for _, p := range r.promos {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, domain.ErrPromotionNotFound
}

func (r *inMemoryPromotionRepo) Upsert(ctx context.Context, p domain.Promotion) error {
	for i := range r.promos {
		if r.promos[i].ID == p.ID {
			r.promos[i] = p
			return nil
		}
	}
	r.promos = append(r.promos, p)
	return nil
}

// --- Mocks testify ---

type MockCreditClient struct {
	mock.Mock
}

func (m *MockCreditClient) CreateCashback(ctx context.Context, credit domain.CashbackCredit) error {
	return m.Called(ctx, credit).Error(0)
}

var (
	_ domain.ProcessedEventRepository = (*inMemoryProcessedRepo)(nil)
	_ domain.ApplicationRepository    = (*inMemoryAppRepo)(nil)
	_ domain.PromotionRepository      = (*inMemoryPromotionRepo)(nil)
	_ sharedDomain.OutboxRepository   = (*inMemoryOutbox)(nil)
	_ sharedDomain.TxManager          = passthroughTx{}
	_ domain.CreditClient             = (*MockCreditClient)(nil)
)
