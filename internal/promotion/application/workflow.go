package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/davicafu/promolab/internal/promotion/domain"
	sharedDomain "github.com/davicafu/promolab/internal/shared/domain"
	"github.com/davicafu/promolab/internal/shared/infra/platform/observability"
)

// CandidateLoader entrega las promociones candidatas en orden de prioridad.
type CandidateLoader interface {
	Candidates(ctx context.Context, at time.Time) ([]domain.Promotion, error)
}

// WorkflowService aplica promociones a los eventos transaction.posted.
// Cada evento termina en exactamente un Outcome; las escrituras van en una transacción.
type WorkflowService struct {
	ledger     *IdempotencyLedger
	catalog    CandidateLoader
	apps       domain.ApplicationRepository
	outbox     sharedDomain.OutboxRepository
	tx         sharedDomain.TxManager
	evaluator  domain.RuleEvaluator
	calculator domain.RewardCalculator
	credit     domain.CreditClient
	now        func() time.Time
	log        *zap.Logger
}

func NewWorkflowService(
	ledger *IdempotencyLedger,
	catalog CandidateLoader,
	apps domain.ApplicationRepository,
	outbox sharedDomain.OutboxRepository,
	tx sharedDomain.TxManager,
	evaluator domain.RuleEvaluator,
	calculator domain.RewardCalculator,
	credit domain.CreditClient,
	log *zap.Logger,
) *WorkflowService {
	return &WorkflowService{
		ledger:     ledger,
		catalog:    catalog,
		apps:       apps,
		outbox:     outbox,
		tx:         tx,
		evaluator:  evaluator,
		calculator: calculator,
		credit:     credit,
		now:        func() time.Time { return time.Now().UTC() },
		log:        log,
	}
}

// ProcessTransactionPosted devuelve un error solo ante fallos de almacenamiento;
// en ese caso no se ha confirmado nada y el evento debe reentregarse.
// Un evento empezado llega siempre a un Outcome: la cancelación del llamante
// (apagado) no corta el workflow entre el abono y la persistencia.
func (s *WorkflowService) ProcessTransactionPosted(ctx context.Context, evt domain.TransactionPostedEvent, payloadHash string) (domain.Outcome, error) {
	ctx = context.WithoutCancel(ctx)
	outcome, err := s.process(ctx, evt, payloadHash)
	if err != nil {
		return "", err
	}
	observability.WorkflowOutcomesTotal.WithLabelValues(string(outcome)).Inc()
	return outcome, nil
}

func (s *WorkflowService) process(ctx context.Context, evt domain.TransactionPostedEvent, payloadHash string) (domain.Outcome, error) {
	eventID := domain.EventID(domain.TransactionPosted, evt.TransactionID)
	log := s.log.With(zap.String("event_id", eventID), zap.Int64("transaction_id", evt.TransactionID))

	processed, err := s.ledger.HasProcessed(ctx, eventID)
	if err != nil {
		return "", fmt.Errorf("check processed event: %w", err)
	}
	if processed {
		log.Debug("Event already processed")
		return domain.OutcomeDuplicate, nil
	}

	seen, err := s.ledger.HasPayload(ctx, payloadHash)
	if err != nil {
		return "", fmt.Errorf("check payload hash: %w", err)
	}
	if seen {
		log.Info("Payload already processed under another event id", zap.String("payload_hash", payloadHash))
		return domain.OutcomeDuplicate, nil
	}

	switch evt.Type {
	case domain.TransactionInbound:
		return s.handleInbound(ctx, evt, eventID, payloadHash, log)
	case domain.TransactionCashback:
		// Eco de nuestro propio abono: se absorbe para no entrar en bucle.
		return s.markOnly(ctx, eventID, payloadHash, domain.OutcomeCashbackConfirmed, log)
	default:
		return s.markOnly(ctx, eventID, payloadHash, domain.OutcomeIgnoredType, log)
	}
}

func (s *WorkflowService) handleInbound(ctx context.Context, evt domain.TransactionPostedEvent, eventID, payloadHash string, log *zap.Logger) (domain.Outcome, error) {
	candidates, err := s.catalog.Candidates(ctx, evt.CreatedAt)
	if err != nil {
		return "", err
	}

	matching := Evaluate(s.evaluator, evt, candidates)
	if len(matching) == 0 {
		return s.markOnly(ctx, eventID, payloadHash, domain.OutcomeNoPromo, log)
	}
	promo := matching[0]
	log = log.With(zap.String("promo_id", promo.ID))

	exists, err := s.apps.ExistsByIdempotencyKey(ctx, domain.IdempotencyKey(promo.ID, evt.TransactionID))
	if err != nil {
		return "", fmt.Errorf("check promotion application: %w", err)
	}
	if exists {
		return s.markOnly(ctx, eventID, payloadHash, domain.OutcomeDuplicate, log)
	}

	cashback := s.calculator.Calculate(evt, promo)
	if !cashback.IsPositive() {
		return s.markOnly(ctx, eventID, payloadHash, domain.OutcomeNoCashback, log)
	}

	status, reason := s.callCredit(ctx, evt, cashback, log)
	app := domain.NewPromotionApplication(evt, promo, cashback, status, reason, s.now())

	outcome := domain.OutcomeApplied
	if status == domain.ApplicationFailed {
		outcome = domain.OutcomeFailed
	}
	return s.persistApplication(ctx, app, eventID, payloadHash, outcome, log)
}

// callCredit abona al pagador original y carga al comercio: roles invertidos.
// No reintenta: el reintento es una reentrega del evento, filtrada por el ledger.
func (s *WorkflowService) callCredit(ctx context.Context, evt domain.TransactionPostedEvent, cashback decimal.Decimal, log *zap.Logger) (domain.ApplicationStatus, string) {
	err := s.credit.CreateCashback(ctx, domain.CashbackCredit{
		IssuerAccountID:   evt.MerchantAccountID,
		MerchantAccountID: evt.IssuerAccountID,
		Amount:            cashback,
		Currency:          evt.Currency,
	})
	if err != nil {
		log.Error("❌ Cashback creation failed", zap.String("cashback", cashback.StringFixed(2)), zap.Error(err))
		return domain.ApplicationFailed, domain.FailureReason(err)
	}
	log.Info("💸 Cashback credited", zap.String("cashback", cashback.StringFixed(2)))
	return domain.ApplicationApplied, ""
}

// persistApplication guarda aplicación, marca de ledger y evento de outbox juntos.
func (s *WorkflowService) persistApplication(ctx context.Context, app *domain.PromotionApplication, eventID, payloadHash string, outcome domain.Outcome, log *zap.Logger) (domain.Outcome, error) {
	payload, err := json.Marshal(domain.NewPromotionOutcomeEvent(app))
	if err != nil {
		return "", fmt.Errorf("marshal outcome event: %w", err)
	}

	err = s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		if err := s.apps.Create(txCtx, app); err != nil {
			return err
		}
		if err := s.ledger.MarkProcessed(txCtx, eventID, payloadHash, outcome); err != nil {
			return err
		}
		_, err := s.outbox.Append(txCtx, domain.OutcomeEventType(app.Status), strconv.FormatInt(app.TransactionID, 10), string(payload))
		return err
	})
	if errors.Is(err, sharedDomain.ErrConflict) {
		// Otra entrega ganó la carrera tras nuestra llamada de abono.
		log.Error("Concurrent delivery persisted first; credit call may be duplicated downstream",
			zap.String("idempotency_key", app.IdempotencyKey),
			zap.Error(err),
		)
		return domain.OutcomeDuplicate, nil
	}
	if err != nil {
		return "", fmt.Errorf("persist promotion application: %w", err)
	}

	log.Info("✅ Promotion application persisted",
		zap.String("application_id", app.ID.String()),
		zap.String("status", string(app.Status)),
	)
	return outcome, nil
}

// markOnly cierra el evento sin aplicación. Un conflicto significa que otra entrega ya lo cerró.
func (s *WorkflowService) markOnly(ctx context.Context, eventID, payloadHash string, outcome domain.Outcome, log *zap.Logger) (domain.Outcome, error) {
	err := s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		return s.ledger.MarkProcessed(txCtx, eventID, payloadHash, outcome)
	})
	if errors.Is(err, sharedDomain.ErrConflict) {
		log.Info("Event marked concurrently by another delivery")
		return domain.OutcomeDuplicate, nil
	}
	if err != nil {
		return "", err
	}
	log.Info("Event processed", zap.String("outcome", string(outcome)))
	return outcome, nil
}

// ListApplications da las aplicaciones de una transacción (API de administración).
func (s *WorkflowService) ListApplications(ctx context.Context, transactionID int64) ([]domain.PromotionApplication, error) {
	return s.apps.ListByTransaction(ctx, transactionID)
}

// ProcessedEvent consulta el ledger (API de administración).
func (s *WorkflowService) ProcessedEvent(ctx context.Context, eventID string) (*domain.ProcessedEvent, error) {
	return s.ledger.Get(ctx, eventID)
}
