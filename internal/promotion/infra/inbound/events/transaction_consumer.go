package events

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/davicafu/promolab/internal/promotion/domain"
	sharedBus "github.com/davicafu/promolab/internal/shared/infra/platform/bus"
	"github.com/davicafu/promolab/internal/shared/infra/platform/observability"
	sharedUtils "github.com/davicafu/promolab/internal/shared/infra/utils"
)

// WorkflowService es lo que el consumidor necesita de la capa de aplicación.
type WorkflowService interface {
	ProcessTransactionPosted(ctx context.Context, evt domain.TransactionPostedEvent, payloadHash string) (domain.Outcome, error)
}

// TransactionConsumer traduce mensajes transaction.posted en llamadas al workflow.
// Solo devuelve error cuando el mensaje debe reentregarse (fallo de almacenamiento).
type TransactionConsumer struct {
	service WorkflowService
	log     *zap.Logger
}

func NewTransactionConsumer(service WorkflowService, logger *zap.Logger) *TransactionConsumer {
	return &TransactionConsumer{
		service: service,
		log:     logger.Named("transaction-consumer"),
	}
}

var _ sharedBus.MessageHandler = (*TransactionConsumer)(nil)

func (c *TransactionConsumer) HandleMessage(ctx context.Context, msg sharedBus.Message) error {
	if msg.EventType != domain.TransactionPosted {
		c.log.Debug("Skipping message with unexpected event type",
			zap.String("event_type", msg.EventType),
			zap.String("key", msg.Key))
		return nil
	}

	hash := sharedUtils.PayloadHash(msg.Payload)
	return sharedUtils.UnmarshalAndHandle(c.log, msg.Payload, func(evt domain.TransactionPostedEvent) error {
		if err := evt.Validate(); err != nil {
			c.log.Warn("Invalid transaction.posted event discarded",
				zap.String("key", msg.Key),
				zap.Int64("transaction_id", evt.TransactionID),
				zap.Error(err))
			return nil
		}
		_, err := c.Process(ctx, evt, hash)
		return err
	})
}

// Process ejecuta el workflow dentro de un span etiquetado con el transactionId.
// Lo comparten el bus y la inyección manual por HTTP.
func (c *TransactionConsumer) Process(ctx context.Context, evt domain.TransactionPostedEvent, payloadHash string) (domain.Outcome, error) {
	ctx, span := observability.Tracer().Start(ctx, "promotion.process_transaction_posted")
	defer span.End()
	observability.TagTransaction(ctx, evt.TransactionID)

	outcome, err := c.service.ProcessTransactionPosted(ctx, evt, payloadHash)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failure")
		c.log.Error("Transaction event not processed, will be redelivered",
			zap.Int64("transaction_id", evt.TransactionID),
			zap.Error(err))
		return "", err
	}
	span.SetAttributes(attribute.String("outcome", string(outcome)))
	c.log.Info("Transaction event processed",
		zap.Int64("transaction_id", evt.TransactionID),
		zap.String("outcome", string(outcome)))
	return outcome, nil
}
