package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/davicafu/promolab/internal/promotion/domain"
	sharedDomain "github.com/davicafu/promolab/internal/shared/domain"
	sharedUtils "github.com/davicafu/promolab/internal/shared/infra/utils"
	"github.com/davicafu/promolab/pkg/utils"
)

const defaultOutboxLimit = 50

type PromotionCatalog interface {
	List(ctx context.Context) ([]domain.Promotion, error)
	Upsert(ctx context.Context, p domain.Promotion) error
}

type WorkflowQueries interface {
	ListApplications(ctx context.Context, transactionID int64) ([]domain.PromotionApplication, error)
	ProcessedEvent(ctx context.Context, eventID string) (*domain.ProcessedEvent, error)
}

// EventProcessor es la misma entrada que usa el consumidor del bus.
type EventProcessor interface {
	Process(ctx context.Context, evt domain.TransactionPostedEvent, payloadHash string) (domain.Outcome, error)
}

// PromotionHandler expone la API de administración.
type PromotionHandler struct {
	catalog   PromotionCatalog
	workflow  WorkflowQueries
	outbox    sharedDomain.OutboxRepository
	processor EventProcessor
	log       *zap.Logger
}

func NewPromotionHandler(catalog PromotionCatalog, workflow WorkflowQueries, outbox sharedDomain.OutboxRepository, processor EventProcessor, log *zap.Logger) *PromotionHandler {
	return &PromotionHandler{
		catalog:   catalog,
		workflow:  workflow,
		outbox:    outbox,
		processor: processor,
		log:       log.Named("http"),
	}
}

// ListPromotions endpoint GET /promotions
func (h *PromotionHandler) ListPromotions(c *gin.Context) {
	promos, err := h.catalog.List(c.Request.Context())
	if err != nil {
		h.log.Error("list promotions", zap.Error(err))
		utils.SendInternalServerError(c, "could not list promotions")
		return
	}
	utils.SendSuccess(c, http.StatusOK, promos)
}

// UpsertPromotion endpoint PUT /promotions/:id
func (h *PromotionHandler) UpsertPromotion(c *gin.Context) {
	var p domain.Promotion
	if err := c.ShouldBindJSON(&p); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}
	p.ID = c.Param("id")

	if err := h.catalog.Upsert(c.Request.Context(), p); err != nil {
		if errors.Is(err, domain.ErrInvalidPromotion) || errors.Is(err, domain.ErrInvalidPromotionWindow) {
			utils.SendUnprocessable(c, err.Error())
			return
		}
		h.log.Error("upsert promotion", zap.String("promo_id", p.ID), zap.Error(err))
		utils.SendInternalServerError(c, "could not save promotion")
		return
	}
	utils.SendSuccess(c, http.StatusOK, p)
}

// ListApplications endpoint GET /applications?transactionId=
func (h *PromotionHandler) ListApplications(c *gin.Context) {
	txnID, err := strconv.ParseInt(c.Query("transactionId"), 10, 64)
	if err != nil {
		utils.SendBadRequest(c, "transactionId query parameter must be an integer")
		return
	}
	apps, err := h.workflow.ListApplications(c.Request.Context(), txnID)
	if err != nil {
		h.log.Error("list applications", zap.Int64("transaction_id", txnID), zap.Error(err))
		utils.SendInternalServerError(c, "could not list applications")
		return
	}
	if apps == nil {
		apps = []domain.PromotionApplication{}
	}
	utils.SendSuccess(c, http.StatusOK, apps)
}

// GetProcessedEvent endpoint GET /processed-events/:id
func (h *PromotionHandler) GetProcessedEvent(c *gin.Context) {
	evt, err := h.workflow.ProcessedEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrProcessedEventNotFound) {
			utils.SendNotFound(c, "processed event not found")
			return
		}
		utils.SendInternalServerError(c, err.Error())
		return
	}
	utils.SendSuccess(c, http.StatusOK, evt)
}

// ListOutbox endpoint GET /outbox?status=&limit=
func (h *PromotionHandler) ListOutbox(c *gin.Context) {
	status := sharedDomain.OutboxStatus(c.DefaultQuery("status", string(sharedDomain.OutboxPending)))
	switch status {
	case sharedDomain.OutboxPending, sharedDomain.OutboxPublished, sharedDomain.OutboxFailed:
	default:
		utils.SendBadRequest(c, "status must be PENDING, PUBLISHED or FAILED")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultOutboxLimit)))
	if err != nil {
		utils.SendBadRequest(c, "limit must be an integer")
		return
	}
	limit = sharedUtils.Ternary(limit > 0, limit, defaultOutboxLimit)

	events, err := h.outbox.ListByStatus(c.Request.Context(), status, limit)
	if err != nil {
		utils.SendInternalServerError(c, err.Error())
		return
	}
	if events == nil {
		events = []sharedDomain.OutboxEvent{}
	}
	utils.SendSuccess(c, http.StatusOK, events)
}

// InjectTransactionPosted endpoint POST /events/transaction-posted
func (h *PromotionHandler) InjectTransactionPosted(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		utils.SendBadRequest(c, "could not read body")
		return
	}
	var evt domain.TransactionPostedEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}
	if err := evt.Validate(); err != nil {
		utils.SendUnprocessable(c, err.Error())
		return
	}

	outcome, err := h.processor.Process(c.Request.Context(), evt, sharedUtils.PayloadHash(body))
	if err != nil {
		utils.SendInternalServerError(c, "event not processed, retry later")
		return
	}
	utils.SendSuccess(c, http.StatusOK, gin.H{
		"eventId": domain.EventID(domain.TransactionPosted, evt.TransactionID),
		"outcome": outcome,
	})
}
