package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davicafu/promolab/internal/promotion/application"
	"github.com/davicafu/promolab/internal/promotion/domain"
	"github.com/davicafu/promolab/internal/promotion/infra/inbound/events"
	"github.com/davicafu/promolab/internal/promotion/infra/outbound/db/sqlrepo"
	sharedDomain "github.com/davicafu/promolab/internal/shared/domain"
	"github.com/davicafu/promolab/internal/shared/infra/platform/cache"
	"github.com/davicafu/promolab/internal/shared/infra/platform/db/sqldb"
)

// recordingCredit registra las órdenes de abono recibidas.
type recordingCredit struct {
	mu      sync.Mutex
	credits []domain.CashbackCredit
}

func (r *recordingCredit) CreateCashback(_ context.Context, credit domain.CashbackCredit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.credits = append(r.credits, credit)
	return nil
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func setupRouter(t *testing.T) (*gin.Engine, *recordingCredit) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()
	ctx := context.Background()

	db, err := sqldb.Open(ctx, sqldb.SQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlrepo.InitSchema(ctx, db))

	memCache := cache.NewInMemoryCache(time.Minute, time.Minute)
	t.Cleanup(memCache.Stop)

	outbox := sqldb.NewOutboxRepo(db)
	catalog := application.NewPromotionCatalog(sqlrepo.NewPromotionRepo(db), memCache, time.Minute, log)
	credit := &recordingCredit{}
	workflow := application.NewWorkflowService(
		application.NewIdempotencyLedger(sqlrepo.NewProcessedEventRepo(db)),
		catalog,
		sqlrepo.NewApplicationRepo(db),
		outbox,
		db,
		application.NewEligibilityEvaluator(log),
		application.NewPercentageCalculator(log),
		credit,
		log,
	)
	consumer := events.NewTransactionConsumer(workflow, log)

	r := gin.New()
	RegisterPromotionRoutes(r, NewPromotionHandler(catalog, workflow, outbox, consumer, log))
	return r, credit
}

func do(t *testing.T, r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

const promoBody = `{
	"name": "Summer cashback",
	"startDate": "2024-06-01T00:00:00Z",
	"expiryDate": "2024-07-01T00:00:00Z",
	"eligibilityRules": "{\"minAmount\":100}",
	"rewardFormula": "{\"cashbackPercent\":5,\"maxCashback\":50}",
	"status": "ACTIVE"
}`

const txnBody = `{"transactionId":1001,"type":"INBOUND","issuerAccountId":10,"merchantAccountId":20,"amount":"200.00","currency":"USD","createdAt":"2024-06-15T12:00:00Z"}`

func TestPromotionAPI_ApplyFlow(t *testing.T) {
	r, credit := setupRouter(t)

	w, _ := do(t, r, http.MethodPut, "/promotions/P1", promoBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env := do(t, r, http.MethodGet, "/promotions", "")
	require.Equal(t, http.StatusOK, w.Code)
	var promos []domain.Promotion
	require.NoError(t, json.Unmarshal(env.Data, &promos))
	require.Len(t, promos, 1)
	assert.Equal(t, "P1", promos[0].ID)

	// Evento inyectado: se aplica la promoción
	w, env = do(t, r, http.MethodPost, "/events/transaction-posted", txnBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result struct {
		EventID string         `json:"eventId"`
		Outcome domain.Outcome `json:"outcome"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, "transaction.posted-1001", result.EventID)
	assert.Equal(t, domain.OutcomeApplied, result.Outcome)

	require.Len(t, credit.credits, 1)
	assert.Equal(t, int64(20), credit.credits[0].IssuerAccountID)
	assert.Equal(t, int64(10), credit.credits[0].MerchantAccountID)
	assert.True(t, decimal.RequireFromString("10").Equal(credit.credits[0].Amount))

	w, env = do(t, r, http.MethodGet, "/applications?transactionId=1001", "")
	require.Equal(t, http.StatusOK, w.Code)
	var apps []domain.PromotionApplication
	require.NoError(t, json.Unmarshal(env.Data, &apps))
	require.Len(t, apps, 1)
	assert.Equal(t, domain.ApplicationApplied, apps[0].Status)
	assert.Equal(t, "P1:1001", apps[0].IdempotencyKey)

	w, env = do(t, r, http.MethodGet, "/processed-events/transaction.posted-1001", "")
	require.Equal(t, http.StatusOK, w.Code)
	var processed domain.ProcessedEvent
	require.NoError(t, json.Unmarshal(env.Data, &processed))
	assert.Equal(t, domain.OutcomeApplied, processed.Status)

	w, env = do(t, r, http.MethodGet, "/outbox?status=PENDING", "")
	require.Equal(t, http.StatusOK, w.Code)
	var outbox []sharedDomain.OutboxEvent
	require.NoError(t, json.Unmarshal(env.Data, &outbox))
	require.Len(t, outbox, 1)
	assert.Equal(t, domain.PromotionApplied, outbox[0].EventType)
	assert.Equal(t, "1001", outbox[0].AggregateID)

	// Reentrega: DUPLICATE sin nuevo abono
	w, env = do(t, r, http.MethodPost, "/events/transaction-posted", txnBody)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, domain.OutcomeDuplicate, result.Outcome)
	assert.Len(t, credit.credits, 1)
}

func TestPromotionAPI_Validation(t *testing.T) {
	r, _ := setupRouter(t)

	invalidWindow := `{"name":"x","startDate":"2024-07-01T00:00:00Z","expiryDate":"2024-06-01T00:00:00Z","status":"ACTIVE"}`
	w, env := do(t, r, http.MethodPut, "/promotions/P2", invalidWindow)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.NotNil(t, env.Error)

	w, _ = do(t, r, http.MethodPut, "/promotions/P2", `{bad`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, r, http.MethodGet, "/applications?transactionId=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, r, http.MethodGet, "/processed-events/transaction.posted-999", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = do(t, r, http.MethodGet, "/outbox?status=DONE", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, r, http.MethodPost, "/events/transaction-posted", `{"transactionId":7,"type":"INBOUND","amount":"-5"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, _ = do(t, r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPromotionAPI_NoPromoAndIgnoredType(t *testing.T) {
	r, credit := setupRouter(t)

	w, env := do(t, r, http.MethodPost, "/events/transaction-posted", txnBody)
	require.Equal(t, http.StatusOK, w.Code)
	var result struct {
		Outcome domain.Outcome `json:"outcome"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, domain.OutcomeNoPromo, result.Outcome)

	other := `{"transactionId":1002,"type":"OUTBOUND","issuerAccountId":10,"merchantAccountId":20,"amount":"200.00","currency":"USD","createdAt":"2024-06-15T12:00:00Z"}`
	_, env = do(t, r, http.MethodPost, "/events/transaction-posted", other)
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, domain.OutcomeIgnoredType, result.Outcome)
	assert.Empty(t, credit.credits)
}
