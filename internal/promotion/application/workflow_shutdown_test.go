package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davicafu/promolab/internal/promotion/domain"
	"github.com/davicafu/promolab/internal/promotion/infra/outbound/db/sqlrepo"
	"github.com/davicafu/promolab/internal/shared/infra/platform/db/sqldb"
)

// Workflow sobre SQLite real: WithinTx abre una transacción de verdad.
func newSQLiteWorkflow(t *testing.T, credit domain.CreditClient) (*WorkflowService, *sqldb.DB) {
	t.Helper()
	ctx := context.Background()
	db, err := sqldb.Open(ctx, sqldb.SQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlrepo.InitSchema(ctx, db))

	promos := sqlrepo.NewPromotionRepo(db)
	require.NoError(t, promos.Upsert(ctx, tenPercentCappedAtFive()))

	log := zap.NewNop()
	svc := NewWorkflowService(
		NewIdempotencyLedger(sqlrepo.NewProcessedEventRepo(db)),
		NewPromotionCatalog(promos, nil, 0, log),
		sqlrepo.NewApplicationRepo(db),
		sqldb.NewOutboxRepo(db),
		db,
		NewEligibilityEvaluator(log),
		NewPercentageCalculator(log),
		credit,
		log,
	)
	return svc, db
}

func TestProcess_CancelAfterCreditStillPersists(t *testing.T) {
	// Arrange
	credit := new(MockCreditClient)
	svc, db := newSQLiteWorkflow(t, credit)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	evt := newEvent("100.00", 200, inWindow)

	// El apagado llega justo después de un abono correcto.
	credit.On("CreateCashback", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(nil).Once()

	// Act
	outcome, err := svc.ProcessTransactionPosted(ctx, evt, "hash-1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeApplied, outcome)

	// La reentrega no vuelve a abonar.
	outcome, err = svc.ProcessTransactionPosted(context.Background(), evt, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDuplicate, outcome)
	credit.AssertNumberOfCalls(t, "CreateCashback", 1)

	apps, err := sqlrepo.NewApplicationRepo(db).ListByTransaction(context.Background(), evt.TransactionID)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, domain.ApplicationApplied, apps[0].Status)

	pending, err := sqldb.NewOutboxRepo(db).FetchPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestProcess_CanceledBeforeStartStillReachesOutcome(t *testing.T) {
	credit := new(MockCreditClient)
	svc, _ := newSQLiteWorkflow(t, credit)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	credit.On("CreateCashback", mock.MatchedBy(func(ctx context.Context) bool {
		return ctx.Err() == nil
	}), mock.Anything).Return(nil).Once()

	outcome, err := svc.ProcessTransactionPosted(ctx, newEvent("100.00", 200, inWindow), "hash-2")

	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeApplied, outcome)
	credit.AssertExpectations(t)
}
