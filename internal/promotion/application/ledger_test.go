package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davicafu/promolab/internal/promotion/domain"
	sharedDomain "github.com/davicafu/promolab/internal/shared/domain"
)

func TestLedger_MarkThenHas(t *testing.T) {
	ledger := NewIdempotencyLedger(newInMemoryProcessedRepo())
	ctx := context.Background()

	has, err := ledger.HasProcessed(ctx, "transaction.posted-1")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, ledger.MarkProcessed(ctx, "transaction.posted-1", "abc", domain.OutcomeNoPromo))

	has, err = ledger.HasProcessed(ctx, "transaction.posted-1")
	require.NoError(t, err)
	assert.True(t, has)

	seen, err := ledger.HasPayload(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestLedger_MarkTwiceIsConflict(t *testing.T) {
	ledger := NewIdempotencyLedger(newInMemoryProcessedRepo())
	ctx := context.Background()
	require.NoError(t, ledger.MarkProcessed(ctx, "e1", "", domain.OutcomeApplied))

	err := ledger.MarkProcessed(ctx, "e1", "", domain.OutcomeApplied)

	assert.ErrorIs(t, err, sharedDomain.ErrConflict)
}

func TestLedger_EmptyHashNeverMatches(t *testing.T) {
	ledger := NewIdempotencyLedger(newInMemoryProcessedRepo())
	ctx := context.Background()
	require.NoError(t, ledger.MarkProcessed(ctx, "e1", "", domain.OutcomeApplied))

	seen, err := ledger.HasPayload(ctx, "")

	require.NoError(t, err)
	assert.False(t, seen)
}
