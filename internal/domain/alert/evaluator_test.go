package alert_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotledger/internal/core/id"
	"lotledger/internal/core/types"
	"lotledger/internal/domain/alert"
	"lotledger/internal/domain/lot"
)

func newEvaluator(t *testing.T) *alert.Evaluator {
	t.Helper()
	e, err := alert.NewDefaultEvaluator(alert.DefaultConfig())
	require.NoError(t, err)
	return e
}

func newLot(current, reorder int64) *lot.Lot {
	return &lot.Lot{
		ID:              id.New(),
		Number:          "LOT-2026-00001",
		CurrentQuantity: types.NewQuantity(current),
		ReorderLevel:    types.NewQuantity(reorder),
		Status:          lot.StatusActive,
		QualityStatus:   lot.QualityPassed,
	}
}

func TestLowStockRule(t *testing.T) {
	e := newEvaluator(t)
	now := time.Now().UTC()

	l := newLot(10, 20)
	raised, err := e.Evaluate(l, now)
	require.NoError(t, err)
	require.Len(t, raised, 1)
	assert.Equal(t, lot.AlertLowStock, raised[0].Type)
	assert.Equal(t, l.ID, raised[0].LotID)

	// No threshold, no alert.
	l = newLot(0, 0)
	raised, err = e.Evaluate(l, now)
	require.NoError(t, err)
	assert.Empty(t, raised)

	// Above threshold, no alert.
	l = newLot(100, 20)
	raised, err = e.Evaluate(l, now)
	require.NoError(t, err)
	assert.Empty(t, raised)
}

func TestLowStockRule_IdempotentWhileOpen(t *testing.T) {
	e := newEvaluator(t)
	now := time.Now().UTC()
	l := newLot(10, 20)

	raised, err := e.Evaluate(l, now)
	require.NoError(t, err)
	require.Len(t, raised, 1)

	// Still below threshold: the open alert is not duplicated.
	raised, err = e.Evaluate(l, now)
	require.NoError(t, err)
	assert.Empty(t, raised)
	assert.Len(t, l.Alerts, 1)
}

func TestLowStockRule_ReraisedAfterAcknowledgement(t *testing.T) {
	e := newEvaluator(t)
	now := time.Now().UTC()
	l := newLot(10, 20)

	_, err := e.Evaluate(l, now)
	require.NoError(t, err)
	require.Len(t, l.Alerts, 1)

	l.Alerts[0].Acknowledged = true
	l.Alerts[0].AcknowledgedBy = "tester"

	raised, err := e.Evaluate(l, now)
	require.NoError(t, err)
	require.Len(t, raised, 1)
	assert.Len(t, l.Alerts, 2)
}

func TestExpiryRule(t *testing.T) {
	e := newEvaluator(t)
	now := time.Now().UTC()

	soon := now.Add(3 * 24 * time.Hour)
	l := newLot(100, 0)
	l.ExpiryDate = &soon

	raised, err := e.Evaluate(l, now)
	require.NoError(t, err)
	require.Len(t, raised, 1)
	assert.Equal(t, lot.AlertExpiry, raised[0].Type)

	far := now.Add(60 * 24 * time.Hour)
	l = newLot(100, 0)
	l.ExpiryDate = &far

	raised, err = e.Evaluate(l, now)
	require.NoError(t, err)
	assert.Empty(t, raised)

	// No expiry date at all.
	l = newLot(100, 0)
	raised, err = e.Evaluate(l, now)
	require.NoError(t, err)
	assert.Empty(t, raised)
}

func TestQualityHoldRule(t *testing.T) {
	e := newEvaluator(t)
	now := time.Now().UTC()

	l := newLot(100, 0)
	l.QualityStatus = lot.QualityQuarantine

	raised, err := e.Evaluate(l, now)
	require.NoError(t, err)
	require.Len(t, raised, 1)
	assert.Equal(t, lot.AlertQualityHold, raised[0].Type)
}

func TestCustomRule(t *testing.T) {
	e, err := alert.NewEvaluator(alert.DefaultConfig(), []alert.Rule{
		{
			Type:       lot.AlertLowStock,
			Expression: "available_quantity <= 5.0",
			Message:    "almost nothing left to promise",
		},
	})
	require.NoError(t, err)

	l := newLot(10, 0)
	l.ReservedQuantity = types.NewQuantity(6)

	raised, err := e.Evaluate(l, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, raised, 1)
	assert.Contains(t, raised[0].Message, "almost nothing left to promise")
}

func TestInvalidExpressionFailsFast(t *testing.T) {
	_, err := alert.NewEvaluator(alert.DefaultConfig(), []alert.Rule{
		{Type: lot.AlertLowStock, Expression: "no_such_var > 1.0"},
	})
	assert.Error(t, err)
}
