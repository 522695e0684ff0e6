package lot_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotledger/internal/core/apperror"
	"lotledger/internal/core/id"
	"lotledger/internal/core/lock"
	"lotledger/internal/core/types"
	"lotledger/internal/domain/alert"
	"lotledger/internal/domain/ledger"
	"lotledger/internal/domain/lot"
	"lotledger/internal/infrastructure/storage/memory"
)

type fixture struct {
	lots    *lot.Service
	store   *memory.Store
	auditor *memory.AuditRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	evaluator, err := alert.NewDefaultEvaluator(alert.DefaultConfig())
	require.NoError(t, err)

	auditor := memory.NewAuditRecorder(store)
	svc := lot.NewService(
		memory.NewLotRepo(store),
		ledger.NewService(memory.NewMovementRepo(store)),
		evaluator,
		memory.NewNumberGenerator(store),
		lock.NewKeyed(),
		memory.NewTxManager(store),
		auditor,
	)

	return &fixture{lots: svc, store: store, auditor: auditor}
}

func (f *fixture) createLot(t *testing.T, quantity, reorderLevel int64) *lot.Lot {
	t.Helper()

	l, err := f.lots.CreateFromReceipt(context.Background(), lot.CreateFromReceiptParams{
		GRNLineID:    id.New(),
		ProductID:    id.New(),
		SupplierID:   id.New(),
		Quantity:     types.NewQuantity(quantity),
		Weight:       types.NewQuantity(quantity * 10),
		UnitCost:     types.NewMoney(2.5),
		Location:     lot.Location{Zone: "A", Rack: "1"},
		ReorderLevel: types.NewQuantity(reorderLevel),
		PerformedBy:  "tester",
	})
	require.NoError(t, err)
	return l
}

func TestCreateFromReceipt(t *testing.T) {
	f := newFixture(t)
	l := f.createLot(t, 100, 0)

	assert.Equal(t, types.NewQuantity(100), l.ReceivedQuantity)
	assert.Equal(t, types.NewQuantity(100), l.CurrentQuantity)
	assert.Equal(t, lot.StatusActive, l.Status)
	assert.Equal(t, "LOT", l.Number[:3])

	// The goods receipt documents the intake; the ledger starts empty.
	movements, err := f.lots.ListMovements(context.Background(), l.ID, ledger.Filter{})
	require.NoError(t, err)
	assert.Empty(t, movements)
}

func TestCreateFromReceipt_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.lots.CreateFromReceipt(ctx, lot.CreateFromReceiptParams{
		GRNLineID:   id.New(),
		ProductID:   id.New(),
		Quantity:    types.NewQuantity(0),
		Location:    lot.Location{Zone: "A"},
		PerformedBy: "tester",
	})
	assert.True(t, apperror.IsValidation(err))

	_, err = f.lots.CreateFromReceipt(ctx, lot.CreateFromReceiptParams{
		GRNLineID:   id.New(),
		ProductID:   id.New(),
		Quantity:    types.NewQuantity(10),
		PerformedBy: "tester",
	})
	assert.True(t, apperror.IsValidation(err), "missing location must be rejected")

	_, err = f.lots.CreateFromReceipt(ctx, lot.CreateFromReceiptParams{
		GRNLineID: id.New(),
		ProductID: id.New(),
		Quantity:  types.NewQuantity(10),
		Location:  lot.Location{Zone: "A"},
	})
	assert.True(t, apperror.IsValidation(err), "missing performedBy must be rejected")
}

func TestIssue_AvailabilityCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.createLot(t, 100, 0)

	_, err := f.lots.Reserve(ctx, l.ID, types.NewQuantity(20), "SO-1", "tester")
	require.NoError(t, err)

	// Available is 80: issuing 90 must fail and change nothing.
	_, err = f.lots.Issue(ctx, l.ID, lot.MovementParams{
		Quantity:    types.NewQuantity(90),
		PerformedBy: "tester",
	})
	assert.True(t, apperror.IsInsufficientAvailable(err))

	unchanged, err := f.lots.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(100), unchanged.CurrentQuantity)
	assert.Equal(t, types.NewQuantity(20), unchanged.ReservedQuantity)

	// Issuing exactly the available quantity succeeds.
	m, err := f.lots.Issue(ctx, l.ID, lot.MovementParams{
		Quantity:    types.NewQuantity(80),
		PerformedBy: "tester",
	})
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(20), m.BalanceAfter)

	after, err := f.lots.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(20), after.CurrentQuantity)
	assert.Equal(t, types.NewQuantity(0), after.AvailableQuantity())
}

func TestConcurrentIssues_ExactlyOneSucceeds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.createLot(t, 100, 0)

	// Each issue is valid alone, together they exceed on-hand stock.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.lots.Issue(ctx, l.ID, lot.MovementParams{
				Quantity:    types.NewQuantity(60),
				PerformedBy: "tester",
			})
		}(i)
	}
	wg.Wait()

	var succeeded, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case apperror.IsInsufficientAvailable(err):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, insufficient)

	after, err := f.lots.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(40), after.CurrentQuantity)
}

func TestAdjustDown_DipsIntoReservedAndClamps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.createLot(t, 100, 0)

	_, err := f.lots.Reserve(ctx, l.ID, types.NewQuantity(80), "SO-1", "tester")
	require.NoError(t, err)

	// Negative adjustment is not constrained by availability.
	_, err = f.lots.Adjust(ctx, l.ID, ledger.DirectionDecrease, lot.MovementParams{
		Quantity:    types.NewQuantity(50),
		PerformedBy: "tester",
	})
	require.NoError(t, err)

	after, err := f.lots.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(50), after.CurrentQuantity)
	assert.Equal(t, types.NewQuantity(50), after.ReservedQuantity, "reservation clamped to on-hand")

	// But never below zero on hand.
	_, err = f.lots.Adjust(ctx, l.ID, ledger.DirectionDecrease, lot.MovementParams{
		Quantity:    types.NewQuantity(60),
		PerformedBy: "tester",
	})
	assert.True(t, apperror.IsInsufficientStock(err))
}

func TestAdjust_RequiresDirection(t *testing.T) {
	f := newFixture(t)
	l := f.createLot(t, 10, 0)

	_, err := f.lots.Adjust(context.Background(), l.ID, "", lot.MovementParams{
		Quantity:    types.NewQuantity(1),
		PerformedBy: "tester",
	})
	assert.True(t, apperror.IsValidation(err))
}

func TestStatus_ConsumedWhenZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.createLot(t, 10, 0)

	_, err := f.lots.Issue(ctx, l.ID, lot.MovementParams{
		Quantity:    types.NewQuantity(10),
		PerformedBy: "tester",
	})
	require.NoError(t, err)

	after, err := f.lots.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, lot.StatusConsumed, after.Status)
}

func TestLedgerReplayInvariant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.createLot(t, 100, 0)

	_, err := f.lots.Issue(ctx, l.ID, lot.MovementParams{Quantity: types.NewQuantity(30), PerformedBy: "tester"})
	require.NoError(t, err)
	_, err = f.lots.ReturnStock(ctx, l.ID, lot.MovementParams{Quantity: types.NewQuantity(5), PerformedBy: "tester"})
	require.NoError(t, err)
	_, err = f.lots.Adjust(ctx, l.ID, ledger.DirectionDecrease, lot.MovementParams{Quantity: types.NewQuantity(10), PerformedBy: "tester"})
	require.NoError(t, err)
	_, err = f.lots.MarkDamaged(ctx, l.ID, lot.MovementParams{Quantity: types.NewQuantity(2), PerformedBy: "tester"})
	require.NoError(t, err)

	require.NoError(t, f.lots.VerifyLedger(ctx, l.ID))

	after, err := f.lots.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(63), after.CurrentQuantity)
}

func TestRecordMovement_RejectsReservedTypes(t *testing.T) {
	f := newFixture(t)
	l := f.createLot(t, 10, 0)
	ctx := context.Background()

	params := lot.MovementParams{Quantity: types.NewQuantity(1), PerformedBy: "tester"}

	_, err := f.lots.RecordMovement(ctx, l.ID, ledger.TypeReceived, "", params)
	assert.True(t, apperror.IsValidation(err))

	_, err = f.lots.RecordMovement(ctx, l.ID, ledger.TypeTransferOut, "", params)
	assert.True(t, apperror.IsValidation(err))
}

func TestReserveRelease_Bounds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.createLot(t, 50, 0)

	_, err := f.lots.Reserve(ctx, l.ID, types.NewQuantity(60), "SO-1", "tester")
	assert.True(t, apperror.IsInsufficientAvailable(err))

	reserved, err := f.lots.Reserve(ctx, l.ID, types.NewQuantity(50), "SO-1", "tester")
	require.NoError(t, err)
	assert.Equal(t, lot.StatusReserved, reserved.Status)

	_, err = f.lots.Release(ctx, l.ID, types.NewQuantity(60), "SO-1", "tester")
	assert.True(t, apperror.IsValidation(err))

	released, err := f.lots.Release(ctx, l.ID, types.NewQuantity(50), "SO-1", "tester")
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(0), released.ReservedQuantity)
	assert.Equal(t, lot.StatusActive, released.Status)
}

func TestMovementHistory_NewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.createLot(t, 100, 0)

	_, err := f.lots.Issue(ctx, l.ID, lot.MovementParams{Quantity: types.NewQuantity(10), PerformedBy: "tester"})
	require.NoError(t, err)
	_, err = f.lots.Issue(ctx, l.ID, lot.MovementParams{Quantity: types.NewQuantity(20), PerformedBy: "tester"})
	require.NoError(t, err)

	movements, err := f.lots.ListMovements(ctx, l.ID, ledger.Filter{})
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, types.NewQuantity(20), movements[0].Quantity)
	assert.Equal(t, types.NewQuantity(10), movements[1].Quantity)

	limited, err := f.lots.ListMovements(ctx, l.ID, ledger.Filter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, types.NewQuantity(10), limited[0].Quantity)
}

func TestListMovements_UnknownLot(t *testing.T) {
	f := newFixture(t)

	_, err := f.lots.ListMovements(context.Background(), id.New(), ledger.Filter{})
	assert.True(t, apperror.IsNotFound(err))
}

func TestLowStockAlert_RaisedOnIssue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.createLot(t, 100, 30)

	_, err := f.lots.Issue(ctx, l.ID, lot.MovementParams{
		Quantity:    types.NewQuantity(80),
		PerformedBy: "tester",
	})
	require.NoError(t, err)

	after, err := f.lots.Get(ctx, l.ID)
	require.NoError(t, err)
	require.NotNil(t, after.OpenAlert(lot.AlertLowStock))

	alerts, err := f.lots.ListLowStockAlerts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, l.ID, alerts[0].LotID)
}

func TestAcknowledgeAlert_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Created at or below the reorder level, so the alert exists already.
	l := f.createLot(t, 10, 20)
	created, err := f.lots.Get(ctx, l.ID)
	require.NoError(t, err)
	open := created.OpenAlert(lot.AlertLowStock)
	require.NotNil(t, open)

	acked, err := f.lots.AcknowledgeAlert(ctx, l.ID, open.ID, "tester")
	require.NoError(t, err)
	assert.True(t, acked.Acknowledged)
	assert.Equal(t, "tester", acked.AcknowledgedBy)
	firstDate := acked.AcknowledgedDate
	require.NotNil(t, firstDate)

	// Retrying is a no-op that returns the alert unchanged.
	again, err := f.lots.AcknowledgeAlert(ctx, l.ID, open.ID, "someone-else")
	require.NoError(t, err)
	assert.Equal(t, "tester", again.AcknowledgedBy)
	assert.Equal(t, firstDate, again.AcknowledgedDate)

	_, err = f.lots.AcknowledgeAlert(ctx, l.ID, id.New(), "tester")
	assert.True(t, apperror.IsNotFound(err))
}

func TestTotalCost(t *testing.T) {
	l := &lot.Lot{
		CurrentQuantity: types.NewQuantityFromFloat64(12.5),
		UnitCost:        types.MustMoney("2.50"),
	}
	assert.True(t, types.MustMoney("31.25").Equal(l.TotalCost()))

	l.CurrentQuantity = types.NewQuantity(0)
	assert.True(t, types.ZeroMoney().Equal(l.TotalCost()))
}

func TestWeightTracksQuantityProportionally(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.createLot(t, 100, 0) // weight 1000

	_, err := f.lots.Issue(ctx, l.ID, lot.MovementParams{
		Quantity:    types.NewQuantity(25),
		PerformedBy: "tester",
	})
	require.NoError(t, err)

	after, err := f.lots.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(750), after.Weight)
}
