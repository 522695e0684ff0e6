package receiving_test

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
	"lotledger/internal/domain/receiving"
	"lotledger/internal/infrastructure/storage/memory"
)

func newReconciler(t *testing.T) (*receiving.Reconciler, *lot.Service) {
	t.Helper()

	store := memory.NewStore()
	evaluator, err := alert.NewDefaultEvaluator(alert.DefaultConfig())
	require.NoError(t, err)

	lots := lot.NewService(
		memory.NewLotRepo(store),
		ledger.NewService(memory.NewMovementRepo(store)),
		evaluator,
		memory.NewNumberGenerator(store),
		lock.NewKeyed(),
		memory.NewTxManager(store),
		memory.NewAuditRecorder(store),
	)
	return receiving.NewReconciler(lots), lots
}

func TestConfirm_FirstReceiptCreatesLot(t *testing.T) {
	reconciler, lots := newReconciler(t)
	ctx := context.Background()
	grnLine := id.New()

	result, err := reconciler.Confirm(ctx, receiving.ConfirmParams{
		Line: receiving.Line{
			GRNLineID:       grnLine,
			ProductID:       id.New(),
			SupplierID:      id.New(),
			OrderedQuantity: types.NewQuantity(100),
			OrderedWeight:   types.NewQuantity(5000),
			ReceivingNow:    types.NewQuantity(60),
		},
		UnitCost:    types.MustMoney("2.50"),
		Location:    lot.Location{Zone: "A", Rack: "1"},
		PerformedBy: "tester",
	})
	require.NoError(t, err)

	assert.True(t, result.Created)
	assert.Equal(t, types.NewQuantity(60), result.Lot.ReceivedQuantity)
	assert.Equal(t, types.NewQuantity(60), result.Lot.CurrentQuantity)
	assert.Equal(t, types.NewQuantity(3000), result.Lot.Weight)
	assert.Equal(t, types.NewQuantity(40), result.Summary.PendingQuantity)
	assert.Equal(t, 60, result.Summary.CompletionPercentage)

	// Lot creation writes no movement.
	moves, err := lots.ListMovements(ctx, result.Lot.ID, ledger.Filter{})
	require.NoError(t, err)
	assert.Empty(t, moves)
}

func TestConfirm_SubsequentReceiptAppendsMovement(t *testing.T) {
	reconciler, lots := newReconciler(t)
	ctx := context.Background()
	grnLine := id.New()
	productID := id.New()

	first, err := reconciler.Confirm(ctx, receiving.ConfirmParams{
		Line: receiving.Line{
			GRNLineID:       grnLine,
			ProductID:       productID,
			OrderedQuantity: types.NewQuantity(100),
			OrderedWeight:   types.NewQuantity(5000),
			ReceivingNow:    types.NewQuantity(60),
		},
		Location:    lot.Location{Zone: "A", Rack: "1"},
		PerformedBy: "tester",
	})
	require.NoError(t, err)

	second, err := reconciler.Confirm(ctx, receiving.ConfirmParams{
		Line: receiving.Line{
			GRNLineID:          grnLine,
			ProductID:          productID,
			OrderedQuantity:    types.NewQuantity(100),
			OrderedWeight:      types.NewQuantity(5000),
			PreviouslyReceived: types.NewQuantity(60),
			PreviousWeight:     types.NewQuantity(3000),
			ReceivingNow:       types.NewQuantity(40),
		},
		Location:    lot.Location{Zone: "A", Rack: "1"},
		PerformedBy: "tester",
	})
	require.NoError(t, err)

	assert.False(t, second.Created)
	assert.Equal(t, first.Lot.ID, second.Lot.ID)
	assert.Equal(t, types.NewQuantity(100), second.Lot.CurrentQuantity)
	assert.Equal(t, types.NewQuantity(5000), second.Lot.Weight)
	assert.Equal(t, 100, second.Summary.CompletionPercentage)

	moves, err := lots.ListMovements(ctx, second.Lot.ID, ledger.Filter{})
	require.NoError(t, err)
	require.Len(t, moves, 1)
	assert.Equal(t, ledger.TypeReceived, moves[0].Type)
	assert.Equal(t, types.NewQuantity(40), moves[0].Quantity)
}

func TestConfirm_ConcurrentFirstReceipts(t *testing.T) {
	reconciler, lots := newReconciler(t)
	ctx := context.Background()
	grnLine := id.New()
	productID := id.New()

	// All callers see the same stored figures, so every line alone is
	// valid; only one of them may create the lot.
	const confirms = 16
	results := make([]*receiving.Result, confirms)
	errs := make([]error, confirms)

	var wg sync.WaitGroup
	for i := 0; i < confirms; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = reconciler.Confirm(ctx, receiving.ConfirmParams{
				Line: receiving.Line{
					GRNLineID:       grnLine,
					ProductID:       productID,
					OrderedQuantity: types.NewQuantity(1000),
					ReceivingNow:    types.NewQuantity(10),
				},
				Location:    lot.Location{Zone: "A", Rack: "1"},
				PerformedBy: "tester",
			})
		}(i)
	}
	wg.Wait()

	var created int
	for i := range results {
		require.NoError(t, errs[i])
		if results[i].Created {
			created++
		}
	}
	assert.Equal(t, 1, created, "exactly one confirmation creates the lot")

	l, err := lots.Repo().GetByGRNLine(ctx, grnLine)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(confirms*10), l.CurrentQuantity)

	moves, err := lots.ListMovements(ctx, l.ID, ledger.Filter{})
	require.NoError(t, err)
	assert.Len(t, moves, confirms-1, "every confirmation after the first appends a movement")

	require.NoError(t, lots.VerifyLedger(ctx, l.ID))
}

func TestConfirm_OverReceiptRejected(t *testing.T) {
	reconciler, _ := newReconciler(t)

	_, err := reconciler.Confirm(context.Background(), receiving.ConfirmParams{
		Line: receiving.Line{
			GRNLineID:          id.New(),
			ProductID:          id.New(),
			OrderedQuantity:    types.NewQuantity(100),
			PreviouslyReceived: types.NewQuantity(60),
			ReceivingNow:       types.NewQuantity(50),
		},
		Location:    lot.Location{Zone: "A"},
		PerformedBy: "tester",
	})
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeBusinessRule, appErr.Code)
}

func TestPreview_TouchesNoState(t *testing.T) {
	reconciler, lots := newReconciler(t)
	grnLine := id.New()

	summary, err := reconciler.Preview(receiving.Line{
		GRNLineID:       grnLine,
		ProductID:       id.New(),
		OrderedQuantity: types.NewQuantity(100),
		ReceivingNow:    types.NewQuantity(25),
	})
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(75), summary.PendingQuantity)

	_, err = lots.Repo().GetByGRNLine(context.Background(), grnLine)
	assert.True(t, apperror.IsNotFound(err))
}
