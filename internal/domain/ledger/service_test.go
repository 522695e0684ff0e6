package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotledger/internal/core/apperror"
	"lotledger/internal/core/id"
	"lotledger/internal/core/types"
	"lotledger/internal/domain/ledger"
	"lotledger/internal/infrastructure/storage/memory"
)

func newService() (*ledger.Service, id.ID) {
	return ledger.NewService(memory.NewMovementRepo(memory.NewStore())), id.New()
}

func balance(lotID id.ID, onHand, reserved int64) ledger.Balance {
	return ledger.Balance{
		LotID:    lotID,
		OnHand:   types.NewQuantity(onHand),
		Reserved: types.NewQuantity(reserved),
	}
}

func TestEffectOf(t *testing.T) {
	tests := []struct {
		typ       ledger.MovementType
		direction ledger.Direction
		consumes  bool
	}{
		{ledger.TypeReceived, ledger.DirectionIncrease, false},
		{ledger.TypeReturned, ledger.DirectionIncrease, false},
		{ledger.TypeTransferIn, ledger.DirectionIncrease, false},
		{ledger.TypeIssued, ledger.DirectionDecrease, true},
		{ledger.TypeDamaged, ledger.DirectionDecrease, true},
		{ledger.TypeTransferOut, ledger.DirectionDecrease, true},
	}
	for _, tt := range tests {
		eff, err := ledger.EffectOf(tt.typ, "")
		require.NoError(t, err, "type %s", tt.typ)
		assert.Equal(t, tt.direction, eff.Direction, "type %s", tt.typ)
		assert.Equal(t, tt.consumes, eff.ConsumesAvailable, "type %s", tt.typ)
	}

	eff, err := ledger.EffectOf(ledger.TypeAdjusted, ledger.DirectionDecrease)
	require.NoError(t, err)
	assert.Equal(t, ledger.DirectionDecrease, eff.Direction)
	assert.False(t, eff.ConsumesAvailable)

	_, err = ledger.EffectOf(ledger.TypeAdjusted, "")
	assert.True(t, apperror.IsValidation(err))

	_, err = ledger.EffectOf("teleported", "")
	assert.True(t, apperror.IsValidation(err))
}

func TestAppend_BalanceAfter(t *testing.T) {
	svc, lotID := newService()
	ctx := context.Background()

	m, err := svc.Append(ctx, balance(lotID, 100, 0), ledger.AppendRequest{
		Type:        ledger.TypeIssued,
		Quantity:    types.NewQuantity(30),
		PerformedBy: "tester",
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.DirectionDecrease, m.Direction)
	assert.Equal(t, types.NewQuantity(70), m.BalanceAfter)
	assert.Equal(t, types.NewQuantity(-30), m.SignedQuantity())
}

func TestAppend_ReservedStockProtected(t *testing.T) {
	svc, lotID := newService()
	ctx := context.Background()

	// Issue may not touch reserved stock.
	_, err := svc.Append(ctx, balance(lotID, 100, 40), ledger.AppendRequest{
		Type:        ledger.TypeIssued,
		Quantity:    types.NewQuantity(70),
		PerformedBy: "tester",
	})
	assert.True(t, apperror.IsInsufficientAvailable(err))

	// A negative adjustment may, down to zero on hand.
	m, err := svc.Append(ctx, balance(lotID, 100, 40), ledger.AppendRequest{
		Type:        ledger.TypeAdjusted,
		Direction:   ledger.DirectionDecrease,
		Quantity:    types.NewQuantity(70),
		PerformedBy: "tester",
	})
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(30), m.BalanceAfter)

	_, err = svc.Append(ctx, balance(lotID, 100, 40), ledger.AppendRequest{
		Type:        ledger.TypeAdjusted,
		Direction:   ledger.DirectionDecrease,
		Quantity:    types.NewQuantity(101),
		PerformedBy: "tester",
	})
	assert.True(t, apperror.IsInsufficientStock(err))
}

func TestAppend_Validation(t *testing.T) {
	svc, lotID := newService()
	ctx := context.Background()

	_, err := svc.Append(ctx, balance(lotID, 100, 0), ledger.AppendRequest{
		Type:        ledger.TypeIssued,
		Quantity:    types.NewQuantity(0),
		PerformedBy: "tester",
	})
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.Append(ctx, balance(lotID, 100, 0), ledger.AppendRequest{
		Type:     ledger.TypeIssued,
		Quantity: types.NewQuantity(1),
	})
	assert.True(t, apperror.IsValidation(err), "performedBy is required")
}

func TestReplay(t *testing.T) {
	svc, lotID := newService()
	ctx := context.Background()

	bal := balance(lotID, 100, 0)
	m, err := svc.Append(ctx, bal, ledger.AppendRequest{
		Type:        ledger.TypeIssued,
		Quantity:    types.NewQuantity(30),
		PerformedBy: "tester",
	})
	require.NoError(t, err)

	bal.OnHand = m.BalanceAfter
	_, err = svc.Append(ctx, bal, ledger.AppendRequest{
		Type:        ledger.TypeReturned,
		Quantity:    types.NewQuantity(5),
		PerformedBy: "tester",
	})
	require.NoError(t, err)

	replayed, err := svc.Replay(ctx, lotID, types.NewQuantity(100))
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(75), replayed)
}
