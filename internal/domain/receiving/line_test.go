package receiving

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotledger/internal/core/apperror"
	"lotledger/internal/core/id"
	"lotledger/internal/core/types"
)

func TestLine_Summarize(t *testing.T) {
	line := Line{
		GRNLineID:          id.New(),
		OrderedQuantity:    types.NewQuantity(100),
		OrderedWeight:      types.NewQuantity(5000),
		PreviouslyReceived: types.NewQuantity(60),
		PreviousWeight:     types.NewQuantity(3000),
		ReceivingNow:       types.NewQuantity(40),
	}

	summary, err := line.Summarize()
	require.NoError(t, err)

	assert.Equal(t, types.NewQuantity(0), summary.PendingQuantity)
	assert.Equal(t, 100, summary.CompletionPercentage)
	assert.Equal(t, types.NewQuantity(2000), summary.ReceivingNowWeight)
	assert.Equal(t, types.NewQuantity(0), summary.PendingWeight)
}

func TestLine_OverReceiptRejected(t *testing.T) {
	line := Line{
		GRNLineID:          id.New(),
		OrderedQuantity:    types.NewQuantity(100),
		PreviouslyReceived: types.NewQuantity(60),
		ReceivingNow:       types.NewQuantity(50),
	}

	_, err := line.Summarize()
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeBusinessRule, appErr.Code)
}

func TestLine_NonPositiveQuantityRejected(t *testing.T) {
	line := Line{
		GRNLineID:       id.New(),
		OrderedQuantity: types.NewQuantity(100),
		ReceivingNow:    types.NewQuantity(0),
	}

	_, err := line.Summarize()
	assert.True(t, apperror.IsValidation(err))
}

func TestLine_WeightProportionality(t *testing.T) {
	line := Line{
		GRNLineID:       id.New(),
		OrderedQuantity: types.NewQuantity(100),
		OrderedWeight:   types.NewQuantity(5000),
		ReceivingNow:    types.NewQuantity(25),
	}

	summary, err := line.Summarize()
	require.NoError(t, err)

	assert.Equal(t, types.NewQuantity(1250), summary.ReceivingNowWeight)
	assert.Equal(t, types.NewQuantity(75), summary.PendingQuantity)
	assert.Equal(t, 25, summary.CompletionPercentage)
}

func TestLine_WeightOverride(t *testing.T) {
	override := types.NewQuantity(1300)
	line := Line{
		GRNLineID:          id.New(),
		OrderedQuantity:    types.NewQuantity(100),
		OrderedWeight:      types.NewQuantity(5000),
		ReceivingNow:       types.NewQuantity(25),
		ReceivingNowWeight: &override,
	}

	summary, err := line.Summarize()
	require.NoError(t, err)

	// Pending weight recomputed from the override, not the estimate.
	assert.Equal(t, types.NewQuantity(1300), summary.ReceivingNowWeight)
	assert.Equal(t, types.NewQuantity(3700), summary.PendingWeight)
}

func TestLine_ZeroOrderedQuantity(t *testing.T) {
	line := Line{
		GRNLineID:    id.New(),
		ReceivingNow: types.NewQuantity(1),
	}

	// Nothing ordered means nothing may be received.
	_, err := line.Summarize()
	require.Error(t, err)

	assert.Equal(t, float64(0), line.WeightPerUnit())
	assert.Equal(t, 0, line.CompletionPercentage())
}

func TestLine_NegativeWeightOverrideRejected(t *testing.T) {
	override := types.NewQuantity(-1)
	line := Line{
		GRNLineID:          id.New(),
		OrderedQuantity:    types.NewQuantity(10),
		ReceivingNow:       types.NewQuantity(5),
		ReceivingNowWeight: &override,
	}

	_, err := line.Summarize()
	assert.True(t, apperror.IsValidation(err))
}
