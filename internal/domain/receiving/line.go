// Package receiving turns "ordered vs. previously received vs. receiving
// now" into pending figures and feeds confirmed receipts into the lot
// aggregate. It is the sole legitimate producer of received movements.
package receiving

import (
	"math"

	"lotledger/internal/core/apperror"
	"lotledger/internal/core/id"
	"lotledger/internal/core/types"
)

// Line is one goods-receipt line being received against a purchase
// order. Ephemeral: the caller supplies the stored figures, the line
// derives the rest.
type Line struct {
	GRNLineID  id.ID `json:"grnLineId"`
	ProductID  id.ID `json:"productId"`
	SupplierID id.ID `json:"supplierId"`

	OrderedQuantity types.Quantity `json:"orderedQuantity"`
	OrderedWeight   types.Quantity `json:"orderedWeight"`

	PreviouslyReceived types.Quantity `json:"previouslyReceived"`
	PreviousWeight     types.Quantity `json:"previousWeight"`

	ReceivingNow types.Quantity `json:"receivingNowQuantity"`

	// ReceivingNowWeight overrides the proportional weight estimate when
	// set; pending weight is then recomputed from the override.
	ReceivingNowWeight *types.Quantity `json:"receivingNowWeight,omitempty"`
}

// Summary is the derived view of a line: what a confirmation of
// ReceivingNow would leave outstanding.
type Summary struct {
	ReceivingNowQuantity types.Quantity `json:"receivingNowQuantity"`
	ReceivingNowWeight   types.Quantity `json:"receivingNowWeight"`
	PendingQuantity      types.Quantity `json:"pendingQuantity"`
	PendingWeight        types.Quantity `json:"pendingWeight"`
	CompletionPercentage int            `json:"completionPercentage"`
}

// RemainingQuantity is what may still be received against the order.
func (l Line) RemainingQuantity() types.Quantity {
	return l.OrderedQuantity - l.PreviouslyReceived
}

// WeightPerUnit is the ordered weight spread over the ordered quantity,
// 0 when nothing was ordered.
func (l Line) WeightPerUnit() float64 {
	if !l.OrderedQuantity.IsPositive() {
		return 0
	}
	return l.OrderedWeight.Float64() / l.OrderedQuantity.Float64()
}

// EffectiveWeight is the weight being received now: the explicit
// override when given, otherwise the proportional estimate.
func (l Line) EffectiveWeight() types.Quantity {
	if l.ReceivingNowWeight != nil {
		return *l.ReceivingNowWeight
	}
	return types.NewQuantityFromFloat64(l.ReceivingNow.Float64() * l.WeightPerUnit())
}

// CompletionPercentage is how much of the order would be received after
// confirming ReceivingNow, rounded to whole percent. 0 when nothing was
// ordered.
func (l Line) CompletionPercentage() int {
	if !l.OrderedQuantity.IsPositive() {
		return 0
	}
	received := l.PreviouslyReceived + l.ReceivingNow
	return int(math.Round(100 * received.Float64() / l.OrderedQuantity.Float64()))
}

// Validate rejects quantities that would drive the pending figure
// negative. Over-receipt is rejected outright, never silently clamped.
func (l Line) Validate() error {
	if !l.ReceivingNow.IsPositive() {
		return apperror.NewValidation("receiving quantity must be positive").
			WithDetail("receivingNowQuantity", l.ReceivingNow.String())
	}
	if remaining := l.RemainingQuantity(); l.ReceivingNow > remaining {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule, "receiving quantity exceeds remaining ordered quantity").
			WithDetail("grn_line_id", l.GRNLineID.String()).
			WithDetail("requested", l.ReceivingNow.String()).
			WithDetail("remaining", remaining.String())
	}
	if l.ReceivingNowWeight != nil && l.ReceivingNowWeight.IsNegative() {
		return apperror.NewValidation("weight override must not be negative").
			WithDetail("receivingNowWeight", l.ReceivingNowWeight.String())
	}
	return nil
}

// Summarize validates the line and computes its derived figures.
func (l Line) Summarize() (Summary, error) {
	if err := l.Validate(); err != nil {
		return Summary{}, err
	}

	weight := l.EffectiveWeight()
	pendingWeight := l.OrderedWeight - l.PreviousWeight - weight
	if pendingWeight.IsNegative() {
		pendingWeight = 0
	}

	return Summary{
		ReceivingNowQuantity: l.ReceivingNow,
		ReceivingNowWeight:   weight,
		PendingQuantity:      l.OrderedQuantity - l.PreviouslyReceived - l.ReceivingNow,
		PendingWeight:        pendingWeight,
		CompletionPercentage: l.CompletionPercentage(),
	}, nil
}
