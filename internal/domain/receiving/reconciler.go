package receiving

import (
	"context"
	"fmt"
	"time"

	"lotledger/internal/core/apperror"
	"lotledger/internal/core/types"
	"lotledger/internal/domain/lot"
	"lotledger/pkg/logger"
)

// Reconciler confirms receipts. The first receipt against a GRN line
// creates the lot; subsequent receipts append received movements to it.
type Reconciler struct {
	lots *lot.Service
}

// NewReconciler creates a receiving reconciler.
func NewReconciler(lots *lot.Service) *Reconciler {
	return &Reconciler{lots: lots}
}

// ConfirmParams carries the receipt-confirmation input: the line under
// receipt plus the lot attributes needed if this confirmation creates
// the lot.
type ConfirmParams struct {
	Line Line

	UnitCost      types.Money
	Location      lot.Location
	ReorderLevel  types.Quantity
	QualityStatus lot.QualityStatus
	ExpiryDate    *time.Time

	Reference   string
	Notes       string
	PerformedBy string
}

// Result is the outcome of a confirmed receipt.
type Result struct {
	Lot     *lot.Lot `json:"lot"`
	Summary Summary  `json:"summary"`

	// Created reports whether this confirmation created the lot.
	Created bool `json:"created"`
}

// Preview validates the line and returns its derived figures without
// touching any state.
func (r *Reconciler) Preview(line Line) (Summary, error) {
	return line.Summarize()
}

// Confirm validates the line and applies the receipt: a new lot when no
// lot exists for the GRN line yet, otherwise a received movement on the
// existing one.
func (r *Reconciler) Confirm(ctx context.Context, p ConfirmParams) (*Result, error) {
	summary, err := p.Line.Summarize()
	if err != nil {
		return nil, err
	}

	// The lookup and the create-or-append decision must be one exclusive
	// section per GRN line, or two first receipts could each observe no
	// lot and mint one apiece.
	release := r.lots.Locks().Lock(p.Line.GRNLineID)
	defer release()

	existing, err := r.lots.Repo().GetByGRNLine(ctx, p.Line.GRNLineID)
	switch {
	case err == nil:
		weight := summary.ReceivingNowWeight
		if _, err := r.lots.Receive(ctx, existing.ID, lot.MovementParams{
			Quantity:    summary.ReceivingNowQuantity,
			Reference:   p.Reference,
			Notes:       p.Notes,
			PerformedBy: p.PerformedBy,
			Weight:      &weight,
		}); err != nil {
			return nil, err
		}

		updated, err := r.lots.Get(ctx, existing.ID)
		if err != nil {
			return nil, err
		}

		logger.Info(ctx, "receipt appended to lot",
			"lot_id", updated.ID,
			"grn_line_id", p.Line.GRNLineID,
			"quantity", summary.ReceivingNowQuantity,
			"completion_pct", summary.CompletionPercentage,
		)
		return &Result{Lot: updated, Summary: summary}, nil

	case apperror.IsNotFound(err):
		created, err := r.lots.CreateFromReceipt(ctx, lot.CreateFromReceiptParams{
			GRNLineID:     p.Line.GRNLineID,
			ProductID:     p.Line.ProductID,
			SupplierID:    p.Line.SupplierID,
			Quantity:      summary.ReceivingNowQuantity,
			Weight:        summary.ReceivingNowWeight,
			UnitCost:      p.UnitCost,
			Location:      p.Location,
			ReorderLevel:  p.ReorderLevel,
			QualityStatus: p.QualityStatus,
			ExpiryDate:    p.ExpiryDate,
			PerformedBy:   p.PerformedBy,
		})
		if err != nil {
			return nil, err
		}

		logger.Info(ctx, "lot created by receipt confirmation",
			"lot_id", created.ID,
			"grn_line_id", p.Line.GRNLineID,
			"quantity", summary.ReceivingNowQuantity,
			"completion_pct", summary.CompletionPercentage,
		)
		return &Result{Lot: created, Summary: summary, Created: true}, nil

	default:
		return nil, fmt.Errorf("look up lot by GRN line: %w", err)
	}
}
