// Package transfer orchestrates cross-lot transfers and within-lot
// relocations.
//
// A lot-to-lot transfer is two ledger entries (transfer out, transfer in)
// applied under one transaction with both lots' sections held in a fixed
// global order, so stock is never lost in transit and concurrent transfers
// over the same pair cannot deadlock. A relocation changes only the
// location field: no quantity moves, so no ledger entry is written and
// the change goes to the audit trail instead.
package transfer

import (
	"context"
	"fmt"
	"strings"

	"lotledger/internal/core/apperror"
	"lotledger/internal/core/id"
	"lotledger/internal/core/tx"
	"lotledger/internal/core/types"
	"lotledger/internal/domain/audit"
	"lotledger/internal/domain/ledger"
	"lotledger/internal/domain/lot"
	"lotledger/pkg/logger"
)

// Request is an ephemeral transfer description. Exactly one of
// DestinationLotID (lot-to-lot) or NewLocation (relocation) must be set.
type Request struct {
	SourceLotID      id.ID
	Quantity         types.Quantity
	DestinationLotID *id.ID
	NewLocation      *lot.Location
	PerformedBy      string
	Notes            string
}

// Result reports the post-transfer balances. DestinationBalance is nil
// for relocations.
type Result struct {
	SourceBalance      types.Quantity
	DestinationBalance *types.Quantity
}

// Coordinator wraps lot aggregate calls into an all-or-nothing unit.
type Coordinator struct {
	lots    *lot.Service
	txm     tx.Manager
	auditor audit.Recorder
}

// NewCoordinator creates a transfer coordinator sharing the lot
// service's per-lot sections.
func NewCoordinator(lots *lot.Service, txm tx.Manager, auditor audit.Recorder) *Coordinator {
	if auditor == nil {
		auditor = audit.NopRecorder{}
	}
	return &Coordinator{lots: lots, txm: txm, auditor: auditor}
}

// Transfer executes a lot-to-lot transfer or a relocation.
func (c *Coordinator) Transfer(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.PerformedBy) == "" {
		return nil, apperror.NewValidation("performedBy is required").
			WithDetail("field", "performedBy")
	}

	switch {
	case req.DestinationLotID != nil && req.NewLocation != nil:
		return nil, apperror.NewValidation("specify either a destination lot or a new location, not both")
	case req.DestinationLotID != nil:
		return c.lotToLot(ctx, req)
	case req.NewLocation != nil:
		return c.relocate(ctx, req)
	default:
		return nil, apperror.NewValidation("destination lot or new location is required")
	}
}

func (c *Coordinator) lotToLot(ctx context.Context, req Request) (*Result, error) {
	if !req.Quantity.IsPositive() {
		return nil, apperror.NewValidation("quantity must be positive").
			WithDetail("quantity", req.Quantity.String())
	}
	destID := *req.DestinationLotID
	if destID == req.SourceLotID {
		return nil, apperror.NewValidation("source and destination lots must differ").
			WithDetail("lot_id", req.SourceLotID.String())
	}

	// Both sections in ascending id order, then both sides under one
	// transaction: a failure on the destination rolls the source back.
	release := c.lots.Locks().LockPair(req.SourceLotID, destID)
	defer release()

	reference := fmt.Sprintf("transfer %s -> %s", req.SourceLotID, destID)

	var result Result
	err := c.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		src, err := c.lots.Repo().GetByID(ctx, req.SourceLotID)
		if err != nil {
			return err
		}
		dst, err := c.lots.Repo().GetByID(ctx, destID)
		if err != nil {
			return err
		}

		out, err := c.lots.Apply(ctx, src, ledger.AppendRequest{
			Type:        ledger.TypeTransferOut,
			Quantity:    req.Quantity,
			Reference:   reference,
			Notes:       req.Notes,
			PerformedBy: req.PerformedBy,
		})
		if err != nil {
			return err
		}

		in, err := c.lots.Apply(ctx, dst, ledger.AppendRequest{
			Type:        ledger.TypeTransferIn,
			Quantity:    req.Quantity,
			Reference:   reference,
			Notes:       req.Notes,
			PerformedBy: req.PerformedBy,
		})
		if err != nil {
			return err
		}

		result.SourceBalance = out.BalanceAfter
		destBalance := in.BalanceAfter
		result.DestinationBalance = &destBalance
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock transferred",
		"source_lot_id", req.SourceLotID,
		"destination_lot_id", destID,
		"quantity", req.Quantity,
	)
	return &result, nil
}

func (c *Coordinator) relocate(ctx context.Context, req Request) (*Result, error) {
	if err := req.NewLocation.Validate(); err != nil {
		return nil, err
	}

	release := c.lots.Locks().Lock(req.SourceLotID)
	defer release()

	var result Result
	err := c.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		l, err := c.lots.Repo().GetByID(ctx, req.SourceLotID)
		if err != nil {
			return err
		}

		before := l.Location
		l.Location = *req.NewLocation
		l.Touch()
		if err := c.lots.Repo().Update(ctx, l); err != nil {
			return fmt.Errorf("update lot: %w", err)
		}

		result.SourceBalance = l.CurrentQuantity
		return c.auditor.Record(ctx, audit.NewEntry("Lot", l.ID, audit.ActionRelocate, req.PerformedBy, map[string]any{
			"from":  before,
			"to":    *req.NewLocation,
			"notes": req.Notes,
		}))
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "lot relocated",
		"lot_id", req.SourceLotID,
		"location", *req.NewLocation,
	)
	return &result, nil
}
