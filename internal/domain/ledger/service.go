package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lotledger/internal/core/apperror"
	"lotledger/internal/core/id"
	"lotledger/internal/core/types"
	"lotledger/pkg/logger"
)

// Balance is the pre-mutation snapshot the append is validated against.
// The caller must hold the lot's exclusive section for the whole
// read-validate-append-write sequence.
type Balance struct {
	LotID    id.ID
	OnHand   types.Quantity
	Reserved types.Quantity
}

// Available returns the quantity eligible for new commitments.
func (b Balance) Available() types.Quantity {
	return b.OnHand - b.Reserved
}

// AppendRequest describes one movement to append.
type AppendRequest struct {
	Type MovementType

	// Quantity must be a positive magnitude.
	Quantity types.Quantity

	// Direction is required for TypeAdjusted, ignored otherwise.
	Direction Direction

	Reference   string
	Notes       string
	PerformedBy string
}

// Service appends movements and computes the resulting balance.
// Persistence of the movement happens here; persisting the lot's updated
// quantity is the caller's half of the same transaction.
type Service struct {
	repo Repository
}

// NewService creates a new ledger service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Append validates req against bal, persists the movement with its
// balance-after snapshot and returns it. No state is touched on error.
func (s *Service) Append(ctx context.Context, bal Balance, req AppendRequest) (*Movement, error) {
	if !req.Quantity.IsPositive() {
		return nil, apperror.NewValidation("quantity must be positive").
			WithDetail("quantity", req.Quantity.String())
	}
	if strings.TrimSpace(req.PerformedBy) == "" {
		return nil, apperror.NewValidation("performedBy is required").
			WithDetail("field", "performedBy")
	}

	eff, err := EffectOf(req.Type, req.Direction)
	if err != nil {
		return nil, err
	}

	signed := req.Quantity
	if eff.Direction == DirectionDecrease {
		signed = signed.Neg()
	}

	newBalance := bal.OnHand + signed
	if newBalance.IsNegative() {
		return nil, apperror.NewInsufficientStock(
			bal.LotID.String(),
			req.Quantity.Float64(),
			bal.OnHand.Float64(),
		)
	}
	if eff.ConsumesAvailable && req.Quantity > bal.Available() {
		return nil, apperror.NewInsufficientAvailable(
			bal.LotID.String(),
			req.Quantity.Float64(),
			bal.Available().Float64(),
		)
	}

	m := &Movement{
		ID:           id.New(),
		LotID:        bal.LotID,
		Type:         req.Type,
		Direction:    eff.Direction,
		Quantity:     req.Quantity,
		BalanceAfter: newBalance,
		Reference:    req.Reference,
		Notes:        req.Notes,
		PerformedBy:  req.PerformedBy,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("create movement: %w", err)
	}

	logger.Debug(ctx, "movement appended",
		"lot_id", bal.LotID,
		"type", req.Type,
		"quantity", req.Quantity,
		"balance_after", newBalance,
	)

	return m, nil
}

// History returns movements for a lot, most recent first.
func (s *Service) History(ctx context.Context, lotID id.ID, filter Filter) ([]Movement, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	return s.repo.ListByLot(ctx, lotID, filter)
}

// Replay recomputes a lot's on-hand quantity from its movement history.
// Used to audit the ledger invariant: on hand = received + signed sum.
func (s *Service) Replay(ctx context.Context, lotID id.ID, received types.Quantity) (types.Quantity, error) {
	sum, err := s.repo.SumSignedByLot(ctx, lotID)
	if err != nil {
		return 0, fmt.Errorf("sum movements: %w", err)
	}
	return received + sum, nil
}
