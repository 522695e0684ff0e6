// Package ledger provides the append-only movement ledger for lots.
//
// Every quantity-changing event against a lot is recorded as an immutable
// Movement. The ledger is the authority for a lot's on-hand quantity: the
// current quantity always equals the received quantity plus the signed sum
// of all accepted movements.
package ledger

import (
	"context"
	"time"

	"lotledger/internal/core/apperror"
	"lotledger/internal/core/id"
	"lotledger/internal/core/types"
)

// MovementType is the closed set of quantity-affecting event kinds.
type MovementType string

const (
	TypeReceived    MovementType = "received"
	TypeIssued      MovementType = "issued"
	TypeAdjusted    MovementType = "adjusted"
	TypeReturned    MovementType = "returned"
	TypeDamaged     MovementType = "damaged"
	TypeTransferOut MovementType = "transfer_out"
	TypeTransferIn  MovementType = "transfer_in"
)

// Direction is the resolved effect of a movement on the on-hand quantity.
// Adjustments carry an explicit direction rather than inferring sign from
// a bare quantity; all other types have a fixed direction.
type Direction string

const (
	DirectionIncrease Direction = "increase"
	DirectionDecrease Direction = "decrease"
)

// Effect describes how a movement type changes lot quantities.
type Effect struct {
	Direction Direction

	// ConsumesAvailable marks types that may only draw on unreserved
	// stock (issue, damage, transfer out). Decreases without this flag
	// (negative adjustments) may dip into reserved stock but never
	// below zero on hand.
	ConsumesAvailable bool
}

// effects is the single source of truth for movement direction.
// Adjusted is absent: its direction is explicit per movement.
var effects = map[MovementType]Effect{
	TypeReceived:    {Direction: DirectionIncrease},
	TypeReturned:    {Direction: DirectionIncrease},
	TypeTransferIn:  {Direction: DirectionIncrease},
	TypeIssued:      {Direction: DirectionDecrease, ConsumesAvailable: true},
	TypeDamaged:     {Direction: DirectionDecrease, ConsumesAvailable: true},
	TypeTransferOut: {Direction: DirectionDecrease, ConsumesAvailable: true},
}

// EffectOf resolves the effect for a movement type. For TypeAdjusted the
// explicit direction is required; for all other types it is ignored.
func EffectOf(t MovementType, explicit Direction) (Effect, error) {
	if t == TypeAdjusted {
		switch explicit {
		case DirectionIncrease, DirectionDecrease:
			return Effect{Direction: explicit}, nil
		default:
			return Effect{}, apperror.NewValidation("adjustment requires an explicit direction").
				WithDetail("field", "direction")
		}
	}

	eff, ok := effects[t]
	if !ok {
		return Effect{}, apperror.NewValidation("unknown movement type").
			WithDetail("type", string(t))
	}
	return eff, nil
}

// IsValidType reports whether t is a member of the movement type set.
func IsValidType(t MovementType) bool {
	_, ok := effects[t]
	return ok || t == TypeAdjusted
}

// Movement is one recorded quantity-affecting event against a lot.
// Movements are immutable: they are never updated or deleted.
type Movement struct {
	ID    id.ID `db:"id" json:"id"`
	LotID id.ID `db:"lot_id" json:"lotId"`

	Type MovementType `db:"type" json:"type"`

	// Direction is persisted so ledger replay never has to re-infer
	// the sign of an adjustment.
	Direction Direction `db:"direction" json:"direction"`

	// Quantity is always a positive magnitude; the effect on the lot is
	// determined by Type and Direction.
	Quantity types.Quantity `db:"quantity" json:"quantity"`

	// BalanceAfter snapshots the lot's on-hand quantity immediately
	// after this entry, enabling point-in-time audit without replay.
	BalanceAfter types.Quantity `db:"balance_after" json:"balanceAfter"`

	Reference   string `db:"reference" json:"reference,omitempty"`
	Notes       string `db:"notes" json:"notes,omitempty"`
	PerformedBy string `db:"performed_by" json:"performedBy"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// SignedQuantity returns the quantity with its sign applied.
func (m *Movement) SignedQuantity() types.Quantity {
	if m.Direction == DirectionDecrease {
		return m.Quantity.Neg()
	}
	return m.Quantity
}

// Filter narrows movement listings.
type Filter struct {
	Limit  int
	Offset int
}

// Repository is the persistence contract for movements.
type Repository interface {
	// Create appends a movement. Movements are never updated.
	Create(ctx context.Context, m *Movement) error

	// ListByLot returns movements for a lot, newest first.
	ListByLot(ctx context.Context, lotID id.ID, filter Filter) ([]Movement, error)

	// SumSignedByLot returns the signed sum of all movements for a lot,
	// used to verify the ledger replay invariant.
	SumSignedByLot(ctx context.Context, lotID id.ID) (types.Quantity, error)
}
