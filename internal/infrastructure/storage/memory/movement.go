package memory

import (
	"context"

	"lotledger/internal/core/id"
	"lotledger/internal/core/types"
	"lotledger/internal/domain/ledger"
)

// MovementRepo implements ledger.Repository in memory.
type MovementRepo struct {
	store *Store
}

// NewMovementRepo creates an in-memory movement repository.
func NewMovementRepo(store *Store) *MovementRepo {
	return &MovementRepo{store: store}
}

// Create appends a movement.
func (r *MovementRepo) Create(ctx context.Context, m *ledger.Movement) error {
	unlock := r.store.lock(ctx)
	defer unlock()

	r.store.movements[m.LotID] = append(r.store.movements[m.LotID], *m)
	return nil
}

// ListByLot returns movements for a lot, newest first.
func (r *MovementRepo) ListByLot(ctx context.Context, lotID id.ID, filter ledger.Filter) ([]ledger.Movement, error) {
	unlock := r.store.lock(ctx)
	defer unlock()

	stored := r.store.movements[lotID]

	// Stored in append order; reverse for newest first.
	movements := make([]ledger.Movement, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		movements = append(movements, stored[i])
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(movements) {
			return nil, nil
		}
		movements = movements[filter.Offset:]
	}
	if filter.Limit > 0 && len(movements) > filter.Limit {
		movements = movements[:filter.Limit]
	}
	return movements, nil
}

// SumSignedByLot returns the signed sum of all movements for a lot.
func (r *MovementRepo) SumSignedByLot(ctx context.Context, lotID id.ID) (types.Quantity, error) {
	unlock := r.store.lock(ctx)
	defer unlock()

	var sum types.Quantity
	for i := range r.store.movements[lotID] {
		sum += r.store.movements[lotID][i].SignedQuantity()
	}
	return sum, nil
}

// Ensure interface compliance.
var _ ledger.Repository = (*MovementRepo)(nil)
