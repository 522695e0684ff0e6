package memory

import (
	"context"
	"sort"

	"lotledger/internal/core/apperror"
	"lotledger/internal/core/id"
	"lotledger/internal/domain/lot"
)

// LotRepo implements lot.Repository in memory.
type LotRepo struct {
	store *Store
}

// NewLotRepo creates an in-memory lot repository.
func NewLotRepo(store *Store) *LotRepo {
	return &LotRepo{store: store}
}

// Create stores a copy of the lot. New lots start at version 1.
func (r *LotRepo) Create(ctx context.Context, l *lot.Lot) error {
	unlock := r.store.lock(ctx)
	defer unlock()

	if _, exists := r.store.lots[l.ID]; exists {
		return apperror.NewValidation("lot already exists").
			WithDetail("lot_id", l.ID.String())
	}
	// One lot per GRN line, same as the unique index in postgres.
	for _, stored := range r.store.lots {
		if stored.GRNLineID == l.GRNLineID {
			return apperror.NewConcurrencyConflict("lot for GRN line", l.GRNLineID.String())
		}
	}

	l.Version = 1
	r.store.lots[l.ID] = copyLot(l)
	return nil
}

// GetByID returns a copy of the lot.
func (r *LotRepo) GetByID(ctx context.Context, lotID id.ID) (*lot.Lot, error) {
	unlock := r.store.lock(ctx)
	defer unlock()

	stored, ok := r.store.lots[lotID]
	if !ok {
		return nil, apperror.NewNotFound("lot", lotID.String())
	}
	return copyLot(stored), nil
}

// GetByGRNLine returns the lot created for a goods-receipt line.
func (r *LotRepo) GetByGRNLine(ctx context.Context, grnLineID id.ID) (*lot.Lot, error) {
	unlock := r.store.lock(ctx)
	defer unlock()

	for _, stored := range r.store.lots {
		if stored.GRNLineID == grnLineID {
			return copyLot(stored), nil
		}
	}
	return nil, apperror.NewNotFound("lot for GRN line", grnLineID.String())
}

// Update persists the aggregate with an optimistic version check.
func (r *LotRepo) Update(ctx context.Context, l *lot.Lot) error {
	unlock := r.store.lock(ctx)
	defer unlock()

	stored, ok := r.store.lots[l.ID]
	if !ok {
		return apperror.NewNotFound("lot", l.ID.String())
	}
	if stored.Version != l.Version {
		return apperror.NewConcurrencyConflict("lot", l.ID.String())
	}

	l.Version++
	r.store.lots[l.ID] = copyLot(l)
	return nil
}

// List retrieves lots with filtering, newest first.
func (r *LotRepo) List(ctx context.Context, filter lot.Filter) ([]*lot.Lot, error) {
	unlock := r.store.lock(ctx)
	defer unlock()

	var lots []*lot.Lot
	for _, stored := range r.store.lots {
		if filter.ProductID != nil && stored.ProductID != *filter.ProductID {
			continue
		}
		if filter.Status != nil && stored.Status != *filter.Status {
			continue
		}
		lots = append(lots, copyLot(stored))
	}

	sort.Slice(lots, func(i, j int) bool {
		if !lots[i].CreatedAt.Equal(lots[j].CreatedAt) {
			return lots[i].CreatedAt.After(lots[j].CreatedAt)
		}
		return id.Less(lots[j].ID, lots[i].ID)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(lots) {
			return nil, nil
		}
		lots = lots[filter.Offset:]
	}
	if filter.Limit > 0 && len(lots) > filter.Limit {
		lots = lots[:filter.Limit]
	}
	return lots, nil
}

// ListOpenAlerts returns unacknowledged alerts of a type across all
// lots, newest first.
func (r *LotRepo) ListOpenAlerts(ctx context.Context, t lot.AlertType, limit int) ([]lot.Alert, error) {
	unlock := r.store.lock(ctx)
	defer unlock()

	var alerts []lot.Alert
	for _, stored := range r.store.lots {
		for _, a := range stored.Alerts {
			if a.Type == t && !a.Acknowledged {
				alerts = append(alerts, a)
			}
		}
	}

	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].Date.After(alerts[j].Date)
	})

	if limit > 0 && len(alerts) > limit {
		alerts = alerts[:limit]
	}
	return alerts, nil
}

// Ensure interface compliance.
var _ lot.Repository = (*LotRepo)(nil)
