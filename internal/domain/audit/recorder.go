// Package audit provides the change-audit contract for non-quantity
// mutations. Quantity changes are already fully auditable through the
// movement ledger; relocations, reservations and acknowledgements go
// through this recorder instead of producing zero-quantity movements.
package audit

import (
	"context"
	"time"

	"lotledger/internal/core/id"
)

// Action is the audited operation kind.
type Action string

const (
	ActionCreate      Action = "create"
	ActionRelocate    Action = "relocate"
	ActionReserve     Action = "reserve"
	ActionRelease     Action = "release"
	ActionAcknowledge Action = "acknowledge"
)

// Entry is one audit record. Changes holds before/after values.
type Entry struct {
	ID          id.ID          `db:"id"`
	EntityType  string         `db:"entity_type"`
	EntityID    id.ID          `db:"entity_id"`
	Action      Action         `db:"action"`
	PerformedBy string         `db:"performed_by"`
	Changes     map[string]any `db:"-"`
	CreatedAt   time.Time      `db:"created_at"`
}

// NewEntry creates an entry with generated id and timestamp.
func NewEntry(entityType string, entityID id.ID, action Action, performedBy string, changes map[string]any) Entry {
	return Entry{
		ID:          id.New(),
		EntityType:  entityType,
		EntityID:    entityID,
		Action:      action,
		PerformedBy: performedBy,
		Changes:     changes,
		CreatedAt:   time.Now().UTC(),
	}
}

// Recorder persists audit entries.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// NopRecorder discards entries. Used when auditing is disabled.
type NopRecorder struct{}

func (NopRecorder) Record(ctx context.Context, entry Entry) error { return nil }
