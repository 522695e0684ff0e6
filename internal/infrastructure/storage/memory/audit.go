package memory

import (
	"context"

	"lotledger/internal/core/id"
	"lotledger/internal/domain/audit"
)

// AuditRecorder implements audit.Recorder in memory.
type AuditRecorder struct {
	store *Store
}

// NewAuditRecorder creates an in-memory audit recorder.
func NewAuditRecorder(store *Store) *AuditRecorder {
	return &AuditRecorder{store: store}
}

// Record implements audit.Recorder.
func (r *AuditRecorder) Record(ctx context.Context, entry audit.Entry) error {
	unlock := r.store.lock(ctx)
	defer unlock()

	r.store.audit = append(r.store.audit, entry)
	return nil
}

// EntriesFor returns recorded entries for an entity, oldest first.
func (r *AuditRecorder) EntriesFor(ctx context.Context, entityID id.ID) []audit.Entry {
	unlock := r.store.lock(ctx)
	defer unlock()

	var entries []audit.Entry
	for _, e := range r.store.audit {
		if e.EntityID == entityID {
			entries = append(entries, e)
		}
	}
	return entries
}

// GetEntityHistory returns an entity's audit trail, newest first.
// Matches the postgres audit service so both back the same endpoint.
func (r *AuditRecorder) GetEntityHistory(ctx context.Context, entityType string, entityID id.ID, limit int) ([]audit.Entry, error) {
	unlock := r.store.lock(ctx)
	defer unlock()

	var entries []audit.Entry
	for i := len(r.store.audit) - 1; i >= 0; i-- {
		e := r.store.audit[i]
		if e.EntityType != entityType || e.EntityID != entityID {
			continue
		}
		entries = append(entries, e)
		if limit > 0 && len(entries) == limit {
			break
		}
	}
	return entries, nil
}

// Ensure interface compliance.
var _ audit.Recorder = (*AuditRecorder)(nil)
