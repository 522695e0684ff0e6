package dto

import (
	"time"

	"lotledger/internal/domain/audit"
)

// AuditEntryResponse is one audit record on the wire.
type AuditEntryResponse struct {
	ID          string         `json:"id"`
	EntityType  string         `json:"entityType"`
	EntityID    string         `json:"entityId"`
	Action      string         `json:"action"`
	PerformedBy string         `json:"performedBy"`
	Changes     map[string]any `json:"changes,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

func FromAuditEntry(e audit.Entry) AuditEntryResponse {
	return AuditEntryResponse{
		ID:          e.ID.String(),
		EntityType:  e.EntityType,
		EntityID:    e.EntityID.String(),
		Action:      string(e.Action),
		PerformedBy: e.PerformedBy,
		Changes:     e.Changes,
		CreatedAt:   e.CreatedAt,
	}
}
