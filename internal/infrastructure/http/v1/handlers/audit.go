package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"lotledger/internal/core/apperror"
	"lotledger/internal/core/id"
	"lotledger/internal/domain/audit"
	"lotledger/internal/infrastructure/http/v1/dto"
)

// AuditReader serves an entity's audit trail, newest first. Implemented
// by both storage backends.
type AuditReader interface {
	GetEntityHistory(ctx context.Context, entityType string, entityID id.ID, limit int) ([]audit.Entry, error)
}

// AuditHandler handles audit-trail endpoints.
type AuditHandler struct {
	*BaseHandler
	reader AuditReader
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(base *BaseHandler, reader AuditReader) *AuditHandler {
	return &AuditHandler{BaseHandler: base, reader: reader}
}

// History handles GET /lots/:lotId/audit.
func (h *AuditHandler) History(c *gin.Context) {
	lotID, err := id.Parse(c.Param("lotId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid lot id").WithDetail("lotId", c.Param("lotId")))
		return
	}
	limit := h.ParseIntQuery(c, "limit", 50)

	entries, err := h.reader.GetEntityHistory(c.Request.Context(), "Lot", lotID, limit)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, dto.FromAuditEntry(e))
	}
	h.OK(c, dto.ListResponse{Items: items, Limit: limit})
}
