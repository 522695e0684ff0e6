package handlers

import (
	"github.com/gin-gonic/gin"

	"lotledger/internal/core/apperror"
	"lotledger/internal/core/id"
	"lotledger/internal/domain/lot"
	"lotledger/internal/domain/receiving"
	"lotledger/internal/infrastructure/http/v1/dto"
)

// ReceivingHandler handles goods-receipt endpoints.
type ReceivingHandler struct {
	*BaseHandler
	reconciler *receiving.Reconciler
}

// NewReceivingHandler creates a new receiving handler.
func NewReceivingHandler(base *BaseHandler, reconciler *receiving.Reconciler) *ReceivingHandler {
	return &ReceivingHandler{BaseHandler: base, reconciler: reconciler}
}

// Preview handles POST /receiving/preview.
func (h *ReceivingHandler) Preview(c *gin.Context) {
	var req dto.ReceivingLineRequest
	if !h.BindJSON(c, &req) {
		return
	}

	line, err := h.toLine(req)
	if err != nil {
		h.Error(c, err)
		return
	}

	summary, err := h.reconciler.Preview(line)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, fromSummary(summary))
}

// Confirm handles POST /receiving/confirm.
func (h *ReceivingHandler) Confirm(c *gin.Context) {
	var req dto.ConfirmReceiptRequest
	if !h.BindJSON(c, &req) {
		return
	}

	line, err := h.toLine(req.ReceivingLineRequest)
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.reconciler.Confirm(c.Request.Context(), receiving.ConfirmParams{
		Line:          line,
		UnitCost:      req.UnitCost,
		Location:      req.Location.ToLocation(),
		ReorderLevel:  req.ReorderLevel,
		QualityStatus: lot.QualityStatus(req.QualityStatus),
		ExpiryDate:    req.ExpiryDate,
		Reference:     req.Reference,
		Notes:         req.Notes,
		PerformedBy:   h.Actor(c),
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ConfirmReceiptResponse{
		Lot:     dto.FromLot(result.Lot),
		Summary: fromSummary(result.Summary),
		Created: result.Created,
	})
}

func (h *ReceivingHandler) toLine(req dto.ReceivingLineRequest) (receiving.Line, error) {
	grnLineID, err := id.Parse(req.GRNLineID)
	if err != nil {
		return receiving.Line{}, apperror.NewValidation("invalid grnLineId").
			WithDetail("grnLineId", req.GRNLineID)
	}

	line := receiving.Line{
		GRNLineID:          grnLineID,
		OrderedQuantity:    req.OrderedQuantity,
		OrderedWeight:      req.OrderedWeight,
		PreviouslyReceived: req.PreviouslyReceived,
		PreviousWeight:     req.PreviousWeight,
		ReceivingNow:       req.ReceivingNow,
		ReceivingNowWeight: req.ReceivingNowWeight,
	}

	if req.ProductID != "" {
		if line.ProductID, err = id.Parse(req.ProductID); err != nil {
			return receiving.Line{}, apperror.NewValidation("invalid productId").
				WithDetail("productId", req.ProductID)
		}
	}
	if req.SupplierID != "" {
		if line.SupplierID, err = id.Parse(req.SupplierID); err != nil {
			return receiving.Line{}, apperror.NewValidation("invalid supplierId").
				WithDetail("supplierId", req.SupplierID)
		}
	}
	return line, nil
}

func fromSummary(s receiving.Summary) dto.ReceivingSummaryResponse {
	return dto.ReceivingSummaryResponse{
		ReceivingNowQuantity: s.ReceivingNowQuantity,
		ReceivingNowWeight:   s.ReceivingNowWeight,
		PendingQuantity:      s.PendingQuantity,
		PendingWeight:        s.PendingWeight,
		CompletionPercentage: s.CompletionPercentage,
	}
}
