package handlers

import (
	"github.com/gin-gonic/gin"

	"lotledger/internal/core/apperror"
	"lotledger/internal/core/id"
	"lotledger/internal/domain/transfer"
	"lotledger/internal/infrastructure/http/v1/dto"
)

// TransferHandler handles transfer endpoints.
type TransferHandler struct {
	*BaseHandler
	transfers *transfer.Coordinator
}

// NewTransferHandler creates a new transfer handler.
func NewTransferHandler(base *BaseHandler, transfers *transfer.Coordinator) *TransferHandler {
	return &TransferHandler{BaseHandler: base, transfers: transfers}
}

// Transfer handles POST /transfers.
func (h *TransferHandler) Transfer(c *gin.Context) {
	var req dto.TransferRequest
	if !h.BindJSON(c, &req) {
		return
	}

	sourceID, err := id.Parse(req.SourceLotID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid sourceLotId").WithDetail("sourceLotId", req.SourceLotID))
		return
	}

	domainReq := transfer.Request{
		SourceLotID: sourceID,
		Quantity:    req.Quantity,
		PerformedBy: h.Actor(c),
		Notes:       req.Notes,
	}

	if req.DestinationLotID != nil {
		destID, err := id.Parse(*req.DestinationLotID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid destinationLotId").WithDetail("destinationLotId", *req.DestinationLotID))
			return
		}
		domainReq.DestinationLotID = &destID
	}
	if req.NewLocation != nil {
		loc := req.NewLocation.ToLocation()
		domainReq.NewLocation = &loc
	}

	result, err := h.transfers.Transfer(c.Request.Context(), domainReq)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.TransferResponse{
		SourceBalance:      result.SourceBalance,
		DestinationBalance: result.DestinationBalance,
	})
}
