package handlers

import (
	"github.com/gin-gonic/gin"

	"lotledger/internal/core/apperror"
	"lotledger/internal/core/id"
	"lotledger/internal/domain/ledger"
	"lotledger/internal/domain/lot"
	"lotledger/internal/infrastructure/http/v1/dto"
)

// LotHandler handles lot endpoints.
type LotHandler struct {
	*BaseHandler
	lots *lot.Service
}

// NewLotHandler creates a new lot handler.
func NewLotHandler(base *BaseHandler, lots *lot.Service) *LotHandler {
	return &LotHandler{BaseHandler: base, lots: lots}
}

// Create handles POST /lots.
func (h *LotHandler) Create(c *gin.Context) {
	var req dto.CreateLotRequest
	if !h.BindJSON(c, &req) {
		return
	}

	grnLineID, err := id.Parse(req.GRNLineID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid grnLineId").WithDetail("grnLineId", req.GRNLineID))
		return
	}
	productID, err := id.Parse(req.ProductID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid productId").WithDetail("productId", req.ProductID))
		return
	}
	var supplierID id.ID
	if req.SupplierID != "" {
		if supplierID, err = id.Parse(req.SupplierID); err != nil {
			h.Error(c, apperror.NewValidation("invalid supplierId").WithDetail("supplierId", req.SupplierID))
			return
		}
	}

	created, err := h.lots.CreateFromReceipt(c.Request.Context(), lot.CreateFromReceiptParams{
		GRNLineID:     grnLineID,
		ProductID:     productID,
		SupplierID:    supplierID,
		Quantity:      req.Quantity,
		Weight:        req.Weight,
		UnitCost:      req.UnitCost,
		Location:      req.Location.ToLocation(),
		ReorderLevel:  req.ReorderLevel,
		QualityStatus: lot.QualityStatus(req.QualityStatus),
		ExpiryDate:    req.ExpiryDate,
		PerformedBy:   h.Actor(c),
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromLot(created))
}

// Get handles GET /lots/:lotId.
func (h *LotHandler) Get(c *gin.Context) {
	lotID, ok := h.lotID(c)
	if !ok {
		return
	}

	l, err := h.lots.Get(c.Request.Context(), lotID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromLot(l))
}

// List handles GET /lots.
func (h *LotHandler) List(c *gin.Context) {
	filter := lot.Filter{
		Limit:  h.ParseIntQuery(c, "limit", 50),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}

	if v := c.Query("productId"); v != "" {
		productID, err := id.Parse(v)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid productId").WithDetail("productId", v))
			return
		}
		filter.ProductID = &productID
	}
	if v := c.Query("status"); v != "" {
		status := lot.Status(v)
		filter.Status = &status
	}

	lots, err := h.lots.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.LotResponse, 0, len(lots))
	for _, l := range lots {
		items = append(items, dto.FromLot(l))
	}
	h.OK(c, dto.ListResponse{Items: items, Limit: filter.Limit, Offset: filter.Offset})
}

// RecordMovement handles POST /lots/:lotId/movements.
func (h *LotHandler) RecordMovement(c *gin.Context) {
	lotID, ok := h.lotID(c)
	if !ok {
		return
	}

	var req dto.RecordMovementRequest
	if !h.BindJSON(c, &req) {
		return
	}

	m, err := h.lots.RecordMovement(c.Request.Context(), lotID,
		ledger.MovementType(req.Type),
		ledger.Direction(req.Direction),
		lot.MovementParams{
			Quantity:    req.Quantity,
			Reference:   req.Reference,
			Notes:       req.Notes,
			PerformedBy: h.Actor(c),
		})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromMovement(m))
}

// ListMovements handles GET /lots/:lotId/movements.
func (h *LotHandler) ListMovements(c *gin.Context) {
	lotID, ok := h.lotID(c)
	if !ok {
		return
	}

	filter := ledger.Filter{
		Limit:  h.ParseIntQuery(c, "limit", 100),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}

	movements, err := h.lots.ListMovements(c.Request.Context(), lotID, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.MovementResponse, 0, len(movements))
	for i := range movements {
		items = append(items, dto.FromMovement(&movements[i]))
	}
	h.OK(c, dto.ListResponse{Items: items, Limit: filter.Limit, Offset: filter.Offset})
}

// Reserve handles POST /lots/:lotId/reserve.
func (h *LotHandler) Reserve(c *gin.Context) {
	h.updateReservation(c, true)
}

// Release handles POST /lots/:lotId/release.
func (h *LotHandler) Release(c *gin.Context) {
	h.updateReservation(c, false)
}

func (h *LotHandler) updateReservation(c *gin.Context, reserve bool) {
	lotID, ok := h.lotID(c)
	if !ok {
		return
	}

	var req dto.ReservationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	var l *lot.Lot
	var err error
	if reserve {
		l, err = h.lots.Reserve(c.Request.Context(), lotID, req.Quantity, req.Reference, h.Actor(c))
	} else {
		l, err = h.lots.Release(c.Request.Context(), lotID, req.Quantity, req.Reference, h.Actor(c))
	}
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromLot(l))
}

// AcknowledgeAlert handles POST /lots/:lotId/alerts/:alertId/acknowledge.
func (h *LotHandler) AcknowledgeAlert(c *gin.Context) {
	lotID, ok := h.lotID(c)
	if !ok {
		return
	}
	alertID, err := id.Parse(c.Param("alertId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid alert id").WithDetail("alertId", c.Param("alertId")))
		return
	}

	a, err := h.lots.AcknowledgeAlert(c.Request.Context(), lotID, alertID, h.Actor(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromAlert(*a))
}

// ListLowStockAlerts handles GET /alerts/low-stock.
func (h *LotHandler) ListLowStockAlerts(c *gin.Context) {
	limit := h.ParseIntQuery(c, "limit", 50)

	alerts, err := h.lots.ListLowStockAlerts(c.Request.Context(), limit)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.AlertResponse, 0, len(alerts))
	for _, a := range alerts {
		items = append(items, dto.FromAlert(a))
	}
	h.OK(c, dto.ListResponse{Items: items, Limit: limit})
}

// VerifyLedger handles POST /lots/:lotId/verify.
func (h *LotHandler) VerifyLedger(c *gin.Context) {
	lotID, ok := h.lotID(c)
	if !ok {
		return
	}

	if err := h.lots.VerifyLedger(c.Request.Context(), lotID); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "ledger verified")
}

func (h *LotHandler) lotID(c *gin.Context) (id.ID, bool) {
	lotID, err := id.Parse(c.Param("lotId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid lot id").WithDetail("lotId", c.Param("lotId")))
		return id.Nil(), false
	}
	return lotID, true
}
