package dto

import (
	"time"

	"lotledger/internal/core/types"
	"lotledger/internal/domain/ledger"
	"lotledger/internal/domain/lot"
)

// --- Lot ---

// LocationDTO mirrors lot.Location on the wire.
type LocationDTO struct {
	Zone  string `json:"zone,omitempty"`
	Rack  string `json:"rack,omitempty"`
	Shelf string `json:"shelf,omitempty"`
	Bin   string `json:"bin,omitempty"`
}

func (d LocationDTO) ToLocation() lot.Location {
	return lot.Location{Zone: d.Zone, Rack: d.Rack, Shelf: d.Shelf, Bin: d.Bin}
}

func FromLocation(l lot.Location) LocationDTO {
	return LocationDTO{Zone: l.Zone, Rack: l.Rack, Shelf: l.Shelf, Bin: l.Bin}
}

// CreateLotRequest creates a lot from a first receipt.
type CreateLotRequest struct {
	GRNLineID  string `json:"grnLineId" binding:"required"`
	ProductID  string `json:"productId" binding:"required"`
	SupplierID string `json:"supplierId"`

	Quantity types.Quantity `json:"quantity" binding:"required"`
	Weight   types.Quantity `json:"weight"`
	UnitCost types.Money    `json:"unitCost"`

	Location      LocationDTO    `json:"location"`
	ReorderLevel  types.Quantity `json:"reorderLevel"`
	QualityStatus string         `json:"qualityStatus"`
	ExpiryDate    *time.Time     `json:"expiryDate"`
}

// AlertResponse is one alert on a lot.
type AlertResponse struct {
	ID               string     `json:"id"`
	LotID            string     `json:"lotId"`
	Type             string     `json:"type"`
	Message          string     `json:"message"`
	Date             time.Time  `json:"date"`
	Acknowledged     bool       `json:"acknowledged"`
	AcknowledgedBy   string     `json:"acknowledgedBy,omitempty"`
	AcknowledgedDate *time.Time `json:"acknowledgedDate,omitempty"`
}

func FromAlert(a lot.Alert) AlertResponse {
	return AlertResponse{
		ID:               a.ID.String(),
		LotID:            a.LotID.String(),
		Type:             string(a.Type),
		Message:          a.Message,
		Date:             a.Date,
		Acknowledged:     a.Acknowledged,
		AcknowledgedBy:   a.AcknowledgedBy,
		AcknowledgedDate: a.AcknowledgedDate,
	}
}

// LotResponse is the aggregate on the wire. Status is the effective
// status at response time, so an expired lot reads as expired even
// though expiry is never stored.
type LotResponse struct {
	ID         string `json:"id"`
	Number     string `json:"number"`
	ProductID  string `json:"productId"`
	SupplierID string `json:"supplierId"`
	GRNLineID  string `json:"grnLineId"`

	ReceivedQuantity  types.Quantity `json:"receivedQuantity"`
	CurrentQuantity   types.Quantity `json:"currentQuantity"`
	ReservedQuantity  types.Quantity `json:"reservedQuantity"`
	AvailableQuantity types.Quantity `json:"availableQuantity"`
	Weight            types.Quantity `json:"weight"`

	UnitCost  types.Money `json:"unitCost"`
	TotalCost types.Money `json:"totalCost"`

	Status        string      `json:"status"`
	QualityStatus string      `json:"qualityStatus"`
	Location      LocationDTO `json:"location"`

	ReorderLevel types.Quantity `json:"reorderLevel"`
	ReceivedDate time.Time      `json:"receivedDate"`
	ExpiryDate   *time.Time     `json:"expiryDate,omitempty"`

	Alerts []AlertResponse `json:"alerts"`

	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func FromLot(l *lot.Lot) LotResponse {
	alerts := make([]AlertResponse, 0, len(l.Alerts))
	for _, a := range l.Alerts {
		alerts = append(alerts, FromAlert(a))
	}

	return LotResponse{
		ID:                l.ID.String(),
		Number:            l.Number,
		ProductID:         l.ProductID.String(),
		SupplierID:        l.SupplierID.String(),
		GRNLineID:         l.GRNLineID.String(),
		ReceivedQuantity:  l.ReceivedQuantity,
		CurrentQuantity:   l.CurrentQuantity,
		ReservedQuantity:  l.ReservedQuantity,
		AvailableQuantity: l.AvailableQuantity(),
		Weight:            l.Weight,
		UnitCost:          l.UnitCost,
		TotalCost:         l.TotalCost(),
		Status:            string(l.StatusAt(time.Now().UTC())),
		QualityStatus:     string(l.QualityStatus),
		Location:          FromLocation(l.Location),
		ReorderLevel:      l.ReorderLevel,
		ReceivedDate:      l.ReceivedDate,
		ExpiryDate:        l.ExpiryDate,
		Alerts:            alerts,
		Version:           l.Version,
		CreatedAt:         l.CreatedAt,
		UpdatedAt:         l.UpdatedAt,
	}
}

// --- Movements ---

// RecordMovementRequest appends a movement to a lot's ledger.
type RecordMovementRequest struct {
	Type      string         `json:"type" binding:"required"`
	Direction string         `json:"direction"`
	Quantity  types.Quantity `json:"quantity" binding:"required"`
	Reference string         `json:"reference"`
	Notes     string         `json:"notes"`
}

// MovementResponse is one ledger entry on the wire.
type MovementResponse struct {
	ID           string         `json:"id"`
	LotID        string         `json:"lotId"`
	Type         string         `json:"type"`
	Direction    string         `json:"direction"`
	Quantity     types.Quantity `json:"quantity"`
	BalanceAfter types.Quantity `json:"balanceAfter"`
	Reference    string         `json:"reference,omitempty"`
	Notes        string         `json:"notes,omitempty"`
	PerformedBy  string         `json:"performedBy"`
	CreatedAt    time.Time      `json:"createdAt"`
}

func FromMovement(m *ledger.Movement) MovementResponse {
	return MovementResponse{
		ID:           m.ID.String(),
		LotID:        m.LotID.String(),
		Type:         string(m.Type),
		Direction:    string(m.Direction),
		Quantity:     m.Quantity,
		BalanceAfter: m.BalanceAfter,
		Reference:    m.Reference,
		Notes:        m.Notes,
		PerformedBy:  m.PerformedBy,
		CreatedAt:    m.CreatedAt,
	}
}

// --- Reservations ---

// ReservationRequest reserves or releases quantity.
type ReservationRequest struct {
	Quantity  types.Quantity `json:"quantity" binding:"required"`
	Reference string         `json:"reference"`
}

// --- Transfers ---

// TransferRequest moves quantity between lots or relocates a lot.
type TransferRequest struct {
	SourceLotID      string         `json:"sourceLotId" binding:"required"`
	Quantity         types.Quantity `json:"quantity"`
	DestinationLotID *string        `json:"destinationLotId"`
	NewLocation      *LocationDTO   `json:"newLocation"`
	Notes            string         `json:"notes"`
}

// TransferResponse reports post-transfer balances.
type TransferResponse struct {
	SourceBalance      types.Quantity  `json:"sourceBalance"`
	DestinationBalance *types.Quantity `json:"destinationBalance,omitempty"`
}

// --- Receiving ---

// ReceivingLineRequest is the GRN-line arithmetic input.
type ReceivingLineRequest struct {
	GRNLineID  string `json:"grnLineId" binding:"required"`
	ProductID  string `json:"productId"`
	SupplierID string `json:"supplierId"`

	OrderedQuantity    types.Quantity  `json:"orderedQuantity"`
	OrderedWeight      types.Quantity  `json:"orderedWeight"`
	PreviouslyReceived types.Quantity  `json:"previouslyReceived"`
	PreviousWeight     types.Quantity  `json:"previousWeight"`
	ReceivingNow       types.Quantity  `json:"receivingNowQuantity" binding:"required"`
	ReceivingNowWeight *types.Quantity `json:"receivingNowWeight"`
}

// ReceivingSummaryResponse is the derived receiving figures.
type ReceivingSummaryResponse struct {
	ReceivingNowQuantity types.Quantity `json:"receivingNowQuantity"`
	ReceivingNowWeight   types.Quantity `json:"receivingNowWeight"`
	PendingQuantity      types.Quantity `json:"pendingQuantity"`
	PendingWeight        types.Quantity `json:"pendingWeight"`
	CompletionPercentage int            `json:"completionPercentage"`
}

// ConfirmReceiptRequest confirms a receipt against a GRN line.
type ConfirmReceiptRequest struct {
	ReceivingLineRequest

	UnitCost      types.Money    `json:"unitCost"`
	Location      LocationDTO    `json:"location"`
	ReorderLevel  types.Quantity `json:"reorderLevel"`
	QualityStatus string         `json:"qualityStatus"`
	ExpiryDate    *time.Time     `json:"expiryDate"`

	Reference string `json:"reference"`
	Notes     string `json:"notes"`
}

// ConfirmReceiptResponse is the outcome of a confirmed receipt.
type ConfirmReceiptResponse struct {
	Lot     LotResponse              `json:"lot"`
	Summary ReceivingSummaryResponse `json:"summary"`
	Created bool                     `json:"created"`
}
