// Package lot provides the Lot aggregate (Партия товара).
// A lot is a traceable batch of inventory received together and is the
// unit of quantity accounting. Quantities change only through the
// movement ledger; the aggregate owns status, reservations and alerts.
package lot

import (
	"context"
	"time"

	"lotledger/internal/core/apperror"
	"lotledger/internal/core/id"
	"lotledger/internal/core/types"
)

// Status is the lot lifecycle state.
type Status string

const (
	StatusActive   Status = "active"
	StatusReserved Status = "reserved"
	StatusConsumed Status = "consumed"

	// StatusExpired is evaluated from the expiry date at read time,
	// never stored pre-emptively.
	StatusExpired Status = "expired"
)

// QualityStatus is the inspection state of a lot.
type QualityStatus string

const (
	QualityPassed     QualityStatus = "passed"
	QualityQuarantine QualityStatus = "quarantine"
	QualityRejected   QualityStatus = "rejected"
)

// Location identifies where a lot is stored.
type Location struct {
	Zone  string `db:"zone" json:"zone,omitempty"`
	Rack  string `db:"rack" json:"rack,omitempty"`
	Shelf string `db:"shelf" json:"shelf,omitempty"`
	Bin   string `db:"bin" json:"bin,omitempty"`
}

// IsZero reports whether no location field is set.
func (l Location) IsZero() bool {
	return l.Zone == "" && l.Rack == "" && l.Shelf == "" && l.Bin == ""
}

// Validate requires at least one of zone/rack/shelf/bin.
func (l Location) Validate() error {
	if l.IsZero() {
		return apperror.NewValidation("at least one location field is required").
			WithDetail("fields", "zone, rack, shelf, bin")
	}
	return nil
}

// AlertType is the closed set of alert kinds.
type AlertType string

const (
	AlertLowStock    AlertType = "low_stock"
	AlertExpiry      AlertType = "expiry"
	AlertQualityHold AlertType = "quality_hold"
)

// Alert is raised by the evaluator after a mutation and cleared only by
// explicit acknowledgement. Acknowledged alerts never revert.
type Alert struct {
	ID    id.ID     `db:"id" json:"id"`
	LotID id.ID     `db:"lot_id" json:"lotId"`
	Type  AlertType `db:"type" json:"type"`

	Message string    `db:"message" json:"message"`
	Date    time.Time `db:"date" json:"date"`

	Acknowledged     bool       `db:"acknowledged" json:"acknowledged"`
	AcknowledgedBy   string     `db:"acknowledged_by" json:"acknowledgedBy,omitempty"`
	AcknowledgedDate *time.Time `db:"acknowledged_date" json:"acknowledgedDate,omitempty"`
}

// Lot is the aggregate root for one received batch.
type Lot struct {
	ID id.ID `db:"id" json:"id"`

	// Number is auto-generated, monotonically assigned.
	Number string `db:"number" json:"number"`

	ProductID  id.ID `db:"product_id" json:"productId"`
	SupplierID id.ID `db:"supplier_id" json:"supplierId"`

	// GRNLineID links the lot to its goods-receipt line of origin.
	GRNLineID id.ID `db:"grn_line_id" json:"grnLineId"`

	// ReceivedQuantity is set once at lot creation and never changes;
	// everything after creation flows through the ledger.
	ReceivedQuantity types.Quantity `db:"received_quantity" json:"receivedQuantity"`

	// CurrentQuantity is on hand now. Mutated only via ledger entries.
	CurrentQuantity types.Quantity `db:"current_quantity" json:"currentQuantity"`

	// ReservedQuantity is held against unfulfilled sales.
	// Invariant: 0 <= reserved <= current.
	ReservedQuantity types.Quantity `db:"reserved_quantity" json:"reservedQuantity"`

	// Weight on hand, tracked proportionally to quantity.
	Weight types.Quantity `db:"weight" json:"weight"`

	UnitCost types.Money `db:"unit_cost" json:"unitCost"`

	Status        Status        `db:"status" json:"status"`
	QualityStatus QualityStatus `db:"quality_status" json:"qualityStatus"`
	Location      Location      `db:"-" json:"location"`

	// ReorderLevel is the low-stock threshold for this lot's product.
	ReorderLevel types.Quantity `db:"reorder_level" json:"reorderLevel"`

	ReceivedDate time.Time  `db:"received_date" json:"receivedDate"`
	ExpiryDate   *time.Time `db:"expiry_date" json:"expiryDate,omitempty"`

	// Alerts, newest last. Persisted with the aggregate.
	Alerts []Alert `db:"-" json:"alerts"`

	// Version supports optimistic concurrency across processes.
	Version int `db:"version" json:"version"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// AvailableQuantity is on hand minus reserved: the quantity eligible for
// new commitments.
func (l *Lot) AvailableQuantity() types.Quantity {
	return l.CurrentQuantity - l.ReservedQuantity
}

// TotalCost is informational: current quantity times unit cost.
func (l *Lot) TotalCost() types.Money {
	return l.UnitCost.Mul(l.CurrentQuantity.Decimal())
}

// StatusAt returns the effective status at the given time: Expired when
// the expiry date has passed, otherwise the stored lifecycle status.
func (l *Lot) StatusAt(now time.Time) Status {
	if l.ExpiryDate != nil && now.After(*l.ExpiryDate) && l.Status != StatusConsumed {
		return StatusExpired
	}
	return l.Status
}

// RecomputeStatus derives the stored lifecycle status from quantities.
func (l *Lot) RecomputeStatus() {
	switch {
	case l.CurrentQuantity.IsZero():
		l.Status = StatusConsumed
	case l.ReservedQuantity.IsPositive():
		l.Status = StatusReserved
	default:
		l.Status = StatusActive
	}
}

// ClampReserved caps the reservation at the on-hand quantity. Decreases
// not constrained by availability (negative adjustments) may dip into
// reserved stock; the reservation shrinks with it so 0 <= reserved <=
// current always holds.
func (l *Lot) ClampReserved() {
	if l.ReservedQuantity > l.CurrentQuantity {
		l.ReservedQuantity = l.CurrentQuantity
	}
}

// OpenAlert returns the unacknowledged alert of the given type, or nil.
func (l *Lot) OpenAlert(t AlertType) *Alert {
	for i := range l.Alerts {
		if l.Alerts[i].Type == t && !l.Alerts[i].Acknowledged {
			return &l.Alerts[i]
		}
	}
	return nil
}

// FindAlert returns the alert with the given id, or nil.
func (l *Lot) FindAlert(alertID id.ID) *Alert {
	for i := range l.Alerts {
		if l.Alerts[i].ID == alertID {
			return &l.Alerts[i]
		}
	}
	return nil
}

// Touch bumps the updated timestamp.
func (l *Lot) Touch() {
	l.UpdatedAt = time.Now().UTC()
}

// Filter narrows lot listings.
type Filter struct {
	ProductID *id.ID
	Status    *Status
	Limit     int
	Offset    int
}

// Repository is the persistence contract for lots.
type Repository interface {
	Create(ctx context.Context, l *Lot) error

	GetByID(ctx context.Context, lotID id.ID) (*Lot, error)

	// GetByGRNLine returns the lot created for a goods-receipt line,
	// or a NotFound error if no receipt was confirmed against it yet.
	GetByGRNLine(ctx context.Context, grnLineID id.ID) (*Lot, error)

	// Update persists the aggregate (quantities, status, location,
	// alerts). Implementations must fail with a ConcurrencyConflict
	// error when the stored version does not match l.Version, and bump
	// the version on success.
	Update(ctx context.Context, l *Lot) error

	List(ctx context.Context, filter Filter) ([]*Lot, error)

	// ListOpenAlerts returns unacknowledged alerts of the given type
	// across all lots, newest first.
	ListOpenAlerts(ctx context.Context, t AlertType, limit int) ([]Alert, error)
}
