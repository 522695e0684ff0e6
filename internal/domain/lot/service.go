package lot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lotledger/internal/core/apperror"
	"lotledger/internal/core/id"
	"lotledger/internal/core/lock"
	"lotledger/internal/core/tx"
	"lotledger/internal/core/types"
	"lotledger/internal/domain/audit"
	"lotledger/internal/domain/ledger"
	"lotledger/pkg/logger"
)

// AlertEvaluator derives alerts from lot state after each mutation.
// Implemented by the alert package; declared here to keep the aggregate
// free of a dependency on rule compilation.
type AlertEvaluator interface {
	Evaluate(l *Lot, now time.Time) ([]Alert, error)
}

// NumberGenerator assigns monotonic lot numbers.
type NumberGenerator interface {
	NextLotNumber(ctx context.Context) (string, error)
}

// Service exposes the only API through which lot quantities may change.
// Every mutating operation runs under the lot's exclusive section and a
// single transaction, so the ledger entry and the lot's state transition
// are applied all-or-nothing.
type Service struct {
	repo      Repository
	ledger    *ledger.Service
	evaluator AlertEvaluator
	numbers   NumberGenerator
	locks     *lock.Keyed
	txm       tx.ReadOnlyManager
	auditor   audit.Recorder
}

// NewService creates a new lot service.
func NewService(
	repo Repository,
	ledgerSvc *ledger.Service,
	evaluator AlertEvaluator,
	numbers NumberGenerator,
	locks *lock.Keyed,
	txm tx.ReadOnlyManager,
	auditor audit.Recorder,
) *Service {
	if auditor == nil {
		auditor = audit.NopRecorder{}
	}
	return &Service{
		repo:      repo,
		ledger:    ledgerSvc,
		evaluator: evaluator,
		numbers:   numbers,
		locks:     locks,
		txm:       txm,
		auditor:   auditor,
	}
}

// Locks exposes the shared per-lot sections for coordinators that must
// hold more than one lot at a time.
func (s *Service) Locks() *lock.Keyed { return s.locks }

// Repo exposes the repository for coordinators sharing the transaction.
func (s *Service) Repo() Repository { return s.repo }

// CreateFromReceiptParams describes the first confirmed receipt against
// a goods-receipt line.
type CreateFromReceiptParams struct {
	GRNLineID  id.ID
	ProductID  id.ID
	SupplierID id.ID

	Quantity types.Quantity
	Weight   types.Quantity
	UnitCost types.Money

	Location      Location
	ReorderLevel  types.Quantity
	QualityStatus QualityStatus
	ExpiryDate    *time.Time

	PerformedBy string
}

// CreateFromReceipt creates a lot with its received quantity fixed and
// on-hand equal to it. No movement is appended: the goods receipt itself
// documents the initial intake, and the ledger invariant
// (current = received + signed sum) starts from an empty ledger.
func (s *Service) CreateFromReceipt(ctx context.Context, p CreateFromReceiptParams) (*Lot, error) {
	if !p.Quantity.IsPositive() {
		return nil, apperror.NewValidation("quantity must be positive").
			WithDetail("quantity", p.Quantity.String())
	}
	if strings.TrimSpace(p.PerformedBy) == "" {
		return nil, apperror.NewValidation("performedBy is required").
			WithDetail("field", "performedBy")
	}
	if id.IsNil(p.ProductID) {
		return nil, apperror.NewValidation("product is required").
			WithDetail("field", "productId")
	}
	if id.IsNil(p.GRNLineID) {
		return nil, apperror.NewValidation("GRN line is required").
			WithDetail("field", "grnLineId")
	}
	if err := p.Location.Validate(); err != nil {
		return nil, err
	}
	if p.Weight.IsNegative() {
		return nil, apperror.NewValidation("weight must not be negative").
			WithDetail("weight", p.Weight.String())
	}

	number, err := s.numbers.NextLotNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("generate lot number: %w", err)
	}

	now := time.Now().UTC()
	quality := p.QualityStatus
	if quality == "" {
		quality = QualityPassed
	}

	l := &Lot{
		ID:               id.New(),
		Number:           number,
		ProductID:        p.ProductID,
		SupplierID:       p.SupplierID,
		GRNLineID:        p.GRNLineID,
		ReceivedQuantity: p.Quantity,
		CurrentQuantity:  p.Quantity,
		Weight:           p.Weight,
		UnitCost:         p.UnitCost,
		Status:           StatusActive,
		QualityStatus:    quality,
		Location:         p.Location,
		ReorderLevel:     p.ReorderLevel,
		ReceivedDate:     now,
		ExpiryDate:       p.ExpiryDate,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if _, err := s.evaluator.Evaluate(l, now); err != nil {
		return nil, fmt.Errorf("evaluate alerts: %w", err)
	}

	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, l); err != nil {
			return fmt.Errorf("create lot: %w", err)
		}
		return s.auditor.Record(ctx, audit.NewEntry("Lot", l.ID, audit.ActionCreate, p.PerformedBy, map[string]any{
			"number":   l.Number,
			"quantity": l.ReceivedQuantity.String(),
		}))
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "lot created from receipt",
		"lot_id", l.ID,
		"number", l.Number,
		"quantity", l.ReceivedQuantity,
	)
	return l, nil
}

// MovementParams carries the caller-supplied fields of a movement.
type MovementParams struct {
	Quantity    types.Quantity
	Reference   string
	Notes       string
	PerformedBy string

	// Weight is the explicit weight of newly received stock. When nil,
	// weight tracks the quantity change proportionally.
	Weight *types.Quantity
}

// Receive appends stock to an existing lot (subsequent receipt against
// the same GRN line). The receiving reconciler is the sole caller.
func (s *Service) Receive(ctx context.Context, lotID id.ID, p MovementParams) (*ledger.Movement, error) {
	return s.recordWithWeight(ctx, lotID, ledger.AppendRequest{
		Type:        ledger.TypeReceived,
		Quantity:    p.Quantity,
		Reference:   p.Reference,
		Notes:       p.Notes,
		PerformedBy: p.PerformedBy,
	}, p.Weight)
}

// Issue removes available stock against a sales commitment.
func (s *Service) Issue(ctx context.Context, lotID id.ID, p MovementParams) (*ledger.Movement, error) {
	return s.record(ctx, lotID, ledger.AppendRequest{
		Type:        ledger.TypeIssued,
		Quantity:    p.Quantity,
		Reference:   p.Reference,
		Notes:       p.Notes,
		PerformedBy: p.PerformedBy,
	})
}

// Adjust corrects the on-hand quantity with an explicit direction.
func (s *Service) Adjust(ctx context.Context, lotID id.ID, direction ledger.Direction, p MovementParams) (*ledger.Movement, error) {
	return s.record(ctx, lotID, ledger.AppendRequest{
		Type:        ledger.TypeAdjusted,
		Quantity:    p.Quantity,
		Direction:   direction,
		Reference:   p.Reference,
		Notes:       p.Notes,
		PerformedBy: p.PerformedBy,
	})
}

// ReturnStock records a customer return back into the lot.
func (s *Service) ReturnStock(ctx context.Context, lotID id.ID, p MovementParams) (*ledger.Movement, error) {
	return s.record(ctx, lotID, ledger.AppendRequest{
		Type:        ledger.TypeReturned,
		Quantity:    p.Quantity,
		Reference:   p.Reference,
		Notes:       p.Notes,
		PerformedBy: p.PerformedBy,
	})
}

// MarkDamaged writes off available stock as damaged.
func (s *Service) MarkDamaged(ctx context.Context, lotID id.ID, p MovementParams) (*ledger.Movement, error) {
	return s.record(ctx, lotID, ledger.AppendRequest{
		Type:        ledger.TypeDamaged,
		Quantity:    p.Quantity,
		Reference:   p.Reference,
		Notes:       p.Notes,
		PerformedBy: p.PerformedBy,
	})
}

// RecordMovement dispatches a caller-specified movement type. Transfer
// entries must go through the transfer coordinator and receipts through
// the receiving reconciler, so both are rejected here.
func (s *Service) RecordMovement(ctx context.Context, lotID id.ID, t ledger.MovementType, direction ledger.Direction, p MovementParams) (*ledger.Movement, error) {
	switch t {
	case ledger.TypeIssued:
		return s.Issue(ctx, lotID, p)
	case ledger.TypeAdjusted:
		return s.Adjust(ctx, lotID, direction, p)
	case ledger.TypeReturned:
		return s.ReturnStock(ctx, lotID, p)
	case ledger.TypeDamaged:
		return s.MarkDamaged(ctx, lotID, p)
	case ledger.TypeReceived:
		return nil, apperror.NewValidation("receipts must be confirmed through the receiving workflow").
			WithDetail("type", string(t))
	case ledger.TypeTransferIn, ledger.TypeTransferOut:
		return nil, apperror.NewValidation("transfers must go through the transfer operation").
			WithDetail("type", string(t))
	default:
		return nil, apperror.NewValidation("unknown movement type").
			WithDetail("type", string(t))
	}
}

// record runs the read-validate-append-write sequence under the lot's
// exclusive section and one transaction.
func (s *Service) record(ctx context.Context, lotID id.ID, req ledger.AppendRequest) (*ledger.Movement, error) {
	return s.recordWithWeight(ctx, lotID, req, nil)
}

func (s *Service) recordWithWeight(ctx context.Context, lotID id.ID, req ledger.AppendRequest, weight *types.Quantity) (*ledger.Movement, error) {
	if !req.Quantity.IsPositive() {
		return nil, apperror.NewValidation("quantity must be positive").
			WithDetail("quantity", req.Quantity.String())
	}

	release := s.locks.Lock(lotID)
	defer release()

	var m *ledger.Movement
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		l, err := s.repo.GetByID(ctx, lotID)
		if err != nil {
			return err
		}
		m, err = s.apply(ctx, l, req, weight)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "movement recorded",
		"lot_id", lotID,
		"type", req.Type,
		"quantity", req.Quantity,
		"balance_after", m.BalanceAfter,
	)
	return m, nil
}

// Apply appends a movement to the ledger and persists the lot's half of
// the change: quantity, proportional weight, reservation clamp, status
// and freshly evaluated alerts. The caller must already hold the lot's
// exclusive section and an open transaction. Exported for the transfer
// coordinator, which applies two sides under one transaction.
func (s *Service) Apply(ctx context.Context, l *Lot, req ledger.AppendRequest) (*ledger.Movement, error) {
	return s.apply(ctx, l, req, nil)
}

func (s *Service) apply(ctx context.Context, l *Lot, req ledger.AppendRequest, weight *types.Quantity) (*ledger.Movement, error) {
	bal := ledger.Balance{
		LotID:    l.ID,
		OnHand:   l.CurrentQuantity,
		Reserved: l.ReservedQuantity,
	}

	m, err := s.ledger.Append(ctx, bal, req)
	if err != nil {
		return nil, err
	}

	switch {
	case weight != nil && m.Direction == ledger.DirectionIncrease:
		l.Weight += *weight
	case l.CurrentQuantity.IsPositive() && !l.Weight.IsZero():
		// Weight tracks quantity proportionally.
		perUnit := l.Weight.Float64() / l.CurrentQuantity.Float64()
		l.Weight = types.NewQuantityFromFloat64(m.BalanceAfter.Float64() * perUnit)
	}

	l.CurrentQuantity = m.BalanceAfter
	l.ClampReserved()
	l.RecomputeStatus()

	if _, err := s.evaluator.Evaluate(l, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("evaluate alerts: %w", err)
	}

	l.Touch()
	if err := s.repo.Update(ctx, l); err != nil {
		return nil, fmt.Errorf("update lot: %w", err)
	}

	return m, nil
}

// Reserve holds quantity against an unfulfilled sale. Reservation does
// not change on-hand stock, so no movement is appended; the change is
// recorded in the audit trail.
func (s *Service) Reserve(ctx context.Context, lotID id.ID, quantity types.Quantity, reference, performedBy string) (*Lot, error) {
	return s.updateReservation(ctx, lotID, quantity, reference, performedBy, audit.ActionReserve)
}

// Release frees previously reserved quantity.
func (s *Service) Release(ctx context.Context, lotID id.ID, quantity types.Quantity, reference, performedBy string) (*Lot, error) {
	return s.updateReservation(ctx, lotID, quantity, reference, performedBy, audit.ActionRelease)
}

func (s *Service) updateReservation(ctx context.Context, lotID id.ID, quantity types.Quantity, reference, performedBy string, action audit.Action) (*Lot, error) {
	if !quantity.IsPositive() {
		return nil, apperror.NewValidation("quantity must be positive").
			WithDetail("quantity", quantity.String())
	}
	if strings.TrimSpace(performedBy) == "" {
		return nil, apperror.NewValidation("performedBy is required").
			WithDetail("field", "performedBy")
	}

	release := s.locks.Lock(lotID)
	defer release()

	var l *Lot
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		l, err = s.repo.GetByID(ctx, lotID)
		if err != nil {
			return err
		}

		before := l.ReservedQuantity
		switch action {
		case audit.ActionReserve:
			if quantity > l.AvailableQuantity() {
				return apperror.NewInsufficientAvailable(
					lotID.String(), quantity.Float64(), l.AvailableQuantity().Float64())
			}
			l.ReservedQuantity += quantity
		case audit.ActionRelease:
			if quantity > l.ReservedQuantity {
				return apperror.NewValidation("release exceeds reserved quantity").
					WithDetail("requested", quantity.String()).
					WithDetail("reserved", l.ReservedQuantity.String())
			}
			l.ReservedQuantity -= quantity
		}

		l.RecomputeStatus()
		l.Touch()
		if err := s.repo.Update(ctx, l); err != nil {
			return fmt.Errorf("update lot: %w", err)
		}

		return s.auditor.Record(ctx, audit.NewEntry("Lot", l.ID, action, performedBy, map[string]any{
			"reference":       reference,
			"quantity":        quantity.String(),
			"reserved_before": before.String(),
			"reserved_after":  l.ReservedQuantity.String(),
		}))
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "reservation updated",
		"lot_id", lotID,
		"action", action,
		"quantity", quantity,
		"reserved", l.ReservedQuantity,
	)
	return l, nil
}

// AcknowledgeAlert marks an alert as handled. Unknown alert ids fail
// with NotFound; acknowledging an already-acknowledged alert is a no-op
// returning the alert unchanged, so retries are idempotent.
func (s *Service) AcknowledgeAlert(ctx context.Context, lotID, alertID id.ID, performedBy string) (*Alert, error) {
	if strings.TrimSpace(performedBy) == "" {
		return nil, apperror.NewValidation("performedBy is required").
			WithDetail("field", "performedBy")
	}

	release := s.locks.Lock(lotID)
	defer release()

	var acked *Alert
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		l, err := s.repo.GetByID(ctx, lotID)
		if err != nil {
			return err
		}

		a := l.FindAlert(alertID)
		if a == nil {
			return apperror.NewNotFound("alert", alertID.String())
		}
		if a.Acknowledged {
			copied := *a
			acked = &copied
			return nil
		}

		now := time.Now().UTC()
		a.Acknowledged = true
		a.AcknowledgedBy = performedBy
		a.AcknowledgedDate = &now

		l.Touch()
		if err := s.repo.Update(ctx, l); err != nil {
			return fmt.Errorf("update lot: %w", err)
		}

		copied := *a
		acked = &copied
		return s.auditor.Record(ctx, audit.NewEntry("Alert", a.ID, audit.ActionAcknowledge, performedBy, map[string]any{
			"lot_id": lotID.String(),
			"type":   string(a.Type),
		}))
	})
	if err != nil {
		return nil, err
	}
	return acked, nil
}

// Get retrieves a lot by id.
func (s *Service) Get(ctx context.Context, lotID id.ID) (*Lot, error) {
	return s.repo.GetByID(ctx, lotID)
}

// List retrieves lots with filtering.
func (s *Service) List(ctx context.Context, filter Filter) ([]*Lot, error) {
	return s.repo.List(ctx, filter)
}

// ListMovements returns a lot's movement history, most recent first.
func (s *Service) ListMovements(ctx context.Context, lotID id.ID, filter ledger.Filter) ([]ledger.Movement, error) {
	if _, err := s.repo.GetByID(ctx, lotID); err != nil {
		return nil, err
	}
	return s.ledger.History(ctx, lotID, filter)
}

// ListLowStockAlerts returns open low-stock alerts across all lots.
func (s *Service) ListLowStockAlerts(ctx context.Context, limit int) ([]Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListOpenAlerts(ctx, AlertLowStock, limit)
}

// VerifyLedger replays a lot's movement history and checks the replay
// invariant: current = received + signed sum of movements. The lot and
// its movements are read in one read-only transaction, so a concurrent
// mutation cannot make a consistent ledger look broken.
func (s *Service) VerifyLedger(ctx context.Context, lotID id.ID) error {
	return s.txm.ReadOnly(ctx, func(ctx context.Context) error {
		l, err := s.repo.GetByID(ctx, lotID)
		if err != nil {
			return err
		}
		replayed, err := s.ledger.Replay(ctx, lotID, l.ReceivedQuantity)
		if err != nil {
			return err
		}
		if replayed != l.CurrentQuantity {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, "ledger replay mismatch").
				WithDetail("lot_id", lotID.String()).
				WithDetail("stored", l.CurrentQuantity.String()).
				WithDetail("replayed", replayed.String())
		}
		return nil
	})
}
