package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"lotledger/internal/core/apperror"
	"lotledger/internal/core/id"
	"lotledger/internal/core/types"
	"lotledger/internal/domain/lot"
)

const (
	lotsTable      = "lots"
	lotAlertsTable = "lot_alerts"
)

var lotColumns = []string{
	"id", "number", "product_id", "supplier_id", "grn_line_id",
	"received_quantity", "current_quantity", "reserved_quantity", "weight",
	"unit_cost", "status", "quality_status",
	"zone", "rack", "shelf", "bin",
	"reorder_level", "received_date", "expiry_date",
	"version", "created_at", "updated_at",
}

var alertColumns = []string{
	"id", "lot_id", "type", "message", "date",
	"acknowledged", "acknowledged_by", "acknowledged_date",
}

// lotRow flattens the aggregate for scanning; location lives in four
// columns, alerts in their own table.
type lotRow struct {
	ID               id.ID             `db:"id"`
	Number           string            `db:"number"`
	ProductID        id.ID             `db:"product_id"`
	SupplierID       id.ID             `db:"supplier_id"`
	GRNLineID        id.ID             `db:"grn_line_id"`
	ReceivedQuantity types.Quantity    `db:"received_quantity"`
	CurrentQuantity  types.Quantity    `db:"current_quantity"`
	ReservedQuantity types.Quantity    `db:"reserved_quantity"`
	Weight           types.Quantity    `db:"weight"`
	UnitCost         types.Money       `db:"unit_cost"`
	Status           lot.Status        `db:"status"`
	QualityStatus    lot.QualityStatus `db:"quality_status"`
	Zone             string            `db:"zone"`
	Rack             string            `db:"rack"`
	Shelf            string            `db:"shelf"`
	Bin              string            `db:"bin"`
	ReorderLevel     types.Quantity    `db:"reorder_level"`
	ReceivedDate     time.Time         `db:"received_date"`
	ExpiryDate       *time.Time        `db:"expiry_date"`
	Version          int               `db:"version"`
	CreatedAt        time.Time         `db:"created_at"`
	UpdatedAt        time.Time         `db:"updated_at"`
}

func (r lotRow) toLot() *lot.Lot {
	return &lot.Lot{
		ID:               r.ID,
		Number:           r.Number,
		ProductID:        r.ProductID,
		SupplierID:       r.SupplierID,
		GRNLineID:        r.GRNLineID,
		ReceivedQuantity: r.ReceivedQuantity,
		CurrentQuantity:  r.CurrentQuantity,
		ReservedQuantity: r.ReservedQuantity,
		Weight:           r.Weight,
		UnitCost:         r.UnitCost,
		Status:           r.Status,
		QualityStatus:    r.QualityStatus,
		Location:         lot.Location{Zone: r.Zone, Rack: r.Rack, Shelf: r.Shelf, Bin: r.Bin},
		ReorderLevel:     r.ReorderLevel,
		ReceivedDate:     r.ReceivedDate,
		ExpiryDate:       r.ExpiryDate,
		Version:          r.Version,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func lotValues(l *lot.Lot) []any {
	return []any{
		l.ID, l.Number, l.ProductID, l.SupplierID, l.GRNLineID,
		l.ReceivedQuantity, l.CurrentQuantity, l.ReservedQuantity, l.Weight,
		l.UnitCost, l.Status, l.QualityStatus,
		l.Location.Zone, l.Location.Rack, l.Location.Shelf, l.Location.Bin,
		l.ReorderLevel, l.ReceivedDate, l.ExpiryDate,
		l.Version, l.CreatedAt, l.UpdatedAt,
	}
}

// LotRepo implements lot.Repository.
type LotRepo struct {
	txm     *TxManager
	builder squirrel.StatementBuilderType
}

// NewLotRepo creates a new lot repository.
func NewLotRepo(txm *TxManager) *LotRepo {
	return &LotRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts the lot and its alerts. New lots start at version 1.
func (r *LotRepo) Create(ctx context.Context, l *lot.Lot) error {
	l.Version = 1

	q := r.builder.Insert(lotsTable).
		Columns(lotColumns...).
		Values(lotValues(l)...)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		// The unique index on grn_line_id is the cross-process guard
		// against two first receipts minting two lots for one line.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperror.NewConcurrencyConflict("lot for GRN line", l.GRNLineID.String())
		}
		return fmt.Errorf("insert lot: %w", err)
	}

	return r.upsertAlerts(ctx, l)
}

// GetByID loads the aggregate with its alerts.
func (r *LotRepo) GetByID(ctx context.Context, lotID id.ID) (*lot.Lot, error) {
	return r.getOne(ctx, squirrel.Eq{"id": lotID}, "lot", lotID.String())
}

// GetByGRNLine returns the lot created for a goods-receipt line.
func (r *LotRepo) GetByGRNLine(ctx context.Context, grnLineID id.ID) (*lot.Lot, error) {
	return r.getOne(ctx, squirrel.Eq{"grn_line_id": grnLineID}, "lot for GRN line", grnLineID.String())
}

func (r *LotRepo) getOne(ctx context.Context, pred any, entity, key string) (*lot.Lot, error) {
	q := r.builder.Select(lotColumns...).From(lotsTable).Where(pred).Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var row lotRow
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(entity, key)
		}
		return nil, fmt.Errorf("get lot: %w", err)
	}

	l := row.toLot()
	if err := r.loadAlerts(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// Update persists the aggregate with an optimistic version check.
func (r *LotRepo) Update(ctx context.Context, l *lot.Lot) error {
	q := r.builder.Update(lotsTable).
		Set("current_quantity", l.CurrentQuantity).
		Set("reserved_quantity", l.ReservedQuantity).
		Set("weight", l.Weight).
		Set("status", l.Status).
		Set("quality_status", l.QualityStatus).
		Set("zone", l.Location.Zone).
		Set("rack", l.Location.Rack).
		Set("shelf", l.Location.Shelf).
		Set("bin", l.Location.Bin).
		Set("reorder_level", l.ReorderLevel).
		Set("expiry_date", l.ExpiryDate).
		Set("version", l.Version+1).
		Set("updated_at", l.UpdatedAt).
		Where(squirrel.Eq{"id": l.ID, "version": l.Version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update lot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConcurrencyConflict("lot", l.ID.String())
	}
	l.Version++

	return r.upsertAlerts(ctx, l)
}

// List retrieves lots with filtering, newest first.
func (r *LotRepo) List(ctx context.Context, filter lot.Filter) ([]*lot.Lot, error) {
	q := r.builder.Select(lotColumns...).From(lotsTable)

	if filter.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *filter.ProductID})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}

	q = q.OrderBy("created_at DESC", "id DESC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []lotRow
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select lots: %w", err)
	}

	lots := make([]*lot.Lot, 0, len(rows))
	for _, row := range rows {
		l := row.toLot()
		if err := r.loadAlerts(ctx, l); err != nil {
			return nil, err
		}
		lots = append(lots, l)
	}
	return lots, nil
}

// ListOpenAlerts returns unacknowledged alerts of a type across all
// lots, newest first.
func (r *LotRepo) ListOpenAlerts(ctx context.Context, t lot.AlertType, limit int) ([]lot.Alert, error) {
	q := r.builder.Select(alertColumns...).From(lotAlertsTable).
		Where(squirrel.Eq{"type": t, "acknowledged": false}).
		OrderBy("date DESC", "id DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var alerts []lot.Alert
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &alerts, sql, args...); err != nil {
		return nil, fmt.Errorf("select alerts: %w", err)
	}
	return alerts, nil
}

func (r *LotRepo) loadAlerts(ctx context.Context, l *lot.Lot) error {
	q := r.builder.Select(alertColumns...).From(lotAlertsTable).
		Where(squirrel.Eq{"lot_id": l.ID}).
		OrderBy("date ASC", "id ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &l.Alerts, sql, args...); err != nil {
		return fmt.Errorf("select lot alerts: %w", err)
	}
	return nil
}

// upsertAlerts writes the aggregate's alert list. Alerts are only ever
// appended or acknowledged, so an upsert keyed by id suffices.
func (r *LotRepo) upsertAlerts(ctx context.Context, l *lot.Lot) error {
	if len(l.Alerts) == 0 {
		return nil
	}

	q := r.builder.Insert(lotAlertsTable).Columns(alertColumns...)
	for _, a := range l.Alerts {
		q = q.Values(
			a.ID, a.LotID, a.Type, a.Message, a.Date,
			a.Acknowledged, a.AcknowledgedBy, a.AcknowledgedDate,
		)
	}
	q = q.Suffix(`ON CONFLICT (id) DO UPDATE SET
		acknowledged = EXCLUDED.acknowledged,
		acknowledged_by = EXCLUDED.acknowledged_by,
		acknowledged_date = EXCLUDED.acknowledged_date`)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build alert upsert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("upsert lot alerts: %w", err)
	}
	return nil
}

// Ensure interface compliance.
var _ lot.Repository = (*LotRepo)(nil)
