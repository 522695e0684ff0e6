package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"lotledger/internal/core/id"
	"lotledger/internal/core/types"
	"lotledger/internal/domain/ledger"
)

const movementsTable = "lot_movements"

var movementColumns = []string{
	"id", "lot_id", "type", "direction", "quantity", "balance_after",
	"reference", "notes", "performed_by", "created_at",
}

// MovementRepo implements ledger.Repository. Movements are append-only:
// there is no update or delete path.
type MovementRepo struct {
	txm     *TxManager
	builder squirrel.StatementBuilderType
}

// NewMovementRepo creates a new movement repository.
func NewMovementRepo(txm *TxManager) *MovementRepo {
	return &MovementRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create appends a movement.
func (r *MovementRepo) Create(ctx context.Context, m *ledger.Movement) error {
	q := r.builder.Insert(movementsTable).
		Columns(movementColumns...).
		Values(
			m.ID, m.LotID, m.Type, m.Direction, m.Quantity, m.BalanceAfter,
			m.Reference, m.Notes, m.PerformedBy, m.CreatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}
	return nil
}

// ListByLot returns movements for a lot, newest first.
func (r *MovementRepo) ListByLot(ctx context.Context, lotID id.ID, filter ledger.Filter) ([]ledger.Movement, error) {
	q := r.builder.Select(movementColumns...).From(movementsTable).
		Where(squirrel.Eq{"lot_id": lotID}).
		OrderBy("created_at DESC", "id DESC")

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

	var movements []ledger.Movement
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}
	return movements, nil
}

// SumSignedByLot returns the signed sum of all movements for a lot.
func (r *MovementRepo) SumSignedByLot(ctx context.Context, lotID id.ID) (types.Quantity, error) {
	sql := `
		SELECT COALESCE(
			SUM(CASE WHEN direction = 'increase' THEN quantity ELSE -quantity END),
			0
		)
		FROM lot_movements
		WHERE lot_id = $1
	`

	var sumScaled int64
	querier := r.txm.GetQuerier(ctx)
	err := querier.QueryRow(ctx, sql, lotID).Scan(&sumScaled)
	if err != nil && err != pgx.ErrNoRows {
		return 0, fmt.Errorf("sum movements: %w", err)
	}

	return types.NewQuantityFromInt64Scaled(sumScaled), nil
}

// Ensure interface compliance.
var _ ledger.Repository = (*MovementRepo)(nil)
