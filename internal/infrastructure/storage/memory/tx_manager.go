package memory

import (
	"context"

	"lotledger/internal/core/tx"
)

// Compile-time check that TxManager implements tx.Manager interface.
var _ tx.ReadOnlyManager = (*TxManager)(nil)

type txKey struct{}

// TxManager serializes access to the store and restores a snapshot when
// the transactional function fails. Nested calls reuse the outer
// transaction, matching the postgres manager's behavior.
type TxManager struct {
	store *Store
}

// NewTxManager creates a transaction manager over the store.
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// inTx reports whether ctx is already inside a transaction.
func inTx(ctx context.Context) bool {
	return ctx.Value(txKey{}) != nil
}

// RunInTransaction executes fn against a snapshot-guarded store.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	snap := m.store.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, struct{}{})); err != nil {
		m.store.restore(snap)
		return err
	}
	return nil
}

// ReadOnly executes fn under the store lock without snapshotting.
func (m *TxManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	return fn(context.WithValue(ctx, txKey{}, struct{}{}))
}

// lock acquires the store mutex for a standalone repo call outside any
// transaction. Returns an unlock func, a no-op when already inside one.
func (s *Store) lock(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}
