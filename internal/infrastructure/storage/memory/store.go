// Package memory provides an in-process storage backend with the same
// contracts as the postgres package. Used for tests and for running the
// server without a database.
package memory

import (
	"sync"

	"lotledger/internal/core/id"
	"lotledger/internal/domain/audit"
	"lotledger/internal/domain/ledger"
	"lotledger/internal/domain/lot"
)

// Store holds all state behind one mutex. Transactions snapshot the
// state and restore it on error, giving the same all-or-nothing
// semantics the domain expects from postgres.
type Store struct {
	mu sync.Mutex

	lots      map[id.ID]*lot.Lot
	movements map[id.ID][]ledger.Movement
	sequences map[string]int64
	audit     []audit.Entry
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		lots:      make(map[id.ID]*lot.Lot),
		movements: make(map[id.ID][]ledger.Movement),
		sequences: make(map[string]int64),
	}
}

type snapshot struct {
	lots      map[id.ID]*lot.Lot
	movements map[id.ID][]ledger.Movement
	sequences map[string]int64
	audit     []audit.Entry
}

// snapshot deep-copies the state. The caller must hold mu.
func (s *Store) snapshot() snapshot {
	snap := snapshot{
		lots:      make(map[id.ID]*lot.Lot, len(s.lots)),
		movements: make(map[id.ID][]ledger.Movement, len(s.movements)),
		sequences: make(map[string]int64, len(s.sequences)),
		audit:     append([]audit.Entry(nil), s.audit...),
	}
	for k, v := range s.lots {
		snap.lots[k] = copyLot(v)
	}
	for k, v := range s.movements {
		snap.movements[k] = append([]ledger.Movement(nil), v...)
	}
	for k, v := range s.sequences {
		snap.sequences[k] = v
	}
	return snap
}

// restore puts a snapshot back. The caller must hold mu.
func (s *Store) restore(snap snapshot) {
	s.lots = snap.lots
	s.movements = snap.movements
	s.sequences = snap.sequences
	s.audit = snap.audit
}

func copyLot(l *lot.Lot) *lot.Lot {
	copied := *l
	copied.Alerts = append([]lot.Alert(nil), l.Alerts...)
	if l.ExpiryDate != nil {
		expiry := *l.ExpiryDate
		copied.ExpiryDate = &expiry
	}
	for i := range copied.Alerts {
		if copied.Alerts[i].AcknowledgedDate != nil {
			ackDate := *copied.Alerts[i].AcknowledgedDate
			copied.Alerts[i].AcknowledgedDate = &ackDate
		}
	}
	return &copied
}
