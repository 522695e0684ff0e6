// Package lock provides per-key mutual exclusion for lot mutations.
//
// Every mutating operation against a lot must run its read-validate-append-write
// sequence under the lot's exclusive section; two concurrent issues validated
// against the same stale balance is a lost-update hazard. Channel-based
// sections give FIFO ordering of waiters.
package lock

import (
	"sync"

	"lotledger/internal/core/id"
)

type section struct {
	ch   chan struct{}
	refs int
}

// Keyed serializes operations per key. Sections are created on first use
// and removed when the last waiter releases, so the map does not grow
// with the number of lots ever touched.
type Keyed struct {
	mu       sync.Mutex
	sections map[id.ID]*section
}

// NewKeyed creates an empty keyed lock.
func NewKeyed() *Keyed {
	return &Keyed{sections: make(map[id.ID]*section)}
}

// Lock acquires the exclusive section for key, blocking until the current
// holder releases. Returns the release function.
func (k *Keyed) Lock(key id.ID) func() {
	k.mu.Lock()
	s, ok := k.sections[key]
	if !ok {
		s = &section{ch: make(chan struct{}, 1)}
		k.sections[key] = s
	}
	s.refs++
	k.mu.Unlock()

	s.ch <- struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			k.mu.Lock()
			s.refs--
			if s.refs == 0 {
				delete(k.sections, key)
			}
			k.mu.Unlock()
		})
	}
}

// LockPair acquires two sections in a fixed global order (ascending key)
// to avoid deadlock between transfers that touch the same pair of lots.
// Returns a single release function for both.
func (k *Keyed) LockPair(a, b id.ID) func() {
	if a == b {
		return k.Lock(a)
	}
	first, second := a, b
	if id.Less(b, a) {
		first, second = b, a
	}
	releaseFirst := k.Lock(first)
	releaseSecond := k.Lock(second)
	return func() {
		releaseSecond()
		releaseFirst()
	}
}
