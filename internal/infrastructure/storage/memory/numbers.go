package memory

import (
	"context"
	"fmt"
	"time"
)

// NumberGenerator assigns sequential lot numbers from the store's
// sequence map, format LOT-YYYY-NNNNN, resetting yearly.
type NumberGenerator struct {
	store *Store
}

// NewNumberGenerator creates an in-memory lot number generator.
func NewNumberGenerator(store *Store) *NumberGenerator {
	return &NumberGenerator{store: store}
}

// NextLotNumber returns the next sequential lot number.
func (g *NumberGenerator) NextLotNumber(ctx context.Context) (string, error) {
	unlock := g.store.lock(ctx)
	defer unlock()

	year := time.Now().Format("2006")
	key := "LOT_" + year
	g.store.sequences[key]++
	return fmt.Sprintf("LOT-%s-%05d", year, g.store.sequences[key]), nil
}
