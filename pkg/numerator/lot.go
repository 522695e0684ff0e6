package numerator

import (
	"context"
	"time"
)

// LotNumbers adapts the numbering service to the lot aggregate's
// number-generator contract. Lot numbers reset yearly: LOT-2026-00042.
type LotNumbers struct {
	svc  *Service
	cfg  Config
	opts *Options
}

// NewLotNumbers creates a lot-number generator with the standard
// LOT prefix and strict strategy.
func NewLotNumbers(svc *Service) *LotNumbers {
	return &LotNumbers{
		svc:  svc,
		cfg:  DefaultConfig("LOT"),
		opts: DefaultOptions(),
	}
}

// NextLotNumber returns the next sequential lot number.
func (n *LotNumbers) NextLotNumber(ctx context.Context) (string, error) {
	return n.svc.GetNextNumber(ctx, n.cfg, n.opts, time.Now())
}
