// Package feed normalizes price updates — simulated or external — into a
// single internal stream, per spec.md §4.3.
package feed

import (
	"context"

	"github.com/titanex-labs/titanex/internal/decimal"
)

// Tick is one accepted price update. InternalSeq is assigned by the
// adapter itself and is monotonic regardless of what an external source's
// own sequence numbers do across a reconnect (spec.md §4.3).
type Tick struct {
	Symbol      string
	Price       decimal.Decimal
	InternalSeq uint64
	TsMillis    uint64
}

// Source produces an unbounded stream of Ticks onto out until ctx is
// cancelled. Implementations must never block past ctx cancellation; a
// full out channel is the caller's backpressure signal (spec.md §5).
type Source interface {
	Run(ctx context.Context, out chan<- Tick) error
}
