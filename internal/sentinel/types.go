// Package sentinel is the risk/liquidation engine described in spec.md
// §4.4: it owns account state exclusively, evaluates margin on every price
// tick, and forces positions closed when an account breaches maintenance
// margin. Account/position seeding itself is out of scope (spec.md §1) —
// sentinel only mutates accounts it has already been handed via
// AddAccount.
package sentinel

import "github.com/titanex-labs/titanex/internal/decimal"

// PositionSide is Long or Short, spec.md §3's Position.side.
type PositionSide uint8

const (
	Long PositionSide = iota
	Short
)

func (s PositionSide) String() string {
	if s == Long {
		return "long"
	}
	return "short"
}

// Position is one symbol's leveraged exposure within an Account. Only one
// position per symbol is modeled per account, matching spec.md §3's
// "positions map symbol → Position".
type Position struct {
	Symbol           string
	Side             PositionSide
	Size             decimal.Decimal // > 0
	EntryPrice       decimal.Decimal
	Leverage         uint32 // >= 1
	LiquidationPrice decimal.Decimal
	UnrealizedPnL    decimal.Decimal // recomputed on every relevant tick
}

// unrealizedPnL computes size*(mark-entry) for Long, size*(entry-mark) for
// Short, per spec.md §4.4's margin computation.
func (p *Position) unrealizedPnL(mark decimal.Decimal) (decimal.Decimal, error) {
	var diff decimal.Decimal
	var err error
	if p.Side == Long {
		diff, err = mark.Sub(p.EntryPrice)
	} else {
		diff, err = p.EntryPrice.Sub(mark)
	}
	if err != nil {
		return decimal.Zero, err
	}
	return p.Size.Mul(diff)
}

// notional returns size*mark, the denominator term spec.md §4.4's margin
// ratio sums across positions.
func (p *Position) notional(mark decimal.Decimal) (decimal.Decimal, error) {
	return p.Size.Mul(mark)
}

// liquidationPrice is the bankruptcy price implied by entry price and
// leverage alone — entry*(1 - 1/leverage) for Long, entry*(1 + 1/leverage)
// for Short — computed once when the position is handed to Sentinel
// (original_source/src/types.rs stores this alongside the position). It is
// purely informational: unlike the Rust source, titanex does NOT use it to
// decide or pre-filter liquidations, since the maintenance-margin trigger
// price depends on the account's collateral (and, for multi-position
// accounts, every other position too), not on entry price and leverage
// alone — a mark can breach maintenance margin well before it reaches this
// bankruptcy price. The authoritative check is always the full
// equity/notional evaluation in evaluateLocked.
func liquidationPrice(side PositionSide, entry decimal.Decimal, leverage uint32) (decimal.Decimal, error) {
	if leverage == 0 {
		leverage = 1
	}
	step, err := entry.DivInt64(int64(leverage))
	if err != nil {
		return decimal.Zero, err
	}
	if side == Long {
		return entry.Sub(step)
	}
	return entry.Add(step)
}

// Account is sentinel's exclusively-owned unit of risk state, spec.md §3.
type Account struct {
	UserID        uint64
	Collateral    decimal.Decimal // goes negative when a liquidation realizes a loss larger than it, and stays so
	UnrealizedPnL decimal.Decimal // sum across all positions, recomputed per evaluation

	// MarginRatio is equity/notional as of the last evaluation, cached so
	// Snapshot's read path never recomputes it (original_source/src/types.rs
	// caches margin_ratio on Account rather than deriving it per read).
	// It is purely informational: the liquidation decision never divides.
	MarginRatio float64

	Positions map[string]*Position
}

// NewAccount creates an account with the given starting collateral and no
// positions.
func NewAccount(userID uint64, collateral decimal.Decimal) *Account {
	return &Account{
		UserID:     userID,
		Collateral: collateral,
		Positions:  make(map[string]*Position),
	}
}

// AccountView is a read-only snapshot returned by Manager.Snapshot, per
// spec.md §4.4's "external readers may observe read-only snapshots".
type AccountView struct {
	UserID        uint64
	Collateral    decimal.Decimal
	UnrealizedPnL decimal.Decimal
	MarginRatio   float64
	Positions     map[string]Position
}

// LiquidationResult is what Manager.OnTick returns for each position it
// was forced to close, spec.md §3's LiquidationEvent plus the resulting
// account state for the caller to forward as an AccountUpdated event.
type LiquidationResult struct {
	UserID       uint64
	Symbol       string
	Size         decimal.Decimal
	MarkPrice    decimal.Decimal
	RealizedLoss decimal.Decimal // signed; negative means a loss
	Collateral   decimal.Decimal // account collateral after realizing this loss
}

// PriceTick is the input to OnTick: one accepted mark-price update for a
// symbol (spec.md §4.3/§4.4).
type PriceTick struct {
	Symbol string
	Price  decimal.Decimal
}
