package titan

import (
	"fmt"

	"github.com/titanex-labs/titanex/internal/decimal"
)

// Market carries the per-symbol trading parameters the book validates
// orders against before matching. Generalized from the teacher's
// pkg/app/core/market.go (tick size, lot size, min notional) to the
// Decimal price/quantity type.
type Market struct {
	Symbol      string
	TickSize    decimal.Decimal // minimum price increment
	LotSize     decimal.Decimal // minimum quantity increment
	MinNotional decimal.Decimal // minimum order value (price * qty)
	MaxOrderQty decimal.Decimal // zero means unbounded

	// PreventSelfTrade toggles self-trade prevention for this symbol's book
	// (spec.md §9 Open Question (a)); default false, self-trading permitted.
	PreventSelfTrade bool
}

// NewMarket builds a Market with the given symbol and parameters,
// validating them eagerly.
func NewMarket(symbol string, tickSize, lotSize, minNotional, maxOrderQty decimal.Decimal) (*Market, error) {
	m := &Market{
		Symbol:      symbol,
		TickSize:    tickSize,
		LotSize:     lotSize,
		MinNotional: minNotional,
		MaxOrderQty: maxOrderQty,
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks market parameter sanity (mirrors the teacher's
// Market.Validate).
func (m *Market) Validate() error {
	if m.Symbol == "" {
		return fmt.Errorf("titan: symbol cannot be empty")
	}
	if !m.TickSize.IsPos() {
		return fmt.Errorf("titan: tick size must be positive")
	}
	if !m.LotSize.IsPos() {
		return fmt.Errorf("titan: lot size must be positive")
	}
	if m.MinNotional.IsNeg() {
		return fmt.Errorf("titan: min notional cannot be negative")
	}
	return nil
}

// isMultiple reports whether v is an exact multiple of step (both
// expressed as raw fixed-point units).
func isMultiple(v, step decimal.Decimal) bool {
	if step.Units() == 0 {
		return true
	}
	return v.Units()%step.Units() == 0
}

// ValidateOrder applies market-level checks ahead of the generic
// zero-quantity/non-positive-price checks Submit performs. Market orders
// (order.Market == true) skip the tick-size check since their price is a
// sentinel, not a real limit.
func (m *Market) ValidateOrder(order *Order) error {
	if order.Qty.Sign() <= 0 {
		return ErrZeroQuantity
	}
	if !isMultiple(order.Qty, m.LotSize) {
		return fmt.Errorf("titan: quantity %s is not a multiple of lot size %s", order.Qty, m.LotSize)
	}
	if m.MaxOrderQty.IsPos() && order.Qty.GreaterThan(m.MaxOrderQty) {
		return fmt.Errorf("titan: quantity %s exceeds max order size %s", order.Qty, m.MaxOrderQty)
	}
	if order.Market {
		return nil
	}
	if order.Price.Sign() <= 0 {
		return ErrNonPositivePrice
	}
	if !isMultiple(order.Price, m.TickSize) {
		return fmt.Errorf("titan: price %s is not a multiple of tick size %s", order.Price, m.TickSize)
	}
	notional, err := order.Price.Mul(order.Qty)
	if err != nil {
		return fmt.Errorf("titan: notional overflow: %w", err)
	}
	if notional.LessThan(m.MinNotional) {
		return fmt.Errorf("titan: notional %s below minimum %s", notional, m.MinNotional)
	}
	return nil
}
