// Package oracle is the append-only event log described in spec.md §4.2:
// every state-changing action in the system is turned into a SystemEvent
// and appended here. Inputs (OrderPlaced, PriceUpdate) are appended before
// Titan/Sentinel see them; the executions, liquidations and account updates
// those produce are appended right after. The log is the single source of
// truth for replay and crash recovery.
package oracle

import "github.com/titanex-labs/titanex/internal/decimal"

// Kind is the 1-byte discriminant stored ahead of every event's payload.
type Kind uint8

const (
	KindOrderPlaced Kind = iota + 1
	KindOrderExecuted
	KindPositionOpened
	KindPositionLiquidated
	KindPriceUpdate
	KindAccountUpdated
)

func (k Kind) String() string {
	switch k {
	case KindOrderPlaced:
		return "order_placed"
	case KindOrderExecuted:
		return "order_executed"
	case KindPositionOpened:
		return "position_opened"
	case KindPositionLiquidated:
		return "position_liquidated"
	case KindPriceUpdate:
		return "price_update"
	case KindAccountUpdated:
		return "account_updated"
	default:
		return "unknown"
	}
}

// OrderPlaced records a newly-accepted order before it reaches the matcher.
type OrderPlaced struct {
	OrderID   uint64
	Symbol    string
	Side      uint8 // 0=Buy, 1=Sell
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	SubmitSeq uint64
	TsMillis  uint64
}

// OrderExecuted records one maker/taker fill produced by the matcher.
type OrderExecuted struct {
	ExecID   uint64
	Symbol   string
	MakerID  uint64
	TakerID  uint64
	Price    decimal.Decimal
	Quantity decimal.Decimal
	TsMillis uint64
}

// PositionOpened records a new or resized leveraged position.
type PositionOpened struct {
	UserID          uint64
	Symbol          string
	Side            uint8
	Size            decimal.Decimal
	EntryPrice      decimal.Decimal
	Leverage        uint32
	LiquidationPrice decimal.Decimal
	TsMillis        uint64
}

// PositionLiquidated records Sentinel forcibly closing a position.
type PositionLiquidated struct {
	UserID       uint64
	Symbol       string
	Size         decimal.Decimal
	MarkPrice    decimal.Decimal
	RealizedLoss decimal.Decimal // signed
	TsMillis     uint64
}

// PriceUpdate records one accepted mark-price tick.
type PriceUpdate struct {
	Symbol      string
	Price       decimal.Decimal
	InternalSeq uint64
	TsMillis    uint64
}

// AccountUpdated records a post-settlement account balance snapshot.
type AccountUpdated struct {
	UserID        uint64
	Collateral    decimal.Decimal
	UnrealizedPnL decimal.Decimal
	TsMillis      uint64
}

// Event is the tagged union spec.md §3 calls SystemEvent. Exactly one of
// the typed fields is populated, selected by Kind.
type Event struct {
	Kind Kind

	OrderPlaced        *OrderPlaced
	OrderExecuted      *OrderExecuted
	PositionOpened     *PositionOpened
	PositionLiquidated *PositionLiquidated
	PriceUpdate        *PriceUpdate
	AccountUpdated     *AccountUpdated
}
