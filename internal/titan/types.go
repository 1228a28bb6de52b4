// Package titan implements the price-time-priority order book and matcher
// described in spec.md §4.1. The book is single-writer: callers must never
// invoke its methods from more than one goroutine concurrently (spec.md
// §5 — "the matcher is STRICTLY SINGLE-THREADED — no locks inside the
// book; it owns its data").
package titan

import "github.com/titanex-labs/titanex/internal/decimal"

// Side is the direction of an order.
type Side int8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// TimeInForce selects whether an unfilled remainder rests on the book.
type TimeInForce int8

const (
	GTC TimeInForce = iota // Good-Til-Cancel: remainder rests.
	IOC                    // Immediate-Or-Cancel: remainder is cancelled, never rests.
)

// RestState is the final disposition of a Submit call, spec.md §4.1.
type RestState int8

const (
	FullyFilled RestState = iota
	RestedFully
	RestedPartial
	Cancelled // IOC/market remainder cancelled instead of resting, after zero or more fills.
)

func (r RestState) String() string {
	switch r {
	case FullyFilled:
		return "filled"
	case RestedFully:
		return "rested_fully"
	case RestedPartial:
		return "rested_partial"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Order is a single resting or incoming order. spec.md §3: order_id unique
// within process lifetime, submit_seq establishes strict time priority.
type Order struct {
	ID        uint64
	Owner     uint64 // user_id of the submitter
	Symbol    string
	Side      Side
	Price     decimal.Decimal
	Qty       decimal.Decimal // remaining quantity; mutated in place by the matcher
	TIF       TimeInForce
	SubmitSeq uint64
	Market    bool // true when Price is the +inf/0 market-order sentinel
}

// Fill is one maker/taker match produced by Submit. Execution price is
// always the maker's resting price (spec.md §3, Execution invariant).
type Fill struct {
	MakerOrderID uint64
	MakerOwner   uint64
	TakerOrderID uint64
	TakerOwner   uint64
	Price        decimal.Decimal
	Qty          decimal.Decimal
}

// ExecutionReport is Submit's return value.
type ExecutionReport struct {
	Fills      []Fill
	State      RestState
	Remaining  decimal.Decimal // quantity left over (rested or cancelled)
}

// PriceLevelView is one row of a Snapshot: aggregate quantity resting at a
// price, best-first within its side.
type PriceLevelView struct {
	Price decimal.Decimal
	Qty   decimal.Decimal
}

// BookView is the read-only snapshot returned by Snapshot (spec.md §4.1).
type BookView struct {
	Symbol string
	Bids   []PriceLevelView
	Asks   []PriceLevelView
}
