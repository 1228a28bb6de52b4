package titan

import (
	"errors"
	"fmt"
)

// ErrUnknownSymbol is a synchronous validation rejection (spec.md §7,
// Validation errors never produce events).
var ErrUnknownSymbol = errors.New("titan: unknown symbol")

// Engine owns every symbol's Book and Market. It is the single-writer
// matcher (spec.md §2 item 2, §5): callers must drive Submit/Cancel from
// one goroutine only, typically fed by the orchestrator's orders_in
// channel.
type Engine struct {
	books   map[string]*Book
	markets map[string]*Market
}

// NewEngine creates an empty matching engine.
func NewEngine() *Engine {
	return &Engine{
		books:   make(map[string]*Book),
		markets: make(map[string]*Market),
	}
}

// RegisterMarket adds (or replaces) a symbol's trading parameters and
// creates its book if this is the first registration.
func (e *Engine) RegisterMarket(m *Market) error {
	if err := m.Validate(); err != nil {
		return err
	}
	e.markets[m.Symbol] = m
	book, ok := e.books[m.Symbol]
	if !ok {
		book = NewBook(m.Symbol)
		e.books[m.Symbol] = book
	}
	book.SetPreventSelfTrade(m.PreventSelfTrade)
	return nil
}

// Book returns the book for symbol, or nil if unregistered.
func (e *Engine) Book(symbol string) *Book { return e.books[symbol] }

// NextSubmitSeq allocates the next submit_seq for symbol's book. Returns
// ErrUnknownSymbol if the symbol has no registered market.
func (e *Engine) NextSubmitSeq(symbol string) (uint64, error) {
	b, ok := e.books[symbol]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return b.NextSubmitSeq(), nil
}

// Submit routes order to its symbol's book after market-level validation.
func (e *Engine) Submit(order *Order) (ExecutionReport, error) {
	book, ok := e.books[order.Symbol]
	if !ok {
		return ExecutionReport{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, order.Symbol)
	}
	market := e.markets[order.Symbol]
	if market != nil {
		if err := market.ValidateOrder(order); err != nil {
			return ExecutionReport{}, err
		}
	}
	return book.Submit(order)
}

// Cancel removes a resting order from symbol's book.
func (e *Engine) Cancel(symbol string, orderID uint64) (bool, error) {
	book, ok := e.books[symbol]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return book.Cancel(orderID), nil
}

// BestBidAsk returns the best bid/ask for symbol, each with an ok flag.
func (e *Engine) BestBidAsk(symbol string) (bid PriceLevelView, bidOK bool, ask PriceLevelView, askOK bool) {
	book, ok := e.books[symbol]
	if !ok {
		return PriceLevelView{}, false, PriceLevelView{}, false
	}
	if p, ok := book.BestBid(); ok {
		bid, bidOK = PriceLevelView{Price: p}, true
	}
	if p, ok := book.BestAsk(); ok {
		ask, askOK = PriceLevelView{Price: p}, true
	}
	return
}

// Snapshot returns symbol's book view, or a zero-value view if unknown.
func (e *Engine) Snapshot(symbol string) BookView {
	book, ok := e.books[symbol]
	if !ok {
		return BookView{Symbol: symbol}
	}
	return book.Snapshot()
}

// MarkPrice returns the book's last traded price for symbol, or false if
// the symbol is unknown or has not traded yet.
func (e *Engine) MarkPrice(symbol string) (PriceLevelView, bool) {
	book, ok := e.books[symbol]
	if !ok || book.lastPrice.IsZero() {
		return PriceLevelView{}, false
	}
	return PriceLevelView{Price: book.lastPrice}, true
}
