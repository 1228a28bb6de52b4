package titan

import (
	"container/heap"
	"container/list"
	"errors"
	"math"

	"github.com/titanex-labs/titanex/internal/decimal"
)

// MarketBuyPrice and MarketSellPrice are the price sentinels spec.md §4.1
// assigns to market orders: "a market order is modelled as a limit with
// price = +∞ (Buy) or 0 (Sell) and MUST NOT rest."
var (
	MarketBuyPrice  = decimal.FromUnits(math.MaxInt64)
	MarketSellPrice = decimal.Zero
)

var (
	ErrZeroQuantity  = errors.New("titan: order quantity must be positive")
	ErrNonPositivePrice = errors.New("titan: order price must be positive")
)

// level is one FIFO price level. Orders are stored in a doubly linked list
// so the FIFO head removes in O(1) and a resting order can be cancelled in
// O(1) given its list.Element handle (spec.md §9's "Book representation"
// design note).
type level struct {
	price    decimal.Decimal
	orders   *list.List // *Order
	totalQty decimal.Decimal
}

func newLevel(price decimal.Decimal) *level {
	return &level{price: price, orders: list.New()}
}

type handle struct {
	side Side
	elem *list.Element
}

// Book is the single-writer, per-symbol order book and matcher.
type Book struct {
	symbol string

	bidHeap *priceHeap
	askHeap *priceHeap
	bids    map[decimal.Decimal]*level
	asks    map[decimal.Decimal]*level

	index map[uint64]handle // order_id -> handle for O(1) cancel

	nextSubmitSeq uint64
	lastPrice     decimal.Decimal

	preventSelfTrade bool // spec.md §9 Open Question (a); default off
}

// NewBook creates an empty book for symbol.
func NewBook(symbol string) *Book {
	b := &Book{
		symbol:  symbol,
		bidHeap: newBidHeap(),
		askHeap: newAskHeap(),
		bids:    make(map[decimal.Decimal]*level),
		asks:    make(map[decimal.Decimal]*level),
		index:   make(map[uint64]handle),
	}
	heap.Init(b.bidHeap)
	heap.Init(b.askHeap)
	return b
}

// SetPreventSelfTrade toggles self-trade prevention (default: permitted,
// per spec.md §4.1 edge cases and §9 Open Question (a)).
func (b *Book) SetPreventSelfTrade(on bool) { b.preventSelfTrade = on }

func (b *Book) levels(side Side) map[decimal.Decimal]*level {
	if side == Buy {
		return b.bids
	}
	return b.asks
}

func (b *Book) priceHeapFor(side Side) *priceHeap {
	if side == Buy {
		return b.bidHeap
	}
	return b.askHeap
}

func (b *Book) bestPrice(side Side) (decimal.Decimal, bool) {
	return b.priceHeapFor(side).Peek()
}

// BestBid returns the best (highest) resting bid price, if any.
func (b *Book) BestBid() (decimal.Decimal, bool) { return b.bestPrice(Buy) }

// BestAsk returns the best (lowest) resting ask price, if any.
func (b *Book) BestAsk() (decimal.Decimal, bool) { return b.bestPrice(Sell) }

// NextSubmitSeq allocates the next strictly increasing submit_seq for this
// book (spec.md §3: "submit_seq establishes time priority... strictly
// increasing per book").
func (b *Book) NextSubmitSeq() uint64 {
	b.nextSubmitSeq++
	return b.nextSubmitSeq
}

// marketable reports whether the best opposite level crosses order's limit.
func marketable(side Side, orderPrice, oppositeBest decimal.Decimal) bool {
	if side == Buy {
		return oppositeBest.Cmp(orderPrice) <= 0
	}
	return oppositeBest.Cmp(orderPrice) >= 0
}

// Submit attempts to match order against the opposite side of the book,
// per the algorithm in spec.md §4.1. The caller owns order's lifetime;
// Submit mutates order.Qty in place as it is consumed.
func (b *Book) Submit(order *Order) (ExecutionReport, error) {
	if order.Qty.Sign() <= 0 {
		return ExecutionReport{}, ErrZeroQuantity
	}
	if !order.Market && order.Price.Sign() <= 0 {
		return ExecutionReport{}, ErrNonPositivePrice
	}

	opposite := order.Side.Opposite()
	var fills []Fill

	for order.Qty.Sign() > 0 {
		bestPrice, ok := b.bestPrice(opposite)
		if !ok || !marketable(order.Side, order.Price, bestPrice) {
			break
		}
		lvl := b.levels(opposite)[bestPrice]
		if lvl == nil || lvl.orders.Len() == 0 {
			b.removeEmptyLevel(opposite, bestPrice)
			continue
		}

		front := lvl.orders.Front()
		maker := front.Value.(*Order)

		if b.preventSelfTrade && maker.Owner == order.Owner {
			// Self-trade prevention: cancel the resting maker and retry
			// the same price level instead of matching against it.
			b.removeOrderAt(opposite, lvl, front)
			continue
		}

		q := order.Qty
		if maker.Qty.LessThan(q) {
			q = maker.Qty
		}

		order.Qty, _ = order.Qty.Sub(q)
		maker.Qty, _ = maker.Qty.Sub(q)
		lvl.totalQty, _ = lvl.totalQty.Sub(q)
		b.lastPrice = lvl.price

		fills = append(fills, Fill{
			MakerOrderID: maker.ID,
			MakerOwner:   maker.Owner,
			TakerOrderID: order.ID,
			TakerOwner:   order.Owner,
			Price:        lvl.price,
			Qty:          q,
		})

		if maker.Qty.IsZero() {
			b.removeOrderAt(opposite, lvl, front)
		}
	}

	report := ExecutionReport{Fills: fills}

	if order.Qty.Sign() == 0 {
		report.State = FullyFilled
		report.Remaining = decimal.Zero
		return report, nil
	}

	if order.Market || order.TIF == IOC {
		report.State = Cancelled
		report.Remaining = order.Qty
		return report, nil
	}

	b.rest(order)
	report.Remaining = order.Qty
	if len(fills) == 0 {
		report.State = RestedFully
	} else {
		report.State = RestedPartial
	}
	return report, nil
}

func (b *Book) rest(order *Order) {
	levels := b.levels(order.Side)
	lvl, ok := levels[order.Price]
	if !ok {
		lvl = newLevel(order.Price)
		levels[order.Price] = lvl
		heap.Push(b.priceHeapFor(order.Side), order.Price)
	}
	elem := lvl.orders.PushBack(order)
	lvl.totalQty, _ = lvl.totalQty.Add(order.Qty)
	b.index[order.ID] = handle{side: order.Side, elem: elem}
}

func (b *Book) removeOrderAt(side Side, lvl *level, elem *list.Element) {
	maker := elem.Value.(*Order)
	lvl.orders.Remove(elem)
	lvl.totalQty, _ = lvl.totalQty.Sub(maker.Qty)
	delete(b.index, maker.ID)
	if lvl.orders.Len() == 0 {
		b.removeEmptyLevel(side, lvl.price)
	}
}

func (b *Book) removeEmptyLevel(side Side, price decimal.Decimal) {
	delete(b.levels(side), price)
	b.priceHeapFor(side).remove(price)
}

// Cancel removes a resting order by id. Returns false if unknown
// (spec.md §4.1).
func (b *Book) Cancel(orderID uint64) bool {
	h, ok := b.index[orderID]
	if !ok {
		return false
	}
	lvl := b.levels(h.side)[h.elem.Value.(*Order).Price]
	if lvl == nil {
		delete(b.index, orderID)
		return false
	}
	b.removeOrderAt(h.side, lvl, h.elem)
	return true
}

// Snapshot returns an ordered, best-first view of both sides, per
// spec.md §4.1.
func (b *Book) Snapshot() BookView {
	return BookView{
		Symbol: b.symbol,
		Bids:   snapshotSide(b.bids, b.bidHeap),
		Asks:   snapshotSide(b.asks, b.askHeap),
	}
}

func snapshotSide(levels map[decimal.Decimal]*level, h *priceHeap) []PriceLevelView {
	// Copy the heap's price slice and sort by the same ordering it
	// maintains, without mutating the live heap.
	prices := make([]decimal.Decimal, len(h.prices))
	copy(prices, h.prices)
	sortByHeapOrder(prices, h.less)

	out := make([]PriceLevelView, 0, len(prices))
	for _, p := range prices {
		lvl := levels[p]
		if lvl == nil || lvl.orders.Len() == 0 {
			continue
		}
		out = append(out, PriceLevelView{Price: p, Qty: lvl.totalQty})
	}
	return out
}

func sortByHeapOrder(prices []decimal.Decimal, less func(a, b decimal.Decimal) bool) {
	// Simple insertion sort: book depth is small relative to match
	// frequency, and Snapshot is a diagnostic/read path, not the hot
	// matching loop.
	for i := 1; i < len(prices); i++ {
		for j := i; j > 0 && less(prices[j], prices[j-1]); j-- {
			prices[j], prices[j-1] = prices[j-1], prices[j]
		}
	}
}
