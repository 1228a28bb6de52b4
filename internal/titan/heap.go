package titan

import (
	"container/heap"

	"github.com/titanex-labs/titanex/internal/decimal"
)

// priceHeap is a container/heap-compatible []decimal.Decimal, generalized
// from the teacher's int64-keyed MaxPriceHeap/MinPriceHeap
// (pkg/app/core/orderbook/heap.go) to the Decimal price type. less decides
// max-heap (bids, best = highest price) vs. min-heap (asks, best = lowest
// price) behavior.
type priceHeap struct {
	prices []decimal.Decimal
	less   func(a, b decimal.Decimal) bool
}

func newBidHeap() *priceHeap {
	return &priceHeap{less: func(a, b decimal.Decimal) bool { return a.GreaterThan(b) }}
}

func newAskHeap() *priceHeap {
	return &priceHeap{less: func(a, b decimal.Decimal) bool { return a.LessThan(b) }}
}

func (h priceHeap) Len() int            { return len(h.prices) }
func (h priceHeap) Less(i, j int) bool  { return h.less(h.prices[i], h.prices[j]) }
func (h priceHeap) Swap(i, j int)       { h.prices[i], h.prices[j] = h.prices[j], h.prices[i] }
func (h *priceHeap) Push(x interface{}) { h.prices = append(h.prices, x.(decimal.Decimal)) }
func (h *priceHeap) Pop() interface{} {
	old := h.prices
	n := len(old)
	x := old[n-1]
	h.prices = old[:n-1]
	return x
}

// Peek returns the best price without removing it.
func (h *priceHeap) Peek() (decimal.Decimal, bool) {
	if len(h.prices) == 0 {
		return decimal.Zero, false
	}
	return h.prices[0], true
}

// remove drops price from the heap, wherever it sits (O(n); level removal
// is rare relative to level mutation, matching the teacher's own comment
// in removeFromBidHeap/removeFromAskHeap).
func (h *priceHeap) remove(price decimal.Decimal) {
	for i, p := range h.prices {
		if p.Equal(price) {
			heap.Remove(h, i)
			return
		}
	}
}
