package titan

import "testing"

// BenchmarkBookSubmitResting measures the matcher hot path placing orders
// that rest without crossing, against a book pre-filled with 100 price
// levels a side — the realistic-depth setup the teacher's
// BenchmarkOrderbookPlace uses.
func BenchmarkBookSubmitResting(b *testing.B) {
	book := NewBook("BTC-USD")
	for i := int64(0); i < 100; i++ {
		book.Submit(newOrder(uint64(i+1), Buy, 1000-i, 10, uint64(i+1)))
		book.Submit(newOrder(uint64(i+101), Sell, 1100+i, 10, uint64(i+101)))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		side := Buy
		if i%2 == 0 {
			side = Sell
		}
		// price 900/1200 never crosses the pre-filled book, so every
		// submission takes the rest-without-matching path.
		price := int64(900)
		if side == Sell {
			price = 1200
		}
		book.Submit(newOrder(uint64(1000+i), side, price, 1, uint64(1000+i)))
	}
}

// BenchmarkBookSubmitCrossing measures the matcher hot path when every
// submission crosses and fills against the opposite side's best level.
func BenchmarkBookSubmitCrossing(b *testing.B) {
	book := NewBook("BTC-USD")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		maker := newOrder(uint64(2*i+1), Sell, 1050, 1, uint64(2*i+1))
		book.Submit(maker)
		taker := newOrder(uint64(2*i+2), Buy, 1050, 1, uint64(2*i+2))
		book.Submit(taker)
	}
}
