package feed

import (
	"context"
	"testing"
	"time"

	"github.com/titanex-labs/titanex/internal/decimal"
)

func TestSimulatorIsReproducibleWithFixedSeed(t *testing.T) {
	cfg := SimulatorConfig{
		Symbols:      []string{"BTC-USD"},
		InitialPrice: decimal.FromInt64(100),
		Volatility:   0.01,
		Seed:         42,
		Interval:     time.Millisecond,
	}

	collect := func() []decimal.Decimal {
		sim := NewSimulator(cfg)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		out := make(chan Tick, 10)
		done := make(chan error, 1)
		go func() { done <- sim.Run(ctx, out) }()

		var prices []decimal.Decimal
		for i := 0; i < 5; i++ {
			tick := <-out
			prices = append(prices, tick.Price)
		}
		cancel()
		<-done
		return prices
	}

	a := collect()
	b := collect()
	if len(a) != len(b) {
		t.Fatalf("different lengths: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			t.Errorf("tick %d diverged: %s vs %s", i, a[i], b[i])
		}
	}
}

func TestSimulatorRespectsContextCancellation(t *testing.T) {
	cfg := SimulatorConfig{
		Symbols:      []string{"BTC-USD"},
		InitialPrice: decimal.FromInt64(100),
		Volatility:   0.01,
		Seed:         1,
		Interval:     time.Millisecond,
	}
	sim := NewSimulator(cfg)
	ctx, cancel := context.WithCancel(context.Background())

	out := make(chan Tick, 1)
	done := make(chan error, 1)
	go func() { done <- sim.Run(ctx, out) }()

	<-out
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Errorf("expected ctx.Err() on cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("simulator did not stop after cancellation")
	}
}

func TestSimulatorEmitsEachSymbolWithinOneInterval(t *testing.T) {
	cfg := SimulatorConfig{
		Symbols:      []string{"BTC-USD", "ETH-USD"},
		InitialPrice: decimal.FromInt64(100),
		Volatility:   0.05,
		Seed:         7,
		Interval:     time.Millisecond,
	}
	sim := NewSimulator(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan Tick, 10)
	go sim.Run(ctx, out)

	first := <-out
	second := <-out
	if first.Symbol == second.Symbol {
		t.Fatalf("expected ticks for distinct symbols within one interval, got %s twice", first.Symbol)
	}
}
