package orchestrator

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/titanex-labs/titanex/internal/clock"
	"github.com/titanex-labs/titanex/internal/decimal"
	"github.com/titanex-labs/titanex/internal/feed"
	"github.com/titanex-labs/titanex/internal/oracle"
	"github.com/titanex-labs/titanex/internal/sentinel"
	"github.com/titanex-labs/titanex/internal/telemetry"
	"github.com/titanex-labs/titanex/internal/titan"
)

// scriptedSource emits a fixed slice of ticks then blocks until ctx is
// cancelled, so tests can deterministically control exactly what the
// orchestrator consumes.
type scriptedSource struct {
	ticks []feed.Tick
}

func (s *scriptedSource) Run(ctx context.Context, out chan<- feed.Tick) error {
	for _, tick := range s.ticks {
		select {
		case out <- tick:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func newTestOrchestrator(t *testing.T, source feed.Source) (*Orchestrator, *titan.Engine, *sentinel.Manager) {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "log")
	store, err := oracle.Open(dir)
	if err != nil {
		t.Fatalf("oracle.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	engine := titan.NewEngine()
	market, err := titan.NewMarket("BTC-USD",
		decimal.FromUnits(1),
		decimal.FromUnits(1),
		decimal.Zero,
		decimal.Zero,
	)
	if err != nil {
		t.Fatalf("NewMarket: %v", err)
	}
	if err := engine.RegisterMarket(market); err != nil {
		t.Fatalf("RegisterMarket: %v", err)
	}

	risk := sentinel.NewManager(sentinel.Config{
		MaintenanceMarginRatio: decimal.FromUnits(500000), // 0.005
	})

	logger := zap.NewNop().Sugar()
	rec := telemetry.NewAtomicRecorder()

	orch := New(store, engine, risk, source, clock.Real{}, logger, rec, 200*time.Millisecond)
	return orch, engine, risk
}

func d(n int64) decimal.Decimal { return decimal.FromInt64(n) }

func TestSubmitOrderRestsAndJournals(t *testing.T) {
	orch, engine, _ := newTestOrchestrator(t, &scriptedSource{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- orch.Run(ctx) }()

	res := orch.SubmitOrder(context.Background(), OrderRequest{
		Owner:  1,
		Symbol: "BTC-USD",
		Side:   titan.Buy,
		Price:  d(100),
		Qty:    d(5),
		TIF:    titan.GTC,
	})
	if res.Err != nil {
		t.Fatalf("SubmitOrder: %v", res.Err)
	}
	if res.Report.State != titan.RestedFully {
		t.Errorf("state = %v, want RestedFully", res.Report.State)
	}

	_, bidOK, _, _ := engine.BestBidAsk("BTC-USD")
	if !bidOK {
		t.Errorf("expected a resting bid on the book")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned error after clean shutdown: %v", err)
	}
}

func TestSubmitOrderCrossesAndProducesFills(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t, &scriptedSource{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go orch.Run(ctx)

	_ = orch.SubmitOrder(context.Background(), OrderRequest{
		Owner: 1, Symbol: "BTC-USD", Side: titan.Sell, Price: d(100), Qty: d(5), TIF: titan.GTC,
	})
	res := orch.SubmitOrder(context.Background(), OrderRequest{
		Owner: 2, Symbol: "BTC-USD", Side: titan.Buy, Price: d(100), Qty: d(5), TIF: titan.GTC,
	})
	if res.Err != nil {
		t.Fatalf("SubmitOrder: %v", res.Err)
	}
	if len(res.Report.Fills) != 1 {
		t.Fatalf("fills = %d, want 1", len(res.Report.Fills))
	}
	if res.Report.Fills[0].Price.String() != "100.00000000" {
		t.Errorf("fill price = %s, want maker price 100.00000000", res.Report.Fills[0].Price)
	}
}

func TestTickDrivesLiquidation(t *testing.T) {
	source := &scriptedSource{ticks: []feed.Tick{
		{Symbol: "BTC-USD", Price: d(50), InternalSeq: 1},
	}}
	orch, _, risk := newTestOrchestrator(t, source)

	acc := sentinel.NewAccount(7, d(100))
	acc.Positions["BTC-USD"] = &sentinel.Position{
		Symbol: "BTC-USD", Side: sentinel.Long, Size: d(10),
		EntryPrice: d(100), Leverage: 5,
	}
	if err := risk.AddAccount(acc); err != nil {
		t.Fatalf("AddAccount: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- orch.Run(ctx) }()

	select {
	case res := <-orch.LiquidationsOut:
		if res.UserID != 7 || res.Symbol != "BTC-USD" {
			t.Errorf("liquidation = %+v, want user 7 on BTC-USD", res)
		}
	case <-time.After(1500 * time.Millisecond):
		t.Fatal("expected a liquidation result within the test timeout")
	}

	cancel()
	<-done
}

func TestTickOverflowHaltsWithFatalError(t *testing.T) {
	// A position sized so size*(mark-entry) overflows int64 in accountEquity's
	// unrealized pnl computation, forcing risk.OnTick to return decimal.ErrOverflow.
	hugeSize := decimal.FromUnits(math.MaxInt64 / 2)
	source := &scriptedSource{ticks: []feed.Tick{
		{Symbol: "BTC-USD", Price: hugeSize, InternalSeq: 1},
	}}
	orch, _, risk := newTestOrchestrator(t, source)

	acc := sentinel.NewAccount(9, d(100))
	acc.Positions["BTC-USD"] = &sentinel.Position{
		Symbol: "BTC-USD", Side: sentinel.Long, Size: hugeSize,
		EntryPrice: d(100), Leverage: 5,
	}
	if err := risk.AddAccount(acc); err != nil {
		t.Fatalf("AddAccount: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := orch.Run(ctx)
	if err == nil {
		t.Fatal("expected Run to return a fatal error on overflow, got nil")
	}
	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("err = %v, want a *FatalError", err)
	}
	if fatal.Kind != FatalOverflow {
		t.Errorf("fatal.Kind = %v, want FatalOverflow", fatal.Kind)
	}
}

func TestSubmitOrderRejectedAfterShutdown(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t, &scriptedSource{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- orch.Run(ctx) }()

	cancel()
	<-done

	res := orch.SubmitOrder(context.Background(), OrderRequest{
		Owner: 1, Symbol: "BTC-USD", Side: titan.Buy, Price: d(100), Qty: d(1), TIF: titan.GTC,
	})
	if res.Err != ErrShuttingDown {
		t.Errorf("err = %v, want ErrShuttingDown", res.Err)
	}
}
