package telemetry

import "testing"

func TestAtomicRecorderCounters(t *testing.T) {
	r := NewAtomicRecorder()
	r.OrdersProcessed()
	r.OrdersProcessed()
	r.ExecutionsTotal()
	r.EventsWritten()
	r.LiquidationsTotal()
	r.PriceFeedUpdatesTotal()

	snap := r.Snapshot()
	if snap.OrdersProcessed != 2 {
		t.Errorf("orders_processed = %d, want 2", snap.OrdersProcessed)
	}
	if snap.ExecutionsTotal != 1 {
		t.Errorf("executions_total = %d, want 1", snap.ExecutionsTotal)
	}
	if snap.EventsWritten != 1 {
		t.Errorf("events_written = %d, want 1", snap.EventsWritten)
	}
	if snap.LiquidationsTotal != 1 {
		t.Errorf("liquidations_total = %d, want 1", snap.LiquidationsTotal)
	}
	if snap.PriceFeedUpdatesTotal != 1 {
		t.Errorf("price_feed_updates_total = %d, want 1", snap.PriceFeedUpdatesTotal)
	}
}

func TestAtomicRecorderGauges(t *testing.T) {
	r := NewAtomicRecorder()
	r.ExecutionPrice(101.5)
	r.Spread(0.25)
	r.MarginRatio(0.012)
	r.AccountsTotal(10)
	r.AccountsAtRisk(3)

	snap := r.Snapshot()
	if snap.ExecutionPrice != 101.5 {
		t.Errorf("execution_price = %v, want 101.5", snap.ExecutionPrice)
	}
	if snap.Spread != 0.25 {
		t.Errorf("spread = %v, want 0.25", snap.Spread)
	}
	if snap.MarginRatio != 0.012 {
		t.Errorf("margin_ratio = %v, want 0.012", snap.MarginRatio)
	}
	if snap.AccountsTotal != 10 {
		t.Errorf("accounts_total = %d, want 10", snap.AccountsTotal)
	}
	if snap.AccountsAtRisk != 3 {
		t.Errorf("accounts_at_risk = %d, want 3", snap.AccountsAtRisk)
	}
}

func TestNewLoggerBuildsWithoutError(t *testing.T) {
	logger, err := NewLogger()
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer logger.Sync()
	logger.Infow("telemetry logger smoke test", "component", "telemetry")
}
