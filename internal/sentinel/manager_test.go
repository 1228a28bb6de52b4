package sentinel

import (
	"testing"

	"github.com/titanex-labs/titanex/internal/decimal"
)

func maintRatio() decimal.Decimal {
	// 0.005 = 500000 scaled units at Scale=8.
	return decimal.FromUnits(500000)
}

func TestAddAccountRejectsDuplicate(t *testing.T) {
	m := NewManager(Config{MaintenanceMarginRatio: maintRatio()})
	acc := NewAccount(1, decimal.FromInt64(1000))
	if err := m.AddAccount(acc); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := m.AddAccount(acc); err != ErrAccountExists {
		t.Errorf("err = %v, want ErrAccountExists", err)
	}
}

func TestOnTickUnknownSymbolIsNoop(t *testing.T) {
	m := NewManager(Config{MaintenanceMarginRatio: maintRatio()})
	results, err := m.OnTick(PriceTick{Symbol: "BTC-USD", Price: decimal.FromInt64(100)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results for a symbol with no positions, got %+v", results)
	}
}

func TestOnTickLiquidatesBreachingAccount(t *testing.T) {
	m := NewManager(Config{MaintenanceMarginRatio: maintRatio()})

	acc := NewAccount(1, decimal.FromInt64(100))
	acc.Positions["BTC-USD"] = &Position{
		Symbol:     "BTC-USD",
		Side:       Long,
		Size:       decimal.FromInt64(1),
		EntryPrice: decimal.FromInt64(1000),
		Leverage:   10,
	}
	if err := m.AddAccount(acc); err != nil {
		t.Fatalf("add: %v", err)
	}

	// mark crashes far below entry: unrealized_pnl = 1*(900-1000) = -100,
	// equity = 100 + (-100) = 0, notional = 1*900 = 900, threshold =
	// 0.005*900 = 4.5 -> 0 <= 4.5, account is at risk.
	results, err := m.OnTick(PriceTick{Symbol: "BTC-USD", Price: decimal.FromInt64(900)})
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 liquidation, got %d: %+v", len(results), results)
	}
	res := results[0]
	if res.UserID != 1 || res.Symbol != "BTC-USD" {
		t.Errorf("liquidation result = %+v", res)
	}
	if !res.RealizedLoss.Equal(decimal.FromInt64(-100)) {
		t.Errorf("realized loss = %s, want -100.00000000", res.RealizedLoss)
	}
	if !res.Collateral.Equal(decimal.Zero) {
		t.Errorf("collateral after liquidation = %s, want 0", res.Collateral)
	}

	snap := m.Snapshot()
	if len(snap) != 1 || len(snap[0].Positions) != 0 {
		t.Errorf("expected the position to be closed, snapshot = %+v", snap)
	}
}

func TestOnTickLeavesSafeAccountUntouched(t *testing.T) {
	m := NewManager(Config{MaintenanceMarginRatio: maintRatio()})

	acc := NewAccount(1, decimal.FromInt64(1000))
	acc.Positions["BTC-USD"] = &Position{
		Symbol:     "BTC-USD",
		Side:       Long,
		Size:       decimal.FromInt64(1),
		EntryPrice: decimal.FromInt64(1000),
		Leverage:   5,
	}
	if err := m.AddAccount(acc); err != nil {
		t.Fatalf("add: %v", err)
	}

	results, err := m.OnTick(PriceTick{Symbol: "BTC-USD", Price: decimal.FromInt64(1010)})
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no liquidations for a healthy account, got %+v", results)
	}

	snap := m.Snapshot()
	if len(snap) != 1 || len(snap[0].Positions) != 1 {
		t.Errorf("expected the position to survive, snapshot = %+v", snap)
	}
}

func TestRemoveAccountUnknownErrors(t *testing.T) {
	m := NewManager(Config{MaintenanceMarginRatio: maintRatio()})
	if err := m.RemoveAccount(999); err != ErrUnknownAccount {
		t.Errorf("err = %v, want ErrUnknownAccount", err)
	}
}

func TestAddAccountComputesLiquidationPrice(t *testing.T) {
	m := NewManager(Config{MaintenanceMarginRatio: maintRatio()})

	acc := NewAccount(3, decimal.FromInt64(100))
	acc.Positions["BTC-USD"] = &Position{
		Symbol:     "BTC-USD",
		Side:       Long,
		Size:       decimal.FromInt64(1),
		EntryPrice: decimal.FromInt64(1000),
		Leverage:   10,
	}
	if err := m.AddAccount(acc); err != nil {
		t.Fatalf("add: %v", err)
	}

	pos := acc.Positions["BTC-USD"]
	if !pos.LiquidationPrice.Equal(decimal.FromInt64(900)) {
		t.Errorf("liquidation price = %s, want 900.00000000 (entry 1000, 10x long)", pos.LiquidationPrice)
	}
}

func TestOnTickCachesMarginRatioOnFullEvaluation(t *testing.T) {
	m := NewManager(Config{MaintenanceMarginRatio: maintRatio()})

	acc := NewAccount(4, decimal.FromInt64(100))
	acc.Positions["BTC-USD"] = &Position{
		Symbol:     "BTC-USD",
		Side:       Long,
		Size:       decimal.FromInt64(1),
		EntryPrice: decimal.FromInt64(1000),
		Leverage:   10,
	}
	if err := m.AddAccount(acc); err != nil {
		t.Fatalf("add: %v", err)
	}

	// The full equity/notional computation runs on every tick and caches
	// margin_ratio; at mark 900 it caches 0/900 = 0 just before the
	// position is liquidated, and Snapshot reads that cached value.
	if _, err := m.OnTick(PriceTick{Symbol: "BTC-USD", Price: decimal.FromInt64(900)}); err != nil {
		t.Fatalf("tick: %v", err)
	}

	snap := m.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 account, got %d", len(snap))
	}
	if snap[0].MarginRatio != 0 {
		t.Errorf("margin_ratio = %v, want 0 after full liquidation", snap[0].MarginRatio)
	}
}

func TestOnTickLiquidatesInsideMaintenanceBandBeforeBankruptcy(t *testing.T) {
	m := NewManager(Config{MaintenanceMarginRatio: maintRatio()})

	acc := NewAccount(5, decimal.FromInt64(100))
	acc.Positions["BTC-USD"] = &Position{
		Symbol:     "BTC-USD",
		Side:       Long,
		Size:       decimal.FromInt64(1),
		EntryPrice: decimal.FromInt64(1000),
		Leverage:   10,
	}
	if err := m.AddAccount(acc); err != nil {
		t.Fatalf("add: %v", err)
	}

	// mark=902 sits strictly above the bankruptcy/liquidation_price (900)
	// but still breaches maintenance margin: equity = 100 + 1*(902-1000) =
	// 2, notional = 902, threshold = 0.005*902 = 4.51, 2 <= 4.51 -> at risk.
	// A pre-filter gated on liquidation_price alone would wrongly skip this.
	results, err := m.OnTick(PriceTick{Symbol: "BTC-USD", Price: decimal.FromInt64(902)})
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 liquidation in the maintenance band, got %d: %+v", len(results), results)
	}
	if results[0].UserID != 5 || results[0].Symbol != "BTC-USD" {
		t.Errorf("liquidation result = %+v", results[0])
	}
}

func TestShortPositionPnLSign(t *testing.T) {
	m := NewManager(Config{MaintenanceMarginRatio: maintRatio()})

	acc := NewAccount(2, decimal.FromInt64(100))
	acc.Positions["BTC-USD"] = &Position{
		Symbol:     "BTC-USD",
		Side:       Short,
		Size:       decimal.FromInt64(1),
		EntryPrice: decimal.FromInt64(1000),
		Leverage:   10,
	}
	if err := m.AddAccount(acc); err != nil {
		t.Fatalf("add: %v", err)
	}

	// Short profits as price falls: unrealized_pnl = 1*(1000-900) = 100,
	// well above maintenance -> no liquidation.
	results, err := m.OnTick(PriceTick{Symbol: "BTC-USD", Price: decimal.FromInt64(900)})
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("short position should have gained, not been liquidated: %+v", results)
	}
}
