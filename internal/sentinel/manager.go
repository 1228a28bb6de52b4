package sentinel

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/titanex-labs/titanex/internal/decimal"
)

// ErrUnknownAccount is returned by operations addressed to an account that
// was never added or has since been removed.
var ErrUnknownAccount = errors.New("sentinel: unknown account")

// ErrAccountExists is returned by AddAccount for a user_id already tracked.
var ErrAccountExists = errors.New("sentinel: account already exists")

// Config carries Sentinel's process-wide, load-once-at-startup parameters
// (spec.md §5: "no global mutable state beyond process-wide configuration
// loaded once at startup").
type Config struct {
	// MaintenanceMarginRatio is the threshold spec.md §4.4 compares every
	// account's margin_ratio against (e.g. 0.005 for 0.5%).
	MaintenanceMarginRatio decimal.Decimal

	// SuspendOnDeficit, when true, marks an account suspended as soon as a
	// liquidation close leaves its collateral negative. The mark is internal
	// to Manager: no Manager operation reads it, so a suspended account is
	// still evaluated on later ticks. spec.md §9 Open Question (b); default
	// false, matching the teacher's Liquidate (which reports a deficit but
	// never freezes the account).
	SuspendOnDeficit bool
}

type accountState struct {
	mu         sync.Mutex
	acc        *Account
	markPrices map[string]decimal.Decimal // per-symbol mark price last applied to this account
	suspended  bool
}

// symbolShard serializes on_tick calls for one symbol, per spec.md §4.4's
// "for a single symbol, calls are serialized" while leaving different
// symbols free to proceed in parallel (spec.md §5).
type symbolShard struct {
	mu    sync.Mutex
	price decimal.Decimal
	// members is the set of user_ids currently holding a position on this
	// symbol, maintained as positions open and close.
	members map[uint64]struct{}
}

// Manager is Sentinel: the sole owner of account/position state (spec.md
// §3's Ownership clause). Generalized from the teacher's
// pkg/app/core/account/manager.go (AccountManager.CheckLiquidation/Liquidate)
// from a single global RWMutex to per-symbol sharded locking plus a
// per-account mutex, so ticks on different symbols never block each other
// even when one account holds positions across several of them.
type Manager struct {
	cfg Config

	registryMu sync.RWMutex
	accounts   map[uint64]*accountState

	shardsMu sync.Mutex
	shards   map[string]*symbolShard
}

// NewManager creates an empty risk engine with the given configuration.
func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:      cfg,
		accounts: make(map[uint64]*accountState),
		shards:   make(map[string]*symbolShard),
	}
}

func (m *Manager) shardFor(symbol string) *symbolShard {
	m.shardsMu.Lock()
	defer m.shardsMu.Unlock()
	s, ok := m.shards[symbol]
	if !ok {
		s = &symbolShard{members: make(map[uint64]struct{})}
		m.shards[symbol] = s
	}
	return s
}

// AddAccount registers a new account. Any positions already set on acc are
// indexed into their symbols' shards.
func (m *Manager) AddAccount(acc *Account) error {
	m.registryMu.Lock()
	defer m.registryMu.Unlock()

	if _, exists := m.accounts[acc.UserID]; exists {
		return ErrAccountExists
	}
	if acc.Positions == nil {
		acc.Positions = make(map[string]*Position)
	}
	for _, pos := range acc.Positions {
		if pos.LiquidationPrice.IsZero() {
			lp, err := liquidationPrice(pos.Side, pos.EntryPrice, pos.Leverage)
			if err != nil {
				return fmt.Errorf("sentinel: liquidation price for %s: %w", pos.Symbol, err)
			}
			pos.LiquidationPrice = lp
		}
	}
	as := &accountState{acc: acc, markPrices: make(map[string]decimal.Decimal)}
	m.accounts[acc.UserID] = as

	for symbol := range acc.Positions {
		shard := m.shardFor(symbol)
		shard.mu.Lock()
		shard.members[acc.UserID] = struct{}{}
		shard.mu.Unlock()
	}
	return nil
}

// RemoveAccount drops an account and its membership from every symbol
// shard it participated in.
func (m *Manager) RemoveAccount(userID uint64) error {
	m.registryMu.Lock()
	as, exists := m.accounts[userID]
	if !exists {
		m.registryMu.Unlock()
		return ErrUnknownAccount
	}
	delete(m.accounts, userID)
	m.registryMu.Unlock()

	as.mu.Lock()
	symbols := make([]string, 0, len(as.acc.Positions))
	for symbol := range as.acc.Positions {
		symbols = append(symbols, symbol)
	}
	as.mu.Unlock()

	for _, symbol := range symbols {
		shard := m.shardFor(symbol)
		shard.mu.Lock()
		delete(shard.members, userID)
		shard.mu.Unlock()
	}
	return nil
}

// OnTick updates the mark price for tick.Symbol and evaluates margin for
// every account holding a position on it, per spec.md §4.4. A tick for a
// symbol with no known positions is a no-op (spec.md's "unknown symbol"
// failure semantics generalize naturally: nothing to evaluate).
func (m *Manager) OnTick(tick PriceTick) ([]LiquidationResult, error) {
	shard := m.shardFor(tick.Symbol)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	shard.price = tick.Price
	if len(shard.members) == 0 {
		return nil, nil
	}

	userIDs := make([]uint64, 0, len(shard.members))
	for id := range shard.members {
		userIDs = append(userIDs, id)
	}

	var results []LiquidationResult
	for _, id := range userIDs {
		m.registryMu.RLock()
		as, ok := m.accounts[id]
		m.registryMu.RUnlock()
		if !ok {
			continue
		}

		as.mu.Lock()
		closed, err := m.evaluateLocked(as, tick.Symbol, tick.Price)
		as.mu.Unlock()
		if err != nil {
			return nil, fmt.Errorf("sentinel: margin evaluation for account %d: %w", id, err)
		}
		results = append(results, closed...)
	}
	return results, nil
}

// evaluateLocked recomputes margin for as.acc and closes positions,
// largest-loss-first starting with tick.Symbol's position, until the
// account is safe or has no positions left. Caller holds as.mu and the
// mu of tickSymbol's shard.
func (m *Manager) evaluateLocked(as *accountState, tickSymbol string, markPrice decimal.Decimal) ([]LiquidationResult, error) {
	as.markPrices[tickSymbol] = markPrice
	acc := as.acc

	var results []LiquidationResult
	for {
		if len(acc.Positions) == 0 {
			break
		}

		equity, notional, err := m.accountEquity(as)
		if err != nil {
			return nil, err
		}

		atRisk, err := m.isAtRisk(equity, notional)
		if err != nil {
			return nil, err
		}
		if !atRisk {
			break
		}

		target, err := m.pickClosureTarget(as, tickSymbol)
		if err != nil {
			return nil, err
		}
		if target == "" {
			// No position can be evaluated (no mark price known for any of
			// them); nothing more this engine can safely do.
			break
		}

		res, err := m.closePosition(as, target)
		if err != nil {
			return nil, err
		}
		// The caller already holds tickSymbol's shard lock; any other
		// symbol's shard is locked here.
		shard := m.shardFor(target)
		if target == tickSymbol {
			delete(shard.members, as.acc.UserID)
		} else {
			shard.mu.Lock()
			delete(shard.members, as.acc.UserID)
			shard.mu.Unlock()
		}
		results = append(results, res)
	}
	return results, nil
}

// accountEquity returns (collateral + Σ unrealized_pnl, Σ size·mark) across
// every position, using each symbol's last-known mark price (the tick
// price if just updated, otherwise the most recent one this account saw,
// falling back to entry_price per the teacher's CheckLiquidation).
func (m *Manager) accountEquity(as *accountState) (decimal.Decimal, decimal.Decimal, error) {
	equity := as.acc.Collateral
	notional := decimal.Zero

	for symbol, pos := range as.acc.Positions {
		mark, ok := as.markPrices[symbol]
		if !ok {
			mark = pos.EntryPrice
		}

		pnl, err := pos.unrealizedPnL(mark)
		if err != nil {
			return decimal.Zero, decimal.Zero, fmt.Errorf("unrealized pnl overflow: %w", err)
		}
		pos.UnrealizedPnL = pnl

		equity, err = equity.Add(pnl)
		if err != nil {
			return decimal.Zero, decimal.Zero, fmt.Errorf("equity overflow: %w", err)
		}

		posNotional, err := pos.notional(mark)
		if err != nil {
			return decimal.Zero, decimal.Zero, fmt.Errorf("notional overflow: %w", err)
		}
		notional, err = notional.Add(posNotional)
		if err != nil {
			return decimal.Zero, decimal.Zero, fmt.Errorf("notional overflow: %w", err)
		}
	}

	as.acc.UnrealizedPnL, _ = equity.Sub(as.acc.Collateral)
	if notional.IsPos() {
		as.acc.MarginRatio = equity.Float64() / notional.Float64()
	} else {
		as.acc.MarginRatio = 0
	}
	return equity, notional, nil
}

// isAtRisk reports margin_ratio <= maintenance_margin_ratio without ever
// dividing: equity/notional <= ratio  iff  equity <= ratio*notional (both
// sides scaled consistently since notional >= 0). A zero-notional account
// is never at risk.
func (m *Manager) isAtRisk(equity, notional decimal.Decimal) (bool, error) {
	if !notional.IsPos() {
		return false, nil
	}
	threshold, err := m.cfg.MaintenanceMarginRatio.Mul(notional)
	if err != nil {
		return false, fmt.Errorf("maintenance threshold overflow: %w", err)
	}
	return equity.Cmp(threshold) <= 0, nil
}

// pickClosureTarget returns the symbol to close next: tickSymbol if the
// account still holds a position there, otherwise the remaining position
// with the largest loss (most negative unrealized_pnl).
func (m *Manager) pickClosureTarget(as *accountState, tickSymbol string) (string, error) {
	if _, ok := as.acc.Positions[tickSymbol]; ok {
		return tickSymbol, nil
	}

	symbols := make([]string, 0, len(as.acc.Positions))
	for symbol := range as.acc.Positions {
		symbols = append(symbols, symbol)
	}
	sort.Slice(symbols, func(i, j int) bool {
		return as.acc.Positions[symbols[i]].UnrealizedPnL.LessThan(as.acc.Positions[symbols[j]].UnrealizedPnL)
	})
	if len(symbols) == 0 {
		return "", nil
	}
	return symbols[0], nil
}

// closePosition realizes the position's loss against collateral, removes
// it from the account, and reports the LiquidationResult (spec.md §4.4).
// Removing the account from the symbol's shard is left to the caller.
func (m *Manager) closePosition(as *accountState, symbol string) (LiquidationResult, error) {
	pos := as.acc.Positions[symbol]
	mark, ok := as.markPrices[symbol]
	if !ok {
		mark = pos.EntryPrice
	}

	realizedLoss := pos.UnrealizedPnL
	newCollateral, err := as.acc.Collateral.Add(realizedLoss)
	if err != nil {
		return LiquidationResult{}, fmt.Errorf("collateral overflow closing %s: %w", symbol, err)
	}
	as.acc.Collateral = newCollateral

	delete(as.acc.Positions, symbol)
	delete(as.markPrices, symbol)

	if m.cfg.SuspendOnDeficit && as.acc.Collateral.IsNeg() {
		as.suspended = true
	}

	return LiquidationResult{
		UserID:       as.acc.UserID,
		Symbol:       symbol,
		Size:         pos.Size,
		MarkPrice:    mark,
		RealizedLoss: realizedLoss,
		Collateral:   as.acc.Collateral,
	}, nil
}

// Snapshot returns a read-only view of every tracked account, per spec.md
// §4.4's "external readers may observe read-only snapshots".
func (m *Manager) Snapshot() []AccountView {
	m.registryMu.RLock()
	states := make([]*accountState, 0, len(m.accounts))
	for _, as := range m.accounts {
		states = append(states, as)
	}
	m.registryMu.RUnlock()

	views := make([]AccountView, 0, len(states))
	for _, as := range states {
		as.mu.Lock()
		positions := make(map[string]Position, len(as.acc.Positions))
		for symbol, p := range as.acc.Positions {
			positions[symbol] = *p
		}
		views = append(views, AccountView{
			UserID:        as.acc.UserID,
			Collateral:    as.acc.Collateral,
			UnrealizedPnL: as.acc.UnrealizedPnL,
			MarginRatio:   as.acc.MarginRatio,
			Positions:     positions,
		})
		as.mu.Unlock()
	}
	return views
}
