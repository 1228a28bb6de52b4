package feed

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/titanex-labs/titanex/internal/clock"
	"github.com/titanex-labs/titanex/internal/decimal"
)

// SimulatorConfig parameterizes the geometric random walk, spec.md §4.3:
// "given (initial_price, volatility σ), emit ticks at a fixed cadence."
type SimulatorConfig struct {
	Symbols      []string
	InitialPrice decimal.Decimal
	Volatility   float64 // sigma; e.g. 0.001 for 0.1% per tick
	Seed         int64   // MUST be configurable for reproducibility (spec.md §4.3)
	Interval     time.Duration

	Clock clock.Clock
}

// Simulator emits a reproducible, infinite stream of synthetic price
// ticks. With a fixed seed the sequence is identical across runs — no
// entropy is drawn from the environment (spec.md §9's determinism goal).
type Simulator struct {
	cfg SimulatorConfig
	rng *rand.Rand
}

// NewSimulator builds a Simulator from cfg. Volatility and seed are
// applied to every configured symbol, each walking independently off the
// same initial price but drawing from one shared, seeded generator so the
// whole run is reproducible from a single seed value.
func NewSimulator(cfg SimulatorConfig) *Simulator {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	return &Simulator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Run emits ticks for every configured symbol at cfg.Interval until ctx is
// cancelled. It blocks sending to out, so a full channel applies
// backpressure rather than dropping a tick.
func (s *Simulator) Run(ctx context.Context, out chan<- Tick) error {
	prices := make(map[string]decimal.Decimal, len(s.cfg.Symbols))
	for _, sym := range s.cfg.Symbols {
		prices[sym] = s.cfg.InitialPrice
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, sym := range s.cfg.Symbols {
				seq++
				next, err := s.step(prices[sym])
				if err != nil {
					return err
				}
				prices[sym] = next

				tick := Tick{
					Symbol:      sym,
					Price:       next,
					InternalSeq: seq,
					TsMillis:    clock.NowMillis(s.cfg.Clock),
				}
				select {
				case out <- tick:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}

// step applies one draw of p_{n+1} = p_n * (1 + sigma * U(-1,+1)), per
// spec.md §4.3's exact formula. U(-1,+1) is built from math/rand.Float64
// (which returns [0,1)) rescaled to [-1,+1).
//
// The random factor itself necessarily comes from a float64 PRNG draw; it
// is quantized to decimal.Scale digits once per step, and Decimal.Mul then
// truncates the new price toward zero at decimal.Scale digits. Both steps
// are deterministic, so a fixed seed reproduces the same walk exactly
// (spec.md §3's "all arithmetic is exact" governs what gets persisted and
// compared, not the PRNG's own internal precision).
func (s *Simulator) step(p decimal.Decimal) (decimal.Decimal, error) {
	u := s.rng.Float64()*2 - 1
	factorFloat := 1 + s.cfg.Volatility*u
	factor := decimal.FromUnits(int64(math.Round(factorFloat * float64(decimalScale))))
	return p.Mul(factor)
}

// decimalScale mirrors internal/decimal.Scale's 10^8 base without importing
// it as a runtime value (decimal.Scale is an untyped const already, this
// just names the quantity at the call site for readability).
const decimalScale = 100000000
