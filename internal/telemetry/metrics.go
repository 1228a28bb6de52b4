package telemetry

import (
	"math"
	"sync/atomic"
)

// Recorder is the metrics contract spec.md §6 names. Every method
// corresponds to exactly one metric; there is no HTTP exposition surface
// here, only the process-local counters an external collector would scrape.
type Recorder interface {
	OrdersProcessed()
	ExecutionsTotal()
	ExecutionPrice(v float64)
	ExecutionQuantity(v float64)
	Spread(v float64)
	EventsWritten()
	LiquidationsTotal()
	LiquidationLoss(v float64)
	AccountsTotal(n int)
	AccountsAtRisk(n int)
	MarginRatio(v float64)
	ProcessTimeMicros(v int64)
	PriceFeedUpdatesTotal()
	PriceFeedLatencyMs(v float64)
}

// gauge holds the latest value for metrics that aren't monotonic counters
// (spread, margin_ratio, ...). sync/atomic's Uint64 float bit-pattern trick
// keeps every field lock-free.
type gauge struct {
	bits atomic.Uint64
}

func (g *gauge) set(v float64) {
	g.bits.Store(math.Float64bits(v))
}

func (g *gauge) get() float64 {
	return math.Float64frombits(g.bits.Load())
}

// AtomicRecorder is the Recorder backing used in every titanex process.
// Counters use atomic.Uint64/Int64; gauges use the lock-free bit-pattern
// trick above. There is no registry or HTTP handler: Snapshot exists purely
// so a future collector (or a test) can read the current values.
type AtomicRecorder struct {
	ordersProcessed       atomic.Uint64
	executionsTotal       atomic.Uint64
	executionPrice        gauge
	executionQuantity     gauge
	spread                gauge
	eventsWritten         atomic.Uint64
	liquidationsTotal     atomic.Uint64
	liquidationLoss       gauge
	accountsTotal         atomic.Int64
	accountsAtRisk        atomic.Int64
	marginRatio           gauge
	processTimeMicros     atomic.Int64
	priceFeedUpdatesTotal atomic.Uint64
	priceFeedLatencyMs    gauge
}

var _ Recorder = (*AtomicRecorder)(nil)

func NewAtomicRecorder() *AtomicRecorder { return &AtomicRecorder{} }

func (r *AtomicRecorder) OrdersProcessed()      { r.ordersProcessed.Add(1) }
func (r *AtomicRecorder) ExecutionsTotal()      { r.executionsTotal.Add(1) }
func (r *AtomicRecorder) ExecutionPrice(v float64)    { r.executionPrice.set(v) }
func (r *AtomicRecorder) ExecutionQuantity(v float64) { r.executionQuantity.set(v) }
func (r *AtomicRecorder) Spread(v float64)            { r.spread.set(v) }
func (r *AtomicRecorder) EventsWritten()        { r.eventsWritten.Add(1) }
func (r *AtomicRecorder) LiquidationsTotal()    { r.liquidationsTotal.Add(1) }
func (r *AtomicRecorder) LiquidationLoss(v float64) { r.liquidationLoss.set(v) }
func (r *AtomicRecorder) AccountsTotal(n int)   { r.accountsTotal.Store(int64(n)) }
func (r *AtomicRecorder) AccountsAtRisk(n int)  { r.accountsAtRisk.Store(int64(n)) }
func (r *AtomicRecorder) MarginRatio(v float64) { r.marginRatio.set(v) }
func (r *AtomicRecorder) ProcessTimeMicros(v int64)   { r.processTimeMicros.Store(v) }
func (r *AtomicRecorder) PriceFeedUpdatesTotal()      { r.priceFeedUpdatesTotal.Add(1) }
func (r *AtomicRecorder) PriceFeedLatencyMs(v float64) { r.priceFeedLatencyMs.set(v) }

// Snapshot is a point-in-time read of every metric, useful for tests and
// for a future collector to poll without reaching into atomics directly.
type Snapshot struct {
	OrdersProcessed       uint64
	ExecutionsTotal       uint64
	ExecutionPrice        float64
	ExecutionQuantity     float64
	Spread                float64
	EventsWritten         uint64
	LiquidationsTotal     uint64
	LiquidationLoss       float64
	AccountsTotal         int64
	AccountsAtRisk        int64
	MarginRatio           float64
	ProcessTimeMicros     int64
	PriceFeedUpdatesTotal uint64
	PriceFeedLatencyMs    float64
}

func (r *AtomicRecorder) Snapshot() Snapshot {
	return Snapshot{
		OrdersProcessed:       r.ordersProcessed.Load(),
		ExecutionsTotal:       r.executionsTotal.Load(),
		ExecutionPrice:        r.executionPrice.get(),
		ExecutionQuantity:     r.executionQuantity.get(),
		Spread:                r.spread.get(),
		EventsWritten:         r.eventsWritten.Load(),
		LiquidationsTotal:     r.liquidationsTotal.Load(),
		LiquidationLoss:       r.liquidationLoss.get(),
		AccountsTotal:         r.accountsTotal.Load(),
		AccountsAtRisk:        r.accountsAtRisk.Load(),
		MarginRatio:           r.marginRatio.get(),
		ProcessTimeMicros:     r.processTimeMicros.Load(),
		PriceFeedUpdatesTotal: r.priceFeedUpdatesTotal.Load(),
		PriceFeedLatencyMs:    r.priceFeedLatencyMs.get(),
	}
}
