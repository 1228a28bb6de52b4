// Package orchestrator wires Oracle, Titan, Sentinel and a price feed
// Source into one running process, per spec.md §4.5. It owns the bounded
// channels between them and the startup/shutdown sequencing; none of the
// four components know about each other directly.
package orchestrator

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"go.uber.org/zap"

	"github.com/titanex-labs/titanex/internal/clock"
	"github.com/titanex-labs/titanex/internal/decimal"
	"github.com/titanex-labs/titanex/internal/feed"
	"github.com/titanex-labs/titanex/internal/oracle"
	"github.com/titanex-labs/titanex/internal/sentinel"
	"github.com/titanex-labs/titanex/internal/telemetry"
	"github.com/titanex-labs/titanex/internal/titan"
)

// channelBuffer bounds every internal channel (spec.md §5: "a full channel
// is backpressure, never an unbounded queue").
const channelBuffer = 256

// ErrShuttingDown is returned by SubmitOrder once ctx has been cancelled;
// no new order reaches the book after shutdown begins.
var ErrShuttingDown = fmt.Errorf("orchestrator: shutting down, rejecting new orders")

// OrderRequest is what callers submit through SubmitOrder. The
// orchestrator — not the caller — assigns OrderID and SubmitSeq, since
// Oracle must journal OrderPlaced before Titan ever sees the order.
type OrderRequest struct {
	Owner  uint64
	Symbol string
	Side   titan.Side
	Price  decimal.Decimal
	Qty    decimal.Decimal
	TIF    titan.TimeInForce
	Market bool
}

// OrderResult is SubmitOrder's reply: either the book's execution report,
// or the error that kept the order from ever reaching Titan.
type OrderResult struct {
	OrderID uint64
	Report  titan.ExecutionReport
	Err     error
}

type orderJob struct {
	req   OrderRequest
	reply chan OrderResult
}

// Orchestrator is the single process that owns Oracle, Titan and
// Sentinel's lifecycles and feeds them from one price Source. Generalized
// from pkg/consensus/engine.go's single-loop Run(ctx) to an
// errgroup.Group of component loops, in the channel-wiring style of
// alanyoungcy-polymarketbot's internal/pipeline/orchestrator.go.
type Orchestrator struct {
	store  *oracle.Store
	engine *titan.Engine
	risk   *sentinel.Manager
	source feed.Source
	clk    clock.Clock
	logger *zap.SugaredLogger
	rec    telemetry.Recorder

	grace time.Duration

	ordersIn chan orderJob
	ticksIn  chan feed.Tick

	// LiquidationsOut is read-only for callers: every forced position
	// close Sentinel reports, after its journal entries are durable.
	LiquidationsOut chan sentinel.LiquidationResult

	nextOrderID atomic.Uint64
	nextExecID  atomic.Uint64
	shutdown    atomic.Bool
}

// New builds an Orchestrator. store, engine and risk must already be
// constructed and markets registered; Run starts the price feed and both
// consumer loops.
func New(store *oracle.Store, engine *titan.Engine, risk *sentinel.Manager, source feed.Source, clk clock.Clock, logger *zap.SugaredLogger, rec telemetry.Recorder, grace time.Duration) *Orchestrator {
	return &Orchestrator{
		store:           store,
		engine:          engine,
		risk:            risk,
		source:          source,
		clk:             clk,
		logger:          logger,
		rec:             rec,
		grace:           grace,
		ordersIn:        make(chan orderJob, channelBuffer),
		ticksIn:         make(chan feed.Tick, channelBuffer),
		LiquidationsOut: make(chan sentinel.LiquidationResult, channelBuffer),
	}
}

// SubmitOrder enqueues req and blocks until the order has been journaled,
// matched and (if resting) booked, or until ctx is cancelled first.
// Rejects immediately once shutdown has begun (ErrShuttingDown).
func (o *Orchestrator) SubmitOrder(ctx context.Context, req OrderRequest) OrderResult {
	if o.shutdown.Load() {
		return OrderResult{Err: ErrShuttingDown}
	}
	job := orderJob{req: req, reply: make(chan OrderResult, 1)}
	select {
	case o.ordersIn <- job:
	case <-ctx.Done():
		return OrderResult{Err: ctx.Err()}
	}
	select {
	case res := <-job.reply:
		return res
	case <-ctx.Done():
		return OrderResult{Err: ctx.Err()}
	}
}

// Run starts the price feed, the order consumer and the tick consumer
// (startup order Oracle → Titan → Sentinel → PriceFeed — the first three
// are already constructed by the time Run is called, so only PriceFeed
// actually starts here). On ctx cancellation every loop drains its
// channel for up to the configured grace period before returning, in
// the reverse order: PriceFeed stops producing first, then both
// consumers finish whatever they already accepted, and Oracle is the
// last thing still being written to.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Infow("orchestrator starting", "grace_ms", o.grace.Milliseconds())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		o.shutdown.Store(true)
		return nil
	})

	g.Go(func() error {
		err := o.source.Run(gctx, o.ticksIn)
		if gctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("price feed: %w", err)
	})

	g.Go(func() error {
		return o.consumeOrders(gctx)
	})

	g.Go(func() error {
		return o.consumeTicks(gctx)
	})

	err := g.Wait()
	if err != nil {
		o.logger.Errorw("orchestrator stopped with error", "error", err)
		return err
	}
	o.logger.Infow("orchestrator stopped cleanly")
	return nil
}

// consumeOrders is Titan's single-writer loop: it is the only goroutine
// that ever calls o.engine.Submit (spec.md §5). A FatalError from
// handleOrder (a failed Oracle append) stops the loop immediately and
// propagates out of Run, per spec.md §7: store failures are never merely
// logged and skipped.
func (o *Orchestrator) consumeOrders(ctx context.Context) error {
	var deadline <-chan time.Time
	for {
		select {
		case job := <-o.ordersIn:
			res, fatal := o.handleOrder(job.req)
			job.reply <- res
			if fatal != nil {
				return fatal
			}
		case <-deadline:
			return nil
		case <-ctx.Done():
			if deadline == nil {
				deadline = time.After(o.grace)
			}
			ctx = context.Background()
		}
	}
}

// consumeTicks applies every accepted price tick to Sentinel, after
// journaling it, and forwards liquidations once their own journal entries
// are durable. A FatalError from handleTick (a failed Oracle append, or
// arithmetic overflow surfaced by Sentinel) stops the loop immediately and
// propagates out of Run.
func (o *Orchestrator) consumeTicks(parent context.Context) error {
	ctx := parent
	var deadline <-chan time.Time
	for {
		select {
		case tick := <-o.ticksIn:
			if fatal := o.handleTick(parent, tick); fatal != nil {
				return fatal
			}
		case <-deadline:
			return nil
		case <-ctx.Done():
			if deadline == nil {
				deadline = time.After(o.grace)
			}
			ctx = context.Background()
		}
	}
}

// handleOrder returns the reply due to the caller and, separately, a
// non-nil *FatalError if an Oracle append failed partway through. The two
// are independent: a fatal append after fills already matched still
// reports those fills in Report, but callers must check Err (set to the
// same FatalError) before trusting the report as acknowledged, since
// spec.md §4.1 forbids acknowledging an execution that isn't yet durable.
func (o *Orchestrator) handleOrder(req OrderRequest) (OrderResult, *FatalError) {
	orderID := o.nextOrderID.Add(1)
	submitSeq, err := o.engine.NextSubmitSeq(req.Symbol)
	if err != nil {
		return OrderResult{OrderID: orderID, Err: err}, nil
	}

	placed := oracle.Event{
		Kind: oracle.KindOrderPlaced,
		OrderPlaced: &oracle.OrderPlaced{
			OrderID:   orderID,
			Symbol:    req.Symbol,
			Side:      uint8(req.Side),
			Price:     req.Price,
			Quantity:  req.Qty,
			SubmitSeq: submitSeq,
			TsMillis:  clock.NowMillis(o.clk),
		},
	}
	if _, err := o.store.Append(placed); err != nil {
		fatal := &FatalError{Kind: FatalStore, Err: fmt.Errorf("journal order_placed: %w", err)}
		return OrderResult{OrderID: orderID, Err: fatal}, fatal
	}
	o.rec.OrdersProcessed()

	order := &titan.Order{
		ID:        orderID,
		Owner:     req.Owner,
		Symbol:    req.Symbol,
		Side:      req.Side,
		Price:     req.Price,
		Qty:       req.Qty,
		TIF:       req.TIF,
		SubmitSeq: submitSeq,
		Market:    req.Market,
	}
	report, err := o.engine.Submit(order)
	if err != nil {
		return OrderResult{OrderID: orderID, Err: err}, nil
	}

	for _, fill := range report.Fills {
		execID := o.nextExecID.Add(1)
		executed := oracle.Event{
			Kind: oracle.KindOrderExecuted,
			OrderExecuted: &oracle.OrderExecuted{
				ExecID:   execID,
				Symbol:   req.Symbol,
				MakerID:  fill.MakerOrderID,
				TakerID:  fill.TakerOrderID,
				Price:    fill.Price,
				Quantity: fill.Qty,
				TsMillis: clock.NowMillis(o.clk),
			},
		}
		if _, err := o.store.Append(executed); err != nil {
			fatal := &FatalError{Kind: FatalStore, Err: fmt.Errorf("journal order_executed exec_id=%d: %w", execID, err)}
			return OrderResult{OrderID: orderID, Report: report, Err: fatal}, fatal
		}
		o.rec.ExecutionsTotal()
		o.rec.ExecutionPrice(fill.Price.Float64())
		o.rec.ExecutionQuantity(fill.Qty.Float64())
	}

	return OrderResult{OrderID: orderID, Report: report}, nil
}

// handleTick returns a non-nil *FatalError when a journal append fails or
// Sentinel reports arithmetic overflow (spec.md §4.4); the caller halts
// rather than continuing to process ticks against a store or risk engine
// that may now be inconsistent.
func (o *Orchestrator) handleTick(ctx context.Context, tick feed.Tick) *FatalError {
	update := oracle.Event{
		Kind: oracle.KindPriceUpdate,
		PriceUpdate: &oracle.PriceUpdate{
			Symbol:      tick.Symbol,
			Price:       tick.Price,
			InternalSeq: tick.InternalSeq,
			TsMillis:    tick.TsMillis,
		},
	}
	if _, err := o.store.Append(update); err != nil {
		return &FatalError{Kind: FatalStore, Err: fmt.Errorf("journal price_update symbol=%s: %w", tick.Symbol, err)}
	}
	o.rec.PriceFeedUpdatesTotal()

	results, err := o.risk.OnTick(sentinel.PriceTick{Symbol: tick.Symbol, Price: tick.Price})
	if err != nil {
		return &FatalError{Kind: FatalOverflow, Err: fmt.Errorf("sentinel on_tick symbol=%s: %w", tick.Symbol, err)}
	}

	for _, res := range results {
		liquidated := oracle.Event{
			Kind: oracle.KindPositionLiquidated,
			PositionLiquidated: &oracle.PositionLiquidated{
				UserID:       res.UserID,
				Symbol:       res.Symbol,
				Size:         res.Size,
				MarkPrice:    res.MarkPrice,
				RealizedLoss: res.RealizedLoss,
				TsMillis:     clock.NowMillis(o.clk),
			},
		}
		if _, err := o.store.Append(liquidated); err != nil {
			return &FatalError{Kind: FatalStore, Err: fmt.Errorf("journal position_liquidated user_id=%d: %w", res.UserID, err)}
		}
		o.rec.LiquidationsTotal()
		o.rec.LiquidationLoss(res.RealizedLoss.Float64())

		accountUpdated := oracle.Event{
			Kind: oracle.KindAccountUpdated,
			AccountUpdated: &oracle.AccountUpdated{
				UserID:     res.UserID,
				Collateral: res.Collateral,
				TsMillis:   clock.NowMillis(o.clk),
			},
		}
		if _, err := o.store.Append(accountUpdated); err != nil {
			return &FatalError{Kind: FatalStore, Err: fmt.Errorf("journal account_updated user_id=%d: %w", res.UserID, err)}
		}

		select {
		case o.LiquidationsOut <- res:
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}
