package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/titanex-labs/titanex/internal/clock"
	"github.com/titanex-labs/titanex/internal/config"
	"github.com/titanex-labs/titanex/internal/decimal"
	"github.com/titanex-labs/titanex/internal/feed"
	"github.com/titanex-labs/titanex/internal/oracle"
	"github.com/titanex-labs/titanex/internal/orchestrator"
	"github.com/titanex-labs/titanex/internal/sentinel"
	"github.com/titanex-labs/titanex/internal/telemetry"
	"github.com/titanex-labs/titanex/internal/titan"
)

// Exit codes, spec.md §6: 0 clean shutdown, 1 other, 2 configuration
// error, 3 unrecoverable store error, 4 arithmetic overflow.
const (
	exitOther  = 1
	exitConfig = 2
	exitStore  = 3
	exitFatal  = 4
)

// fatalf logs cause via logger and exits with code.
func fatalf(logger *zap.SugaredLogger, code int, msg string, keysAndValues ...interface{}) {
	logger.Errorw(msg, keysAndValues...)
	logger.Sync()
	os.Exit(code)
}

func main() {
	cfg, err := config.LoadFromEnv("")
	if err != nil {
		log.Printf("config: %v", err)
		os.Exit(exitConfig)
	}

	logger, err := telemetry.NewLogger()
	if err != nil {
		log.Printf("logger: %v", err)
		os.Exit(exitConfig)
	}
	defer logger.Sync()
	logger.Infow("titanex starting",
		"price_feed_mode", cfg.PriceFeedMode,
		"symbols", cfg.PriceFeedSymbols,
		"store_path", cfg.StorePath,
	)

	store, err := oracle.Open(cfg.StorePath)
	if err != nil {
		fatalf(logger, exitStore, "oracle open failed", "error", err)
	}
	defer store.Close()

	if records, err := store.ReplayAll(); err != nil {
		fatalf(logger, exitStore, "oracle replay failed", "error", err)
	} else {
		logger.Infow("oracle replayed", "records", len(records))
	}

	engine := titan.NewEngine()
	for _, symbol := range cfg.PriceFeedSymbols {
		market, err := titan.NewMarket(symbol,
			decimal.FromUnits(1),
			decimal.FromUnits(1),
			decimal.Zero,
			decimal.Zero,
		)
		if err != nil {
			fatalf(logger, exitConfig, "market construction failed", "symbol", symbol, "error", err)
		}
		if err := engine.RegisterMarket(market); err != nil {
			fatalf(logger, exitConfig, "market registration failed", "symbol", symbol, "error", err)
		}
	}

	risk := sentinel.NewManager(sentinel.Config{
		MaintenanceMarginRatio: cfg.RiskMaintenanceMarginRatio,
	})

	rec := telemetry.NewAtomicRecorder()
	clk := clock.Real{}

	var source feed.Source
	switch cfg.PriceFeedMode {
	case config.ModeSimulation:
		source = feed.NewSimulator(feed.SimulatorConfig{
			Symbols:      cfg.PriceFeedSymbols,
			InitialPrice: cfg.PriceFeedInitialPrice,
			Volatility:   cfg.PriceFeedVolatility,
			Seed:         cfg.PriceFeedSeed,
			Clock:        clk,
		})
	case config.ModeExternal:
		source = feed.NewExternalAdapter(cfg.PriceFeedURL)
	}

	orch := orchestrator.New(store, engine, risk, source, clk, logger, rec, cfg.ShutdownGrace())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		for res := range orch.LiquidationsOut {
			logger.Infow("liquidation",
				"user_id", res.UserID,
				"symbol", res.Symbol,
				"realized_loss", res.RealizedLoss.String(),
				"collateral", res.Collateral.String(),
			)
		}
	}()

	statusTicker := time.NewTicker(30 * time.Second)
	defer statusTicker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-statusTicker.C:
				snap := rec.Snapshot()
				logger.Infow("status",
					"orders_processed", snap.OrdersProcessed,
					"executions_total", snap.ExecutionsTotal,
					"liquidations_total", snap.LiquidationsTotal,
					"price_feed_updates_total", snap.PriceFeedUpdatesTotal,
				)
			}
		}
	}()

	if err := orch.Run(ctx); err != nil {
		var fatal *orchestrator.FatalError
		if errors.As(err, &fatal) && fatal.Kind == orchestrator.FatalStore {
			fatalf(logger, exitStore, "orchestrator stopped: store failure", "error", err)
		}
		if errors.As(err, &fatal) && fatal.Kind == orchestrator.FatalOverflow {
			fatalf(logger, exitFatal, "orchestrator stopped: arithmetic overflow", "error", err)
		}
		fatalf(logger, exitOther, "orchestrator stopped with error", "error", err)
	}
}
