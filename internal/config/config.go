// Package config loads titanex's process-wide configuration, recognizing
// exactly the keys spec.md §6 names. Priority: environment variable > .env
// file > default, the same layering as the teacher's params.LoadFromEnv.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/titanex-labs/titanex/internal/decimal"
)

// Mode selects which price feed adapter the orchestrator starts.
type Mode string

const (
	ModeSimulation Mode = "simulation"
	ModeExternal   Mode = "external"
)

// Config is titanex's full process configuration, loaded once at startup
// (spec.md §5: "no global mutable state beyond process-wide configuration
// loaded once at startup").
type Config struct {
	PriceFeedMode         Mode
	PriceFeedInitialPrice decimal.Decimal
	PriceFeedVolatility   float64
	PriceFeedSeed         int64
	PriceFeedSymbols      []string
	PriceFeedURL          string // external mode websocket endpoint

	RiskMaintenanceMarginRatio decimal.Decimal

	StorePath string

	MetricsPort int

	ShutdownGraceMillis int
}

// Default returns titanex's out-of-the-box configuration: simulation mode
// over a single symbol, a conservative maintenance margin, and the grace
// period spec.md §5 recommends.
func Default() Config {
	return Config{
		PriceFeedMode:              ModeSimulation,
		PriceFeedInitialPrice:      decimal.FromInt64(100),
		PriceFeedVolatility:        0.001,
		PriceFeedSeed:              1,
		PriceFeedSymbols:           []string{"BTC-USD"},
		RiskMaintenanceMarginRatio: decimal.FromUnits(500000), // 0.005
		StorePath:                  "./data/oracle",
		MetricsPort:                9090,
		ShutdownGraceMillis:        5000,
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables, layered over Default(). envPath == "" loads
// ".env" from the working directory, same as the teacher's
// params.LoadFromEnv.
func LoadFromEnv(envPath string) (Config, error) {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("PRICE_FEED_MODE"); v != "" {
		switch strings.ToLower(v) {
		case string(ModeSimulation):
			cfg.PriceFeedMode = ModeSimulation
		case string(ModeExternal):
			cfg.PriceFeedMode = ModeExternal
		default:
			return Config{}, fmt.Errorf("config: invalid PRICE_FEED_MODE %q", v)
		}
	}

	if v := os.Getenv("PRICE_FEED_INITIAL_PRICE"); v != "" {
		p, err := decimal.ParseString(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: PRICE_FEED_INITIAL_PRICE: %w", err)
		}
		cfg.PriceFeedInitialPrice = p
	}

	if v := os.Getenv("PRICE_FEED_VOLATILITY"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("config: PRICE_FEED_VOLATILITY: %w", err)
		}
		cfg.PriceFeedVolatility = f
	}

	if v := os.Getenv("PRICE_FEED_SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("config: PRICE_FEED_SEED: %w", err)
		}
		cfg.PriceFeedSeed = n
	}

	if v := os.Getenv("PRICE_FEED_SYMBOLS"); v != "" {
		cfg.PriceFeedSymbols = strings.Split(v, ",")
	}

	if v := os.Getenv("PRICE_FEED_URL"); v != "" {
		cfg.PriceFeedURL = v
	}

	if v := os.Getenv("RISK_MAINTENANCE_MARGIN_RATIO"); v != "" {
		r, err := decimal.ParseString(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: RISK_MAINTENANCE_MARGIN_RATIO: %w", err)
		}
		cfg.RiskMaintenanceMarginRatio = r
	}

	if v := os.Getenv("STORE_PATH"); v != "" {
		cfg.StorePath = v
	}

	if v := os.Getenv("METRICS_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: METRICS_PORT: %w", err)
		}
		cfg.MetricsPort = n
	}

	if v := os.Getenv("SHUTDOWN_GRACE_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: SHUTDOWN_GRACE_MS: %w", err)
		}
		cfg.ShutdownGraceMillis = n
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects a configuration that would leave a component unable to
// start (spec.md §6 exit code 2: "configuration error").
func (c Config) Validate() error {
	if c.PriceFeedMode != ModeSimulation && c.PriceFeedMode != ModeExternal {
		return fmt.Errorf("config: price_feed.mode must be %q or %q", ModeSimulation, ModeExternal)
	}
	if c.PriceFeedMode == ModeExternal && c.PriceFeedURL == "" {
		return fmt.Errorf("config: price_feed.url is required in external mode")
	}
	if len(c.PriceFeedSymbols) == 0 {
		return fmt.Errorf("config: price_feed.symbols must not be empty")
	}
	if !c.RiskMaintenanceMarginRatio.IsPos() {
		return fmt.Errorf("config: risk.maintenance_margin_ratio must be positive")
	}
	if c.StorePath == "" {
		return fmt.Errorf("config: store.path must not be empty")
	}
	if c.ShutdownGraceMillis <= 0 {
		return fmt.Errorf("config: shutdown.grace_ms must be positive")
	}
	return nil
}

// ShutdownGrace returns the configured grace period as a time.Duration.
func (c Config) ShutdownGrace() time.Duration {
	return time.Duration(c.ShutdownGraceMillis) * time.Millisecond
}
