// Package telemetry builds titanex's structured logger and defines the
// metric names spec.md §6 treats as an external contract. The HTTP
// exposition endpoint itself is out of scope (spec.md §1); only the names
// and a process-local recorder live here.
package telemetry

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds titanex's production logger: JSON encoding, ISO8601
// timestamps, info level — directly the teacher's pkg/util.NewLogger.
func NewLogger() (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}
