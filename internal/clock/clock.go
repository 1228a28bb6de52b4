// Package clock provides the seam used by every component that needs wall
// time, so tests can substitute a deterministic source. Adapted from the
// teacher's pkg/util.Clock.
package clock

import "time"

// Clock abstracts time.Now/time.After for testability.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// Real is the production Clock, backed directly by the time package.
type Real struct{}

func (Real) Now() time.Time                       { return time.Now() }
func (Real) After(d time.Duration) <-chan time.Time { return time.After(d) }

// NowMillis is a convenience for the ts_ms fields spec.md's SystemEvent
// payloads carry.
func NowMillis(c Clock) uint64 {
	return uint64(c.Now().UnixMilli())
}
