package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/titanex-labs/titanex/internal/clock"
	"github.com/titanex-labs/titanex/internal/decimal"
)

// Backoff bounds, spec.md §5: "reconnection with exponential backoff
// (start 250ms, cap 8s)".
const (
	initialBackoff = 250 * time.Millisecond
	maxBackoff     = 8 * time.Second
)

// quote is the wire shape this adapter expects from the upstream push
// stream: {"symbol": "...", "price": "...", "seq": n}. source_seq is read
// but never trusted across reconnects (spec.md §4.3).
type quote struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
	Seq    uint64 `json:"seq"`
}

// ExternalAdapter consumes a push stream (grounded on the pack's
// gorilla/websocket-based feed clients) and normalizes it into Ticks,
// reconnecting transparently with exponential backoff. Its own internal_seq
// is monotonic across reconnects even though the upstream's source_seq may
// reset (spec.md §4.3).
type ExternalAdapter struct {
	URL   string
	Clock clock.Clock

	dialer websocket.Dialer
}

// NewExternalAdapter creates an adapter for the given websocket URL.
func NewExternalAdapter(url string) *ExternalAdapter {
	return &ExternalAdapter{
		URL:    url,
		Clock:  clock.Real{},
		dialer: websocket.Dialer{HandshakeTimeout: 15 * time.Second},
	}
}

// Run connects, reads quotes until the connection drops or ctx is
// cancelled, and reconnects with exponential backoff in between. It only
// returns when ctx is cancelled.
func (a *ExternalAdapter) Run(ctx context.Context, out chan<- Tick) error {
	var seq uint64
	backoff := initialBackoff

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn, _, err := a.dialer.DialContext(ctx, a.URL, nil)
		if err != nil {
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff)
			continue
		}

		backoff = initialBackoff // a successful connect resets the backoff
		err = a.readLoop(ctx, conn, out, &seq)
		conn.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff)
		}
	}
}

// readLoop reads frames from conn until it errors or ctx is cancelled,
// normalizing and forwarding each one with a freshly-assigned internal_seq.
func (a *ExternalAdapter) readLoop(ctx context.Context, conn *websocket.Conn, out chan<- Tick, seq *uint64) error {
	msgs := make(chan []byte, 1)
	errs := make(chan error, 1)

	go func() {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				errs <- err
				return
			}
			msgs <- msg
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errs:
			return err
		case raw := <-msgs:
			q, ok := parseQuote(raw)
			if !ok {
				continue // malformed frame: drop and keep reading
			}
			price, err := decimal.ParseString(q.Price)
			if err != nil {
				continue
			}
			*seq++
			tick := Tick{
				Symbol:      q.Symbol,
				Price:       price,
				InternalSeq: *seq,
				TsMillis:    clock.NowMillis(a.Clock),
			}
			select {
			case out <- tick:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func parseQuote(raw []byte) (quote, bool) {
	var q quote
	if err := json.Unmarshal(raw, &q); err != nil {
		return quote{}, false
	}
	if q.Symbol == "" || q.Price == "" {
		return quote{}, false
	}
	return q, true
}

// sleep waits for d or ctx cancellation, reporting which happened first.
func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

