package oracle

import (
	"encoding/binary"
	"fmt"

	"github.com/titanex-labs/titanex/internal/decimal"
)

// EncodeCanonical serializes an Event into the fixed field order spec.md §6
// lists per variant. The discriminant byte comes first so ReplayAll can
// dispatch without peeking into the payload.
func EncodeCanonical(e Event) ([]byte, error) {
	buf := []byte{byte(e.Kind)}

	switch e.Kind {
	case KindOrderPlaced:
		p := e.OrderPlaced
		if p == nil {
			return nil, fmt.Errorf("oracle: OrderPlaced event missing payload")
		}
		buf = appendUint64(buf, p.OrderID)
		buf = appendString(buf, p.Symbol)
		buf = append(buf, p.Side)
		buf = appendDecimal(buf, p.Price)
		buf = appendDecimal(buf, p.Quantity)
		buf = appendUint64(buf, p.SubmitSeq)
		buf = appendUint64(buf, p.TsMillis)

	case KindOrderExecuted:
		p := e.OrderExecuted
		if p == nil {
			return nil, fmt.Errorf("oracle: OrderExecuted event missing payload")
		}
		buf = appendUint64(buf, p.ExecID)
		buf = appendString(buf, p.Symbol)
		buf = appendUint64(buf, p.MakerID)
		buf = appendUint64(buf, p.TakerID)
		buf = appendDecimal(buf, p.Price)
		buf = appendDecimal(buf, p.Quantity)
		buf = appendUint64(buf, p.TsMillis)

	case KindPositionOpened:
		p := e.PositionOpened
		if p == nil {
			return nil, fmt.Errorf("oracle: PositionOpened event missing payload")
		}
		buf = appendUint64(buf, p.UserID)
		buf = appendString(buf, p.Symbol)
		buf = append(buf, p.Side)
		buf = appendDecimal(buf, p.Size)
		buf = appendDecimal(buf, p.EntryPrice)
		buf = appendUint32(buf, p.Leverage)
		buf = appendDecimal(buf, p.LiquidationPrice)
		buf = appendUint64(buf, p.TsMillis)

	case KindPositionLiquidated:
		p := e.PositionLiquidated
		if p == nil {
			return nil, fmt.Errorf("oracle: PositionLiquidated event missing payload")
		}
		buf = appendUint64(buf, p.UserID)
		buf = appendString(buf, p.Symbol)
		buf = appendDecimal(buf, p.Size)
		buf = appendDecimal(buf, p.MarkPrice)
		buf = appendDecimal(buf, p.RealizedLoss)
		buf = appendUint64(buf, p.TsMillis)

	case KindPriceUpdate:
		p := e.PriceUpdate
		if p == nil {
			return nil, fmt.Errorf("oracle: PriceUpdate event missing payload")
		}
		buf = appendString(buf, p.Symbol)
		buf = appendDecimal(buf, p.Price)
		buf = appendUint64(buf, p.InternalSeq)
		buf = appendUint64(buf, p.TsMillis)

	case KindAccountUpdated:
		p := e.AccountUpdated
		if p == nil {
			return nil, fmt.Errorf("oracle: AccountUpdated event missing payload")
		}
		buf = appendUint64(buf, p.UserID)
		buf = appendDecimal(buf, p.Collateral)
		buf = appendDecimal(buf, p.UnrealizedPnL)
		buf = appendUint64(buf, p.TsMillis)

	default:
		return nil, fmt.Errorf("oracle: unknown event kind %d", e.Kind)
	}

	return buf, nil
}

// DecodeCanonical is EncodeCanonical's inverse. It fails fast on truncated
// or malformed records rather than returning a partially-populated event
// (spec.md §7: a corrupt record halts replay).
func DecodeCanonical(b []byte) (Event, error) {
	if len(b) == 0 {
		return Event{}, fmt.Errorf("oracle: empty record")
	}
	kind := Kind(b[0])
	r := &reader{buf: b[1:]}

	var e Event
	e.Kind = kind

	switch kind {
	case KindOrderPlaced:
		p := &OrderPlaced{}
		p.OrderID = r.uint64()
		p.Symbol = r.string()
		p.Side = r.byte()
		p.Price = r.decimal()
		p.Quantity = r.decimal()
		p.SubmitSeq = r.uint64()
		p.TsMillis = r.uint64()
		e.OrderPlaced = p

	case KindOrderExecuted:
		p := &OrderExecuted{}
		p.ExecID = r.uint64()
		p.Symbol = r.string()
		p.MakerID = r.uint64()
		p.TakerID = r.uint64()
		p.Price = r.decimal()
		p.Quantity = r.decimal()
		p.TsMillis = r.uint64()
		e.OrderExecuted = p

	case KindPositionOpened:
		p := &PositionOpened{}
		p.UserID = r.uint64()
		p.Symbol = r.string()
		p.Side = r.byte()
		p.Size = r.decimal()
		p.EntryPrice = r.decimal()
		p.Leverage = r.uint32()
		p.LiquidationPrice = r.decimal()
		p.TsMillis = r.uint64()
		e.PositionOpened = p

	case KindPositionLiquidated:
		p := &PositionLiquidated{}
		p.UserID = r.uint64()
		p.Symbol = r.string()
		p.Size = r.decimal()
		p.MarkPrice = r.decimal()
		p.RealizedLoss = r.decimal()
		p.TsMillis = r.uint64()
		e.PositionLiquidated = p

	case KindPriceUpdate:
		p := &PriceUpdate{}
		p.Symbol = r.string()
		p.Price = r.decimal()
		p.InternalSeq = r.uint64()
		p.TsMillis = r.uint64()
		e.PriceUpdate = p

	case KindAccountUpdated:
		p := &AccountUpdated{}
		p.UserID = r.uint64()
		p.Collateral = r.decimal()
		p.UnrealizedPnL = r.decimal()
		p.TsMillis = r.uint64()
		e.AccountUpdated = p

	default:
		return Event{}, fmt.Errorf("oracle: unknown event kind %d", kind)
	}

	if r.err != nil {
		return Event{}, fmt.Errorf("oracle: corrupt record: %w", r.err)
	}
	if len(r.buf) != 0 {
		return Event{}, fmt.Errorf("oracle: corrupt record: %d trailing bytes", len(r.buf))
	}
	return e, nil
}

func appendUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendString(buf []byte, s string) []byte {
	buf = appendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

func appendDecimal(buf []byte, d decimal.Decimal) []byte {
	enc := decimal.EncodeCanonical(d)
	buf = appendUint32(buf, uint32(len(enc)))
	return append(buf, enc...)
}

// reader walks a byte slice, recording the first error encountered so
// callers can chain reads without checking err after every field.
type reader struct {
	buf []byte
	err error
}

func (r *reader) need(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.buf) < n {
		r.err = fmt.Errorf("need %d bytes, have %d", n, len(r.buf))
		return nil
	}
	out := r.buf[:n]
	r.buf = r.buf[n:]
	return out
}

func (r *reader) byte() uint8 {
	b := r.need(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) uint32() uint32 {
	b := r.need(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *reader) uint64() uint64 {
	b := r.need(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (r *reader) string() string {
	n := r.uint32()
	b := r.need(int(n))
	if b == nil {
		return ""
	}
	return string(b)
}

func (r *reader) decimal() decimal.Decimal {
	n := r.uint32()
	b := r.need(int(n))
	if b == nil {
		return decimal.Zero
	}
	d, consumed, err := decimal.DecodeCanonical(b)
	if err != nil {
		r.err = err
		return decimal.Zero
	}
	if consumed != len(b) {
		r.err = fmt.Errorf("decimal field left %d unread bytes", len(b)-consumed)
	}
	return d
}
