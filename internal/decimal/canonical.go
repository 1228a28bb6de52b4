package decimal

import (
	"encoding/binary"
	"fmt"
)

// EncodeCanonical writes d's canonical form per spec.md §4.2: sign byte
// (0=non-negative, 1=negative), scale byte, then a length-prefixed
// big-endian coefficient magnitude. The encoding is deterministic and
// depends only on d's value, never on host byte order or Go version.
func EncodeCanonical(d Decimal) []byte {
	sign := byte(0)
	mag := uint64(d.coef)
	if d.coef < 0 {
		sign = 1
		mag = uint64(-d.coef)
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], mag)
	start := 0
	for start < 7 && buf[start] == 0 {
		start++
	}
	coefBytes := buf[start:]

	out := make([]byte, 0, 3+len(coefBytes))
	out = append(out, sign, byte(Scale), byte(len(coefBytes)))
	out = append(out, coefBytes...)
	return out
}

// DecodeCanonical parses bytes written by EncodeCanonical, returning the
// Decimal and the number of bytes consumed.
func DecodeCanonical(b []byte) (Decimal, int, error) {
	if len(b) < 3 {
		return Decimal{}, 0, fmt.Errorf("decimal: truncated canonical header")
	}
	sign, scale, n := b[0], b[1], int(b[2])
	if scale != Scale {
		return Decimal{}, 0, fmt.Errorf("decimal: unsupported scale %d", scale)
	}
	if sign != 0 && sign != 1 {
		return Decimal{}, 0, fmt.Errorf("decimal: invalid sign byte %d", sign)
	}
	if n > 8 || len(b) < 3+n {
		return Decimal{}, 0, fmt.Errorf("decimal: malformed coefficient (len=%d)", n)
	}

	var buf [8]byte
	copy(buf[8-n:], b[3:3+n])
	mag := binary.BigEndian.Uint64(buf[:])

	coef := int64(mag)
	if sign == 1 {
		coef = -coef
	}
	return Decimal{coef: coef}, 3 + n, nil
}
