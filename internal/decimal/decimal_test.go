package decimal

import "testing"

func TestAddSub(t *testing.T) {
	a := FromInt64(100)
	b := FromUnits(25000000) // 0.25
	sum, err := a.Add(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := sum.String(), "100.25000000"; got != want {
		t.Errorf("sum = %s, want %s", got, want)
	}

	diff, err := a.Sub(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := diff.String(), "99.75000000"; got != want {
		t.Errorf("diff = %s, want %s", got, want)
	}
}

func TestAddOverflow(t *testing.T) {
	max := FromUnits(1<<63 - 1)
	if _, err := max.Add(FromInt64(1)); err != ErrOverflow {
		t.Errorf("expected ErrOverflow, got %v", err)
	}
}

func TestMul(t *testing.T) {
	price := FromInt64(50000)    // $50,000
	qty := FromUnits(100000000) // 1.0
	notional, err := price.Mul(qty)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := notional.String(), "50000.00000000"; got != want {
		t.Errorf("notional = %s, want %s", got, want)
	}
}

func TestMulOverflowDoesNotSilentlySaturate(t *testing.T) {
	huge := FromUnits(1 << 62)
	if _, err := huge.Mul(FromInt64(1000)); err != ErrOverflow {
		t.Errorf("expected ErrOverflow, got %v", err)
	}
}

func TestCmpTotalOrder(t *testing.T) {
	cases := []struct {
		a, b Decimal
		want int
	}{
		{FromInt64(1), FromInt64(2), -1},
		{FromInt64(2), FromInt64(1), 1},
		{FromInt64(5), FromInt64(5), 0},
		{FromInt64(-1), FromInt64(1), -1},
	}
	for _, c := range cases {
		if got := c.a.Cmp(c.b); got != c.want {
			t.Errorf("Cmp(%s,%s) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestCanonicalRoundTrip(t *testing.T) {
	values := []Decimal{
		FromInt64(0),
		FromInt64(1),
		FromInt64(-1),
		FromUnits(123456789),
		FromUnits(-987654321),
		FromInt64(50000),
	}
	for _, v := range values {
		enc := EncodeCanonical(v)
		got, n, err := DecodeCanonical(enc)
		if err != nil {
			t.Fatalf("decode(%s): %v", v, err)
		}
		if n != len(enc) {
			t.Errorf("decode(%s) consumed %d bytes, want %d", v, n, len(enc))
		}
		if !got.Equal(v) {
			t.Errorf("round-trip(%s) = %s", v, got)
		}
	}
}

func TestParseString(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"100", "100.00000000"},
		{"100.25", "100.25000000"},
		{"-0.5", "-0.50000000"},
		{"+3.00000001", "3.00000001"},
		{"0", "0.00000000"},
	}
	for _, c := range cases {
		got, err := ParseString(c.in)
		if err != nil {
			t.Fatalf("ParseString(%q): %v", c.in, err)
		}
		if got.String() != c.want {
			t.Errorf("ParseString(%q) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestParseStringRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "abc", "1.2.3", "1.123456789"} {
		if _, err := ParseString(in); err == nil {
			t.Errorf("ParseString(%q) should have failed", in)
		}
	}
}

func TestCanonicalIsDeterministic(t *testing.T) {
	v := FromUnits(42)
	a := EncodeCanonical(v)
	b := EncodeCanonical(v)
	if len(a) != len(b) {
		t.Fatalf("non-deterministic length")
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("non-deterministic byte at %d", i)
		}
	}
}
