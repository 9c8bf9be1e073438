package core

import (
	"errors"
	"testing"
)

func TestParseCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		err error
	}{
		{"1", 100, nil},
		{"1.0", 100, nil},
		{"1.23", 123, nil},
		{"12,50", 1250, nil},
		{"0.01", 1, nil},
		{"1.005", 101, nil},
		{" 2.50 ", 250, nil},
		{"3,99 €", 399, nil},
		{"", 0, nil},
		{"0", 0, nil},
		{"-1", 0, ErrNegativeAmount},
		{"abc", 0, ErrInvalidAmount},
		{"1.2.3", 0, ErrInvalidAmount},
	}
	for _, tc := range cases {
		got, err := ParseCents(tc.in)
		if !errors.Is(err, tc.err) {
			t.Fatalf("%q expected err %v, got %v", tc.in, tc.err, err)
		}
		if got != tc.out {
			t.Fatalf("%q expected %d, got %d", tc.in, tc.out, got)
		}
	}
}

func TestParseAmountCoercesGarbage(t *testing.T) {
	if m, ok := ParseAmount("12,50"); !ok || m.Cents != 1250 {
		t.Fatalf("expected 1250 cents, got %d (ok=%v)", m.Cents, ok)
	}
	if m, ok := ParseAmount("abc"); ok || m.Cents != 0 {
		t.Fatalf("expected coerced zero, got %d (ok=%v)", m.Cents, ok)
	}
	if m, ok := ParseAmount("-4"); ok || m.Cents != 0 {
		t.Fatalf("expected negative coerced to zero, got %d (ok=%v)", m.Cents, ok)
	}
}

func TestFormatDecimal(t *testing.T) {
	cases := map[int64]string{0: "0.00", 5: "0.05", 1250: "12.50", -300: "-3.00"}
	for cents, want := range cases {
		if got := FormatDecimal(Money{Cents: cents}); got != want {
			t.Fatalf("%d: expected %q, got %q", cents, want, got)
		}
	}
}

func TestFormatEuro(t *testing.T) {
	if got := FormatEuro(Money{Cents: 123456}); got != "1.234,56 €" {
		t.Fatalf("unexpected format %q", got)
	}
	if got := FormatNumber(Money{Cents: 50}); got != "0,50" {
		t.Fatalf("unexpected format %q", got)
	}
}
