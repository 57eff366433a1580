package bridge

import (
	"math/big"
	"testing"
)

func TestParseUnits(t *testing.T) {
	cases := []struct {
		input string
		want  string
		fail  bool
	}{
		{input: "100", want: "10000000000"},
		{input: "100.5", want: "10050000000"},
		{input: "0.00000001", want: "1"},
		{input: "1_000_000 ACG", want: "100000000000000"},
		{input: "2 wACG", want: "200000000"},
		{input: "1e3", want: "100000000000"},
		{input: "0", want: "0"},
		{input: "0.000000001", fail: true},
		{input: "-1", fail: true},
		{input: "1.2.3", fail: true},
		{input: "12 BTC", fail: true},
		{input: "", fail: true},
		{input: "1e78", fail: true},
	}
	for _, tc := range cases {
		got, err := ParseUnits(tc.input, Decimals)
		if tc.fail {
			if err == nil {
				t.Fatalf("ParseUnits(%q): expected error, got %s", tc.input, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseUnits(%q): %v", tc.input, err)
		}
		if got.String() != tc.want {
			t.Fatalf("ParseUnits(%q) = %s, want %s", tc.input, got, tc.want)
		}
	}
}

func TestParseAmountRejectsFractions(t *testing.T) {
	if _, err := ParseAmount("1.5"); err == nil {
		t.Fatalf("expected fractional base units to be rejected")
	}
	got, err := ParseAmount("10_000_000_000")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Cmp(big.NewInt(10_000_000_000)) != 0 {
		t.Fatalf("unexpected amount %s", got)
	}
	// 2^256 is one past the largest representable amount.
	if _, err := ParseAmount(new(big.Int).Lsh(big.NewInt(1), 256).String()); err == nil {
		t.Fatalf("expected uint256 overflow to be rejected")
	}
}

func TestFormatUnits(t *testing.T) {
	cases := map[int64]string{
		0:           "0",
		1:           "0.00000001",
		10050000000: "100.5",
		5000000000:  "50",
	}
	for in, want := range cases {
		if got := FormatUnits(big.NewInt(in), Decimals); got != want {
			t.Fatalf("FormatUnits(%d) = %q, want %q", in, got, want)
		}
	}
	if got := FormatUnits(nil, Decimals); got != "0" {
		t.Fatalf("FormatUnits(nil) = %q", got)
	}
}
