package bridge

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/holiman/uint256"
)

// ParseAmount parses a base-unit integer amount. Underscores are accepted as
// digit separators and scientific notation is expanded ("1e8" = 100000000).
// Fractional base units are rejected.
func ParseAmount(value string) (*big.Int, error) {
	return parseScaled(value, 0)
}

// ParseUnits parses a decimal amount expressed in whole tokens and scales it
// by decimals, so ParseUnits("100.5", 8) returns 10050000000. A trailing
// token symbol ("100 ACG", "2 wACG") is ignored.
func ParseUnits(value string, decimals int) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if fields := strings.Fields(trimmed); len(fields) == 2 {
		switch strings.ToUpper(fields[1]) {
		case "ACG", "WACG":
			trimmed = fields[0]
		default:
			return nil, fmt.Errorf("unknown unit %q", fields[1])
		}
	}
	return parseScaled(trimmed, int64(decimals))
}

// FormatUnits renders a base-unit amount as a decimal string with the given
// number of fractional digits, trimming trailing zeros.
func FormatUnits(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}
	negative := amount.Sign() < 0
	digits := new(big.Int).Abs(amount).String()
	if decimals <= 0 {
		if negative {
			return "-" + digits
		}
		return digits
	}
	if len(digits) <= decimals {
		digits = strings.Repeat("0", decimals-len(digits)+1) + digits
	}
	whole := digits[:len(digits)-decimals]
	frac := strings.TrimRight(digits[len(digits)-decimals:], "0")
	out := whole
	if frac != "" {
		out += "." + frac
	}
	if negative {
		out = "-" + out
	}
	return out
}

// fitsUint256 reports whether v is representable on the destination chain.
func fitsUint256(v *big.Int) bool {
	if v == nil || v.Sign() < 0 {
		return false
	}
	_, overflow := uint256.FromBig(v)
	return !overflow
}

func parseScaled(value string, scale int64) (*big.Int, error) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(value), "_", "")
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	normalized := trimmed
	var exponent int64
	if idx := strings.IndexAny(normalized, "eE"); idx != -1 {
		expPart := strings.TrimSpace(normalized[idx+1:])
		if expPart == "" {
			return nil, fmt.Errorf("invalid scientific notation")
		}
		expValue, err := strconv.ParseInt(expPart, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid scientific notation")
		}
		exponent = expValue
		normalized = strings.TrimSpace(normalized[:idx])
	}
	normalized = strings.TrimPrefix(normalized, "+")
	if strings.HasPrefix(normalized, "-") {
		return nil, fmt.Errorf("amount must not be negative")
	}
	parts := strings.Split(normalized, ".")
	if len(parts) > 2 {
		return nil, fmt.Errorf("invalid amount format")
	}
	integerPart := parts[0]
	fractionalPart := ""
	if len(parts) == 2 {
		fractionalPart = parts[1]
	}
	digits := integerPart + fractionalPart
	if !isDigits(digits) {
		return nil, fmt.Errorf("invalid amount format")
	}
	fracLen := int64(len(fractionalPart))
	for fracLen > 0 && len(digits) > 0 && digits[len(digits)-1] == '0' {
		digits = digits[:len(digits)-1]
		fracLen--
	}
	digits = strings.TrimLeft(digits, "0")
	totalExponent := exponent + scale - fracLen
	if totalExponent < 0 {
		return nil, fmt.Errorf("amount has more than %d fractional digits", scale)
	}
	if digits == "" {
		digits = "0"
	}
	if digits != "0" && totalExponent > 0 {
		if totalExponent > 77 {
			return nil, fmt.Errorf("amount exceeds uint256")
		}
		digits += strings.Repeat("0", int(totalExponent))
	}
	amount, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount value")
	}
	if !fitsUint256(amount) {
		return nil, fmt.Errorf("amount exceeds uint256")
	}
	return amount, nil
}

func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
