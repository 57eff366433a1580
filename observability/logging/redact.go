package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces external references in call details.
const RedactedValue = "[REDACTED]"

type exposure uint8

const (
	exposeNone exposure = iota
	exposeFull
	exposeShort
)

// Counterparty accounts are logged abbreviated. Deposit proofs, destinations
// and foreign references are not listed and are masked.
var detailExposure = map[string]exposure{
	"kind":        exposeFull,
	"tier":        exposeFull,
	"error":       exposeFull,
	"direction":   exposeFull,
	"fingerprint": exposeFull,
	"asset":       exposeFull,
	"recipient":   exposeShort,
	"holder":      exposeShort,
	"spender":     exposeShort,
	"from":        exposeShort,
	"to":          exposeShort,
}

// MaskField renders one call detail under the logging policy for key. Empty
// values pass through.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" {
		return slog.String(key, value)
	}
	switch detailExposure[strings.ToLower(strings.TrimSpace(key))] {
	case exposeFull:
		return slog.String(key, value)
	case exposeShort:
		return slog.String(key, abbreviate(value))
	default:
		return slog.String(key, RedactedValue)
	}
}

// abbreviate keeps the 0x prefix, the first four and the last four hex digits.
func abbreviate(account string) string {
	if len(account) <= 12 {
		return account
	}
	return account[:6] + ".." + account[len(account)-4:]
}
