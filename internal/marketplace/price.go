package marketplace

import (
	"strings"

	"github.com/shopspring/decimal"
)

var nanoThreshold = decimal.NewFromInt(1000)
var nanoDivisor = decimal.NewFromInt(1_000_000_000)

// cleanPriceString strips the "TON" unit token and thousands separators
// the marketplaces sometimes embed in string-typed price fields, per
// spec §4.1 ("String prices are parsed after stripping 'TON' tokens and
// commas").
func cleanPriceString(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "TON", "")
	s = strings.ReplaceAll(s, "ton", "")
	return strings.TrimSpace(s)
}

// NormalizePrice applies the nano-TON heuristic from spec §4.1: any raw
// numeric price over 1000 is assumed to be expressed in nanoTON and is
// divided down to TON.
func NormalizePrice(raw decimal.Decimal) decimal.Decimal {
	if raw.GreaterThan(nanoThreshold) {
		return raw.Div(nanoDivisor)
	}
	return raw
}

// ParsePrice parses a raw adapter field (number or string) into a
// normalized TON decimal. ok is false when the value cannot be parsed.
func ParsePrice(v any) (decimal.Decimal, bool) {
	d, ok := toDecimal(v)
	if !ok {
		return decimal.Zero, false
	}
	return NormalizePrice(d), true
}
