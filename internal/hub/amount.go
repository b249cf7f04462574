package hub

import (
	"strings"

	"github.com/shopspring/decimal"
)

// NormalizeAmount renders a decimal-like string without trailing zeros or a
// trailing decimal point ("100.00" -> "100", "100.50" -> "100.5"). Input that
// does not parse as a decimal is returned verbatim.
func NormalizeAmount(raw string) string {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	return d.String()
}
