package parser

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var errEmptyAmount = errors.New("empty amount")

// ParseAmount converts a captured amount such as "1,500.00" to a number.
// Thousands separators and stray whitespace are removed before parsing.
func ParseAmount(raw string) (float64, error) {
	cleaned := strings.Map(func(r rune) rune {
		if r == ',' || r == ' ' || r == '\u00a0' {
			return -1
		}
		return r
	}, strings.TrimSpace(raw))
	cleaned = strings.TrimSuffix(cleaned, ".")
	if cleaned == "" {
		return 0, errEmptyAmount
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", raw, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("parse amount %q: negative", raw)
	}
	f := d.InexactFloat64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("parse amount %q: not finite", raw)
	}
	return f, nil
}

// FormatAmount renders an amount with two decimals, e.g. "1500.00".
func FormatAmount(amount float64) string {
	return decimal.NewFromFloat(amount).StringFixed(2)
}
