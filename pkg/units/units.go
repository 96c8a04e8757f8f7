// Package units converts between human decimal strings and integer base units.
package units

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseUnits converts a decimal string such as "1.5" into base units with the
// given number of decimals. Exponent notation and fractions longer than
// decimals are rejected.
func ParseUnits(amount string, decimals uint8) (*big.Int, error) {
	s := strings.TrimSpace(amount)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	if strings.ContainsAny(s, "eE") {
		return nil, fmt.Errorf("invalid amount format: %s", amount)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %s", amount)
	}

	shifted := d.Shift(int32(decimals))
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("amount %s has more than %d decimals", amount, decimals)
	}
	return shifted.BigInt(), nil
}

// FormatUnits renders base units as a decimal string. The fractional part is
// trimmed of trailing zeros but always keeps one digit, e.g. "1.0".
func FormatUnits(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0.0"
	}

	s := decimal.NewFromBigInt(value, -int32(decimals)).String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// IsZero reports whether amount is empty or parses to zero
func IsZero(amount string) bool {
	s := strings.TrimSpace(amount)
	if s == "" {
		return true
	}
	d, err := decimal.NewFromString(s)
	return err == nil && d.IsZero()
}
