package tokens

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("amount must be a positive number")

// ToBaseUnits converts a UI amount ("1.5") to the mint's smallest unit, truncating
// digits beyond the mint's precision.
func ToBaseUnits(amount string, decimals int32) (uint64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return 0, ErrInvalidAmount
	}

	raw := d.Shift(decimals).Floor()
	if raw.IsZero() {
		return 0, fmt.Errorf("%w: below the smallest unit", ErrInvalidAmount)
	}
	if !raw.BigInt().IsUint64() {
		return 0, fmt.Errorf("%w: exceeds uint64", ErrInvalidAmount)
	}
	return raw.BigInt().Uint64(), nil
}

// FormatBaseUnits renders a smallest-unit amount with exactly decimals fractional digits.
func FormatBaseUnits(raw uint64, decimals int32) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(raw), -decimals).StringFixed(decimals)
}

// FormatBaseUnitsString is FormatBaseUnits for the integer strings returned by Jupiter.
func FormatBaseUnitsString(raw string, decimals int32) (string, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid base unit amount %q: %w", raw, err)
	}
	return FormatBaseUnits(n, decimals), nil
}
