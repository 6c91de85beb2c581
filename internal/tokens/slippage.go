package tokens

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// SlippagePresets are the quick-pick tolerances in basis points (0.5%, 1%, 3%).
var SlippagePresets = []int{50, 100, 300}

// HighSlippageBps is the threshold above which callers should warn the user.
const HighSlippageBps = 500

// MaxBps is the largest value the Jupiter API accepts for slippageBps.
const MaxBps = 65535

func IsHighSlippage(bps int) bool { return bps > HighSlippageBps }

// ParseSlippagePercent converts "0.5" or "0.5%" into basis points.
func ParseSlippagePercent(s string) (int, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return 0, fmt.Errorf("invalid slippage %q", s)
	}
	bps := d.Mul(decimal.NewFromInt(100)).Round(0)
	if bps.IsZero() || bps.GreaterThan(decimal.NewFromInt(MaxBps)) {
		return 0, fmt.Errorf("slippage %q out of range", s)
	}
	return int(bps.IntPart()), nil
}

// FormatSlippage renders basis points as a percentage ("0.5%").
func FormatSlippage(bps int) string {
	return decimal.New(int64(bps), -2).String() + "%"
}
