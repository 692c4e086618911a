// Package money holds all conversion between the shop currency's major
// unit (sum) and the minor unit (tiyin, 1/100 sum) used by the payment
// gateway and the fiscal system. Every boundary crossing goes through this
// package so the ratio lives in exactly one place.
package money

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Amount is a monetary value in tiyin.
type Amount int64

const tiyinPerSum = 100

// FromSum converts a whole-sum value to tiyin.
func FromSum(sum int64) Amount {
	return Amount(sum * tiyinPerSum)
}

// Sum converts back to whole sums. Amounts held by the core are always
// produced via FromSum, so the division is exact.
func (a Amount) Sum() int64 {
	return int64(a) / tiyinPerSum
}

// Mul scales a per-unit amount by a quantity.
func (a Amount) Mul(quantity int) Amount {
	return a * Amount(quantity)
}

// ParseSum parses an admin-entered price in sums, e.g. "50000".
func ParseSum(s string) (Amount, error) {
	sum, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid sum value %q: %w", s, err)
	}
	if sum <= 0 {
		return 0, fmt.Errorf("sum value must be positive, got %d", sum)
	}
	return FromSum(sum), nil
}

// ParseAmount parses a gateway-supplied amount, denominated in sums and
// possibly carrying a decimal fraction ("100000" or "100000.00"), into
// tiyin.
func ParseAmount(s string) (Amount, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if f < 0 {
		return 0, fmt.Errorf("amount must not be negative, got %s", s)
	}
	return Amount(math.Round(f * tiyinPerSum)), nil
}

// FormatSum renders the amount in sums for user-facing messages.
func (a Amount) FormatSum() string {
	if int64(a)%tiyinPerSum == 0 {
		return strconv.FormatInt(a.Sum(), 10)
	}
	return fmt.Sprintf("%d.%02d", int64(a)/tiyinPerSum, int64(a)%tiyinPerSum)
}

// String renders the raw tiyin value, the form the gateway protocol uses.
func (a Amount) String() string {
	return strconv.FormatInt(int64(a), 10)
}
