package model

import (
	"fmt"
	"math/bits"
	"strconv"
)

// BasisPointsDenominator is the fee fraction denominator (10000 = 100%).
const BasisPointsDenominator = 10000

// Amount is a value in minor currency units.
type Amount uint64

// String formats the amount as a decimal integer.
func (a Amount) String() string {
	return strconv.FormatUint(uint64(a), 10)
}

// ParseAmount parses a decimal minor-unit amount.
func ParseAmount(s string) (Amount, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return Amount(v), nil
}

// MulAmount returns qty*price, failing with ErrInvalidQuantity on overflow.
func MulAmount(qty uint64, price Amount) (Amount, error) {
	hi, lo := bits.Mul64(qty, uint64(price))
	if hi != 0 {
		return 0, fmt.Errorf("%w: %d x %d overflows", ErrInvalidQuantity, qty, price)
	}
	return Amount(lo), nil
}

// AddAmount returns a+b, failing with ErrInvalidQuantity on overflow.
func AddAmount(a, b Amount) (Amount, error) {
	sum, carry := bits.Add64(uint64(a), uint64(b), 0)
	if carry != 0 {
		return 0, fmt.Errorf("%w: %d + %d overflows", ErrInvalidQuantity, a, b)
	}
	return Amount(sum), nil
}

// SplitFee splits payment into a fee of floor(payment*bps/10000) and the
// remainder. bps above the denominator is clamped to 100%.
func SplitFee(payment Amount, bps uint32) (fee, rest Amount) {
	if bps > BasisPointsDenominator {
		bps = BasisPointsDenominator
	}
	hi, lo := bits.Mul64(uint64(payment), uint64(bps))
	q, _ := bits.Div64(hi, lo, BasisPointsDenominator)
	fee = Amount(q)
	return fee, payment - fee
}
