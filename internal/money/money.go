// Package money holds integer minor-unit helpers shared by the pricing engine.
package money

import (
	"fmt"
	"math"
	"strings"
)

// BasisPointsPerUnit is the number of basis points in 100%.
const BasisPointsPerUnit = 10000

// Pence is an amount in minor currency units.
type Pence = int64

// MulBasisPointsHalfEven returns round(amount * bp / 10000), ties to even.
// Both arguments are expected to be non-negative.
func MulBasisPointsHalfEven(amount Pence, bp int64) Pence {
	num := amount * bp
	q, r := num/BasisPointsPerUnit, num%BasisPointsPerUnit
	switch twice := 2 * r; {
	case twice > BasisPointsPerUnit:
		q++
	case twice == BasisPointsPerUnit && q%2 != 0:
		q++
	}
	return q
}

// MulBasisPointsHalfUp returns round(amount * bp / 10000), ties away from zero.
// Both arguments are expected to be non-negative.
func MulBasisPointsHalfUp(amount Pence, bp int64) Pence {
	num := amount * bp
	q, r := num/BasisPointsPerUnit, num%BasisPointsPerUnit
	if 2*r >= BasisPointsPerUnit {
		q++
	}
	return q
}

// FromMajor converts a whole-currency value such as 10.5 to pence, rounding half away from zero.
// Only used when parsing catalog data.
func FromMajor(v float64) Pence {
	return int64(math.Round(v * 100))
}

// PercentToBasisPoints converts a percentage such as 12.5 to basis points (1250).
// Only used when parsing catalog data.
func PercentToBasisPoints(v float64) int64 {
	return int64(math.Round(v * 100))
}

// FormatGBP renders pence as "£10.00".
func FormatGBP(p Pence) string {
	sign := ""
	if p < 0 {
		sign = "-"
		p = -p
	}
	return fmt.Sprintf("%s£%d.%02d", sign, p/100, p%100)
}

// FormatPercent renders basis points as "15%" or "12.5%".
func FormatPercent(bp int64) string {
	whole, frac := bp/100, bp%100
	if frac == 0 {
		return fmt.Sprintf("%d%%", whole)
	}
	s := strings.TrimRight(fmt.Sprintf("%02d", frac), "0")
	return fmt.Sprintf("%d.%s%%", whole, s)
}
