// Package surcharge implements the evening/weekend price uplift.
package surcharge

import (
	"fmt"
	"time"

	"studiobook/internal/money"
)

const (
	DefaultRateBasisPoints  = 1500 // 15%
	DefaultEveningStartHour = 18
)

// Rules decides when the uplift applies and by how much.
type Rules struct {
	RateBasisPoints  int64
	EveningStartHour int
	WeekendDays      []time.Weekday
}

// DefaultRules applies 15% on Saturdays, Sundays and from 18:00 on weekdays.
func DefaultRules() Rules {
	return Rules{
		RateBasisPoints:  DefaultRateBasisPoints,
		EveningStartHour: DefaultEveningStartHour,
		WeekendDays:      []time.Weekday{time.Saturday, time.Sunday},
	}
}

// Validate checks rate and hour ranges.
func (r Rules) Validate() error {
	if r.RateBasisPoints < 0 {
		return fmt.Errorf("surcharge rate must not be negative, got %d bp", r.RateBasisPoints)
	}
	if r.EveningStartHour < 0 || r.EveningStartHour > 24 {
		return fmt.Errorf("evening start hour %d out of range", r.EveningStartHour)
	}
	return nil
}

// IsWeekend reports whether date falls on a configured weekend day.
func (r Rules) IsWeekend(date time.Time) bool {
	wd := date.Weekday()
	for _, d := range r.WeekendDays {
		if d == wd {
			return true
		}
	}
	return false
}

// Qualifies reports whether a booking on date starting at startHour gets the uplift.
func (r Rules) Qualifies(date time.Time, startHour int) bool {
	return r.IsWeekend(date) || startHour >= r.EveningStartHour
}

// Result is the outcome of Apply.
type Result struct {
	FinalPricePence  int64 `json:"final_price_pence"`
	SurchargeApplied bool  `json:"surcharge_applied"`
	SurchargePence   int64 `json:"surcharge_amount_pence"`
}

// Apply uplifts basePricePence when the booking qualifies. The uplift is rounded half to even.
// Apply must be given the original base price: it has no way to tell an already uplifted amount.
func (r Rules) Apply(basePricePence int64, date time.Time, startHour int) Result {
	if !r.Qualifies(date, startHour) {
		return Result{FinalPricePence: basePricePence}
	}
	amount := money.MulBasisPointsHalfEven(basePricePence, r.RateBasisPoints)
	return Result{
		FinalPricePence:  basePricePence + amount,
		SurchargeApplied: true,
		SurchargePence:   amount,
	}
}

// Label is the human readable breakdown label, e.g. "Evening/weekend surcharge (15%)".
func (r Rules) Label() string {
	return fmt.Sprintf("Evening/weekend surcharge (%s)", money.FormatPercent(r.RateBasisPoints))
}
