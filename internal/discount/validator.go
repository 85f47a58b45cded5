// Package discount evaluates discount codes against a booking.
package discount

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"studiobook/internal/models"
	"studiobook/internal/money"
)

// Rejection reasons, in the order they are checked.
var (
	ErrNotFound            = errors.New("discount code not found")
	ErrInactive            = errors.New("discount code is inactive")
	ErrNotYetActive        = errors.New("discount code is not yet active")
	ErrExpired             = errors.New("discount code has expired")
	ErrUsageLimitReached   = errors.New("discount code usage limit reached")
	ErrEmailMismatch       = errors.New("discount code is reserved for another email")
	ErrStudioNotApplicable = errors.New("discount code does not apply to this studio")
	ErrBelowMinimum        = errors.New("booking total is below the code minimum")
)

var reasonCodes = []struct {
	err  error
	code string
}{
	{ErrNotFound, "not_found"},
	{ErrInactive, "inactive"},
	{ErrNotYetActive, "not_yet_active"},
	{ErrExpired, "expired"},
	{ErrUsageLimitReached, "usage_limit_reached"},
	{ErrEmailMismatch, "email_mismatch"},
	{ErrStudioNotApplicable, "studio_not_applicable"},
	{ErrBelowMinimum, "below_minimum"},
}

// ReasonCode maps a rejection to a stable machine readable code. It returns "" for
// errors that are not rejections.
func ReasonCode(err error) string {
	for _, r := range reasonCodes {
		if errors.Is(err, r.err) {
			return r.code
		}
	}
	return ""
}

// Source looks codes up by their normalised value.
type Source interface {
	Find(code string) (Code, bool)
}

// Context describes the booking a code is being applied to.
type Context struct {
	Email             string
	Studio            models.Studio
	BookingTotalPence int64
	Now               time.Time
}

// Outcome is an accepted code and the reduction it grants.
type Outcome struct {
	Code          string `json:"code"`
	DiscountPence int64  `json:"discount_pence"`
	Description   string `json:"description"`
}

// Validator checks codes from a Source. It never changes usage counts.
type Validator struct {
	source Source
}

func NewValidator(source Source) *Validator {
	return &Validator{source: source}
}

// Validate looks code up and evaluates it against c.
func (v *Validator) Validate(code string, c Context) (Outcome, error) {
	if v.source == nil {
		return Outcome{}, fmt.Errorf("%w: %s", ErrNotFound, Normalize(code))
	}
	found, ok := v.source.Find(code)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", ErrNotFound, Normalize(code))
	}
	return Evaluate(found, c)
}

// Evaluate runs the eligibility checks on a known code. The first failing check decides
// the error. On success the discount is capped by MaxDiscountPence and then by the total.
func Evaluate(code Code, c Context) (Outcome, error) {
	switch {
	case !code.IsActive:
		return Outcome{}, fmt.Errorf("%w: %s", ErrInactive, code.Code)
	case c.Now.Before(code.ValidFrom):
		return Outcome{}, fmt.Errorf("%w: %s starts %s", ErrNotYetActive, code.Code, code.ValidFrom.Format(time.RFC3339))
	case code.ValidUntil != nil && c.Now.After(*code.ValidUntil):
		return Outcome{}, fmt.Errorf("%w: %s ended %s", ErrExpired, code.Code, code.ValidUntil.Format(time.RFC3339))
	case code.UsageLimit != nil && code.UsageCount >= *code.UsageLimit:
		return Outcome{}, fmt.Errorf("%w: %s used %d of %d", ErrUsageLimitReached, code.Code, code.UsageCount, *code.UsageLimit)
	case code.ExclusiveEmail != nil && !strings.EqualFold(strings.TrimSpace(c.Email), *code.ExclusiveEmail):
		return Outcome{}, fmt.Errorf("%w: %s", ErrEmailMismatch, code.Code)
	case !code.AppliesTo(c.Studio):
		return Outcome{}, fmt.Errorf("%w: %s not valid for %s", ErrStudioNotApplicable, code.Code, c.Studio)
	case code.MinBookingValuePence != nil && c.BookingTotalPence < *code.MinBookingValuePence:
		return Outcome{}, fmt.Errorf("%w: %s needs %s", ErrBelowMinimum, code.Code, money.FormatGBP(*code.MinBookingValuePence))
	}

	return Outcome{
		Code:          code.Code,
		DiscountPence: Amount(code, c.BookingTotalPence),
		Description:   code.Description(),
	}, nil
}

// Amount computes the capped discount of code on total. It is never negative and never
// exceeds total or MaxDiscountPence.
func Amount(code Code, total int64) int64 {
	if total <= 0 {
		return 0
	}

	var amount int64
	if code.Type == TypePercentage {
		amount = money.MulBasisPointsHalfUp(total, code.Value)
	} else {
		amount = code.Value
	}

	if code.MaxDiscountPence != nil && amount > *code.MaxDiscountPence {
		amount = *code.MaxDiscountPence
	}
	return max(0, min(amount, total))
}
