package discount

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"studiobook/internal/models"
	"studiobook/internal/money"
)

// Type is the kind of reduction a code grants.
type Type string

const (
	TypePercentage Type = "percentage"
	TypeFixed      Type = "fixed"
)

var ErrInvalidCode = errors.New("invalid discount code definition")

// Code is a validated discount code. Value holds basis points for TypePercentage
// and pence for TypeFixed. Nil optional fields mean "no restriction".
type Code struct {
	Code                 string
	Type                 Type
	Value                int64
	MinBookingValuePence *int64
	MaxDiscountPence     *int64
	UsageLimit           *int
	UsageCount           int
	ExclusiveEmail       *string
	ValidFrom            time.Time
	ValidUntil           *time.Time
	ApplicableStudios    []models.Studio
	IsActive             bool
}

// Normalize canonicalises a user-entered code for lookup.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Description renders the advertised reduction, e.g. "15% off" or "£10.00 off".
func (c Code) Description() string {
	if c.Type == TypePercentage {
		return money.FormatPercent(c.Value) + " off"
	}
	return money.FormatGBP(c.Value) + " off"
}

// AppliesTo reports whether the code may be used for studio.
func (c Code) AppliesTo(studio models.Studio) bool {
	return len(c.ApplicableStudios) == 0 || slices.Contains(c.ApplicableStudios, studio)
}

// Record is the loosely typed form of a code as stored in YAML or SQLite. Value is a
// percentage (10 means 10%) or an amount in pounds (10 means £10.00).
type Record struct {
	Code                 string     `yaml:"code" json:"code"`
	Type                 string     `yaml:"type" json:"type"`
	Value                float64    `yaml:"value" json:"value"`
	MinBookingValuePence *int64     `yaml:"min_booking_value_pence,omitempty" json:"min_booking_value_pence,omitempty"`
	MaxDiscountPence     *int64     `yaml:"max_discount_pence,omitempty" json:"max_discount_pence,omitempty"`
	UsageLimit           *int       `yaml:"usage_limit,omitempty" json:"usage_limit,omitempty"`
	UsageCount           int        `yaml:"usage_count" json:"usage_count"`
	ExclusiveEmail       *string    `yaml:"exclusive_email,omitempty" json:"exclusive_email,omitempty"`
	ValidFrom            time.Time  `yaml:"valid_from" json:"valid_from"`
	ValidUntil           *time.Time `yaml:"valid_until,omitempty" json:"valid_until,omitempty"`
	ApplicableStudios    []string   `yaml:"applicable_studios,omitempty" json:"applicable_studios,omitempty"`
	IsActive             bool       `yaml:"is_active" json:"is_active"`
}

// Parse validates r and converts it to a Code.
func (r Record) Parse() (Code, error) {
	code := Normalize(r.Code)
	if code == "" {
		return Code{}, fmt.Errorf("%w: empty code", ErrInvalidCode)
	}

	c := Code{
		Code:                 code,
		Type:                 Type(strings.ToLower(strings.TrimSpace(r.Type))),
		MinBookingValuePence: r.MinBookingValuePence,
		MaxDiscountPence:     r.MaxDiscountPence,
		UsageLimit:           r.UsageLimit,
		UsageCount:           r.UsageCount,
		ValidFrom:            r.ValidFrom,
		ValidUntil:           r.ValidUntil,
		IsActive:             r.IsActive,
	}

	switch c.Type {
	case TypePercentage:
		if r.Value <= 0 || r.Value > 100 {
			return Code{}, fmt.Errorf("%w: %s percentage %v out of range", ErrInvalidCode, code, r.Value)
		}
		c.Value = money.PercentToBasisPoints(r.Value)
	case TypeFixed:
		if r.Value <= 0 {
			return Code{}, fmt.Errorf("%w: %s amount must be positive", ErrInvalidCode, code)
		}
		c.Value = money.FromMajor(r.Value)
	default:
		return Code{}, fmt.Errorf("%w: %s has unknown type %q", ErrInvalidCode, code, r.Type)
	}

	if r.MinBookingValuePence != nil && *r.MinBookingValuePence < 0 {
		return Code{}, fmt.Errorf("%w: %s minimum booking value is negative", ErrInvalidCode, code)
	}
	if r.MaxDiscountPence != nil && *r.MaxDiscountPence < 0 {
		return Code{}, fmt.Errorf("%w: %s maximum discount is negative", ErrInvalidCode, code)
	}
	if r.UsageLimit != nil && *r.UsageLimit < 0 {
		return Code{}, fmt.Errorf("%w: %s usage limit is negative", ErrInvalidCode, code)
	}
	if r.UsageCount < 0 {
		return Code{}, fmt.Errorf("%w: %s usage count is negative", ErrInvalidCode, code)
	}
	if r.ValidUntil != nil && r.ValidUntil.Before(r.ValidFrom) {
		return Code{}, fmt.Errorf("%w: %s expires before it starts", ErrInvalidCode, code)
	}
	if r.ExclusiveEmail != nil {
		if email := strings.TrimSpace(*r.ExclusiveEmail); email != "" {
			c.ExclusiveEmail = &email
		}
	}
	for _, s := range r.ApplicableStudios {
		c.ApplicableStudios = append(c.ApplicableStudios, models.Studio(strings.TrimSpace(s)))
	}
	return c, nil
}

// Table is an in-memory code index keyed by normalised code.
type Table map[string]Code

// NewTable indexes codes, rejecting duplicates.
func NewTable(codes []Code) (Table, error) {
	t := make(Table, len(codes))
	for _, c := range codes {
		key := Normalize(c.Code)
		if _, dup := t[key]; dup {
			return nil, fmt.Errorf("%w: duplicate code %s", ErrInvalidCode, key)
		}
		t[key] = c
	}
	return t, nil
}

// Find implements Source.
func (t Table) Find(code string) (Code, bool) {
	c, ok := t[Normalize(code)]
	return c, ok
}
