package discount

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studiobook/internal/models"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func baseCode() Code {
	return Code{
		Code:      "SPRING10",
		Type:      TypePercentage,
		Value:     1000,
		ValidFrom: now.Add(-24 * time.Hour),
		IsActive:  true,
	}
}

func bookingContext(total int64) Context {
	return Context{Email: "jo@example.com", Studio: "studio-1", BookingTotalPence: total, Now: now}
}

func TestEvaluate_Reasons(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Code)
		ctx    Context
		want   error
	}{
		{"inactive", func(c *Code) { c.IsActive = false }, bookingContext(17250), ErrInactive},
		{"not yet active", func(c *Code) { c.ValidFrom = now.Add(time.Minute) }, bookingContext(17250), ErrNotYetActive},
		{"expired", func(c *Code) { c.ValidUntil = ptr(now.Add(-time.Second)) }, bookingContext(17250), ErrExpired},
		{"usage limit reached", func(c *Code) { c.UsageLimit = ptr(5); c.UsageCount = 5 }, bookingContext(17250), ErrUsageLimitReached},
		{"email mismatch", func(c *Code) { c.ExclusiveEmail = ptr("vip@example.com") }, bookingContext(17250), ErrEmailMismatch},
		{"studio not applicable", func(c *Code) { c.ApplicableStudios = []models.Studio{"studio-2"} }, bookingContext(17250), ErrStudioNotApplicable},
		{"below minimum", func(c *Code) { c.MinBookingValuePence = ptr(int64(20000)) }, bookingContext(17250), ErrBelowMinimum},
		{
			"inactive wins over expired",
			func(c *Code) { c.IsActive = false; c.ValidUntil = ptr(now.Add(-time.Hour)) },
			bookingContext(17250), ErrInactive,
		},
		{
			"expired wins over usage",
			func(c *Code) { c.ValidUntil = ptr(now.Add(-time.Hour)); c.UsageLimit = ptr(0) },
			bookingContext(17250), ErrExpired,
		},
		{
			"email checked before studio",
			func(c *Code) { c.ExclusiveEmail = ptr("vip@example.com"); c.ApplicableStudios = []models.Studio{"studio-2"} },
			bookingContext(17250), ErrEmailMismatch,
		},
		{
			"studio checked before minimum",
			func(c *Code) { c.ApplicableStudios = []models.Studio{"studio-2"}; c.MinBookingValuePence = ptr(int64(99999)) },
			bookingContext(17250), ErrStudioNotApplicable,
		},
		{"valid until now is still valid", func(c *Code) { c.ValidUntil = ptr(now) }, bookingContext(17250), nil},
		{"valid from now is active", func(c *Code) { c.ValidFrom = now }, bookingContext(17250), nil},
		{"email case-insensitive", func(c *Code) { c.ExclusiveEmail = ptr("Jo@Example.COM") }, bookingContext(17250), nil},
		{"listed studio", func(c *Code) { c.ApplicableStudios = []models.Studio{"studio-2", "studio-1"} }, bookingContext(17250), nil},
		{"exactly minimum", func(c *Code) { c.MinBookingValuePence = ptr(int64(17250)) }, bookingContext(17250), nil},
		{"usage below limit", func(c *Code) { c.UsageLimit = ptr(5); c.UsageCount = 4 }, bookingContext(17250), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := baseCode()
			tt.mutate(&code)

			out, err := Evaluate(code, tt.ctx)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
				assert.Zero(t, out)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "SPRING10", out.Code)
		})
	}
}

func TestEvaluate_Amounts(t *testing.T) {
	tests := []struct {
		name     string
		code     Code
		total    int64
		want     int64
		wantDesc string
	}{
		{"ten percent", baseCode(), 17250, 1725, "10% off"},
		{"ten percent capped", withMax(baseCode(), 1000), 17250, 1000, "10% off"},
		{"half rounds away from zero", withValue(baseCode(), 5000), 1, 1, "50% off"},
		{"fractional percent", withValue(baseCode(), 1250), 1000, 125, "12.5% off"},
		{"fixed", fixed(1000), 17250, 1000, "£10.00 off"},
		{"fixed capped by max", withMax(fixed(1000), 500), 17250, 500, "£10.00 off"},
		{"fixed capped by total", fixed(5000), 3000, 3000, "£50.00 off"},
		{"hundred percent", withValue(baseCode(), 10000), 17250, 17250, "100% off"},
		{"zero total", baseCode(), 0, 0, "10% off"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Evaluate(tt.code, bookingContext(tt.total))
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.DiscountPence)
			assert.Equal(t, tt.wantDesc, out.Description)
		})
	}
}

func TestAmount_NeverExceedsCaps(t *testing.T) {
	codes := []Code{
		baseCode(),
		withValue(baseCode(), 10000),
		withMax(withValue(baseCode(), 3333), 700),
		fixed(1),
		fixed(25000),
		withMax(fixed(25000), 999),
	}
	for _, c := range codes {
		for total := int64(0); total <= 30000; total += 137 {
			got := Amount(c, total)
			assert.GreaterOrEqual(t, got, int64(0))
			assert.LessOrEqual(t, got, total, fmt.Sprintf("%s on %d", c.Description(), total))
			if c.MaxDiscountPence != nil {
				assert.LessOrEqual(t, got, *c.MaxDiscountPence)
			}
		}
	}
}

func TestValidator_Validate(t *testing.T) {
	table, err := NewTable([]Code{baseCode(), fixed(1000)})
	require.NoError(t, err)
	v := NewValidator(table)

	out, err := v.Validate("  spring10 ", bookingContext(17250))
	require.NoError(t, err)
	assert.Equal(t, Outcome{Code: "SPRING10", DiscountPence: 1725, Description: "10% off"}, out)

	_, err = v.Validate("NOPE", bookingContext(17250))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "not_found", ReasonCode(err))

	_, err = NewValidator(nil).Validate("SPRING10", bookingContext(17250))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewTable_RejectsDuplicates(t *testing.T) {
	c := baseCode()
	lower := c
	lower.Code = "spring10"

	_, err := NewTable([]Code{c, lower})
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestReasonCode(t *testing.T) {
	assert.Equal(t, "expired", ReasonCode(fmt.Errorf("wrap: %w", ErrExpired)))
	assert.Equal(t, "below_minimum", ReasonCode(ErrBelowMinimum))
	assert.Equal(t, "", ReasonCode(assert.AnError))
	assert.Equal(t, "", ReasonCode(nil))
}

func TestRecord_Parse(t *testing.T) {
	until := now.Add(30 * 24 * time.Hour)

	c, err := Record{
		Code:              " spring10 ",
		Type:              "Percentage",
		Value:             12.5,
		MaxDiscountPence:  ptr(int64(1000)),
		ExclusiveEmail:    ptr(" "),
		ValidFrom:         now,
		ValidUntil:        &until,
		ApplicableStudios: []string{"studio-1"},
		IsActive:          true,
	}.Parse()
	require.NoError(t, err)
	assert.Equal(t, "SPRING10", c.Code)
	assert.Equal(t, TypePercentage, c.Type)
	assert.Equal(t, int64(1250), c.Value)
	assert.Nil(t, c.ExclusiveEmail)
	assert.Equal(t, []models.Studio{"studio-1"}, c.ApplicableStudios)

	f, err := Record{Code: "TENOFF", Type: "fixed", Value: 10, ValidFrom: now, IsActive: true}.Parse()
	require.NoError(t, err)
	assert.Equal(t, int64(1000), f.Value)
	assert.Nil(t, f.ApplicableStudios)

	bad := []Record{
		{Code: "", Type: "fixed", Value: 10},
		{Code: "X", Type: "bogus", Value: 10},
		{Code: "X", Type: "percentage", Value: 120},
		{Code: "X", Type: "fixed", Value: 0},
		{Code: "X", Type: "fixed", Value: 5, ValidFrom: now, ValidUntil: ptr(now.Add(-time.Hour))},
		{Code: "X", Type: "fixed", Value: 5, UsageLimit: ptr(-1)},
	}
	for _, r := range bad {
		_, err := r.Parse()
		assert.ErrorIs(t, err, ErrInvalidCode, r.Code+" "+r.Type)
	}
}

func withMax(c Code, maxPence int64) Code {
	c.MaxDiscountPence = &maxPence
	return c
}

func withValue(c Code, bp int64) Code {
	c.Value = bp
	return c
}

func fixed(pence int64) Code {
	c := baseCode()
	c.Code = "TENOFF"
	c.Type = TypeFixed
	c.Value = pence
	return c
}
