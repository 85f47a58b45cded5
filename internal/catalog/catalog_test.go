package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studiobook/internal/discount"
	"studiobook/internal/models"
	"studiobook/internal/pricing"
)

func sample(t *testing.T) *Catalog {
	t.Helper()
	c, err := New(
		[]Studio{{ID: "studio-1", Name: "Studio 1"}, {ID: "studio-2", Name: "Studio 2"}},
		[]pricing.PricingPackage{
			{Studio: "studio-1", DurationLabel: "1 hour", DurationHours: 1, BasePricePence: 8000},
			{Studio: "studio-1", DurationLabel: "2 hours", DurationHours: 2, BasePricePence: 15000},
			{Studio: "studio-2", DurationLabel: "Half day", DurationHours: 4, BasePricePence: 26000},
		},
		[]pricing.AddOn{{ID: "backdrop", Name: "Paper backdrop", PricePence: 1500, MaxQuantity: 3}},
		[]discount.Code{{Code: "SPRING10", Type: discount.TypePercentage, Value: 1000, IsActive: true}},
	)
	require.NoError(t, err)
	return c
}

func TestCatalog_Lookups(t *testing.T) {
	c := sample(t)

	p, err := c.Package("studio-1", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(15000), p.BasePricePence)

	_, err = c.Package("studio-1", 3)
	assert.ErrorIs(t, err, ErrPackageNotFound)

	_, err = c.Package("studio-9", 1)
	assert.ErrorIs(t, err, ErrUnknownStudio)

	assert.Len(t, c.PackagesFor("studio-1"), 2)
	_, ok := c.Studio("studio-2")
	assert.True(t, ok)

	_, ok = c.Composer().AddOn("backdrop")
	assert.True(t, ok)

	out, err := c.Discounts().Validate("spring10", discount.Context{Studio: "studio-1", BookingTotalPence: 15000, Now: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, int64(1500), out.DiscountPence)
}

func TestNew_Invalid(t *testing.T) {
	studios := []Studio{{ID: "studio-1"}}
	pkg := pricing.PricingPackage{Studio: "studio-1", DurationLabel: "1 hour", DurationHours: 1, BasePricePence: 8000}

	tests := []struct {
		name     string
		studios  []Studio
		packages []pricing.PricingPackage
		addOns   []pricing.AddOn
		codes    []discount.Code
	}{
		{name: "no studios"},
		{name: "duplicate studio", studios: []Studio{{ID: "a"}, {ID: "a"}}},
		{name: "package for unknown studio", studios: studios,
			packages: []pricing.PricingPackage{{Studio: "x", DurationHours: 1, BasePricePence: 1}}},
		{name: "duplicate package duration", studios: studios, packages: []pricing.PricingPackage{pkg, pkg}},
		{name: "bad add-on", studios: studios, addOns: []pricing.AddOn{{ID: "a", MaxQuantity: 0}}},
		{name: "code for unknown studio", studios: studios,
			codes: []discount.Code{{Code: "X", ApplicableStudios: []models.Studio{"nope"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.studios, tt.packages, tt.addOns, tt.codes)
			assert.ErrorIs(t, err, ErrInvalidCatalog)
		})
	}
}

func TestHolder(t *testing.T) {
	h := NewHolder(nil)
	assert.Nil(t, h.Load())
	_, ok := h.CalendarID("studio-1")
	assert.False(t, ok)

	c, err := New([]Studio{{ID: "studio-1", CalendarID: "cal-1"}, {ID: "studio-2"}}, nil, nil, nil)
	require.NoError(t, err)
	h.Store(c)

	id, ok := h.CalendarID("studio-1")
	assert.True(t, ok)
	assert.Equal(t, "cal-1", id)

	_, ok = h.CalendarID("studio-2")
	assert.False(t, ok)
}
