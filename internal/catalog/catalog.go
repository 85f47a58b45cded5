// Package catalog holds the typed, validated price list: studios, packages, add-ons and
// discount codes. A Catalog is immutable once built.
package catalog

import (
	"errors"
	"fmt"
	"math"

	"studiobook/internal/discount"
	"studiobook/internal/models"
	"studiobook/internal/pricing"
)

var (
	ErrInvalidCatalog  = errors.New("invalid catalog")
	ErrUnknownStudio   = errors.New("unknown studio")
	ErrPackageNotFound = errors.New("no package for requested duration")
)

// Studio describes a bookable room.
type Studio struct {
	ID          models.Studio `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	CalendarID  string        `json:"-"`
}

// Catalog is a consistent snapshot of everything that can be sold.
type Catalog struct {
	Studios  []Studio
	Packages []pricing.PricingPackage
	AddOns   []pricing.AddOn
	Codes    []discount.Code

	composer *pricing.Composer
	codes    discount.Table
}

// New validates the parts and indexes them.
func New(studios []Studio, packages []pricing.PricingPackage, addOns []pricing.AddOn, codes []discount.Code) (*Catalog, error) {
	if len(studios) == 0 {
		return nil, fmt.Errorf("%w: no studios defined", ErrInvalidCatalog)
	}

	known := make(map[models.Studio]bool, len(studios))
	for i, s := range studios {
		if s.ID == "" {
			return nil, fmt.Errorf("%w: studio[%d]: id is required", ErrInvalidCatalog, i)
		}
		if known[s.ID] {
			return nil, fmt.Errorf("%w: studio[%d]: duplicate id %s", ErrInvalidCatalog, i, s.ID)
		}
		known[s.ID] = true
	}

	type pkgKey struct {
		studio  models.Studio
		minutes int64
	}
	seen := make(map[pkgKey]bool, len(packages))
	for i, p := range packages {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("%w: package[%d]: %w", ErrInvalidCatalog, i, err)
		}
		if !known[p.Studio] {
			return nil, fmt.Errorf("%w: package[%d]: %w %s", ErrInvalidCatalog, i, ErrUnknownStudio, p.Studio)
		}
		k := pkgKey{p.Studio, durationMinutes(p.DurationHours)}
		if seen[k] {
			return nil, fmt.Errorf("%w: package[%d]: duplicate %v hour package for %s", ErrInvalidCatalog, i, p.DurationHours, p.Studio)
		}
		seen[k] = true
	}

	composer, err := pricing.NewComposer(addOns)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}

	table, err := discount.NewTable(codes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}
	for _, c := range codes {
		for _, s := range c.ApplicableStudios {
			if !known[s] {
				return nil, fmt.Errorf("%w: code %s: %w %s", ErrInvalidCatalog, c.Code, ErrUnknownStudio, s)
			}
		}
	}

	return &Catalog{
		Studios:  studios,
		Packages: packages,
		AddOns:   addOns,
		Codes:    codes,
		composer: composer,
		codes:    table,
	}, nil
}

// Studio looks a studio up by id.
func (c *Catalog) Studio(id models.Studio) (Studio, bool) {
	for _, s := range c.Studios {
		if s.ID == id {
			return s, true
		}
	}
	return Studio{}, false
}

// PackagesFor lists the packages of a studio in catalog order.
func (c *Catalog) PackagesFor(studio models.Studio) []pricing.PricingPackage {
	var out []pricing.PricingPackage
	for _, p := range c.Packages {
		if p.Studio == studio {
			out = append(out, p)
		}
	}
	return out
}

// Package finds the package of studio whose duration matches hours to the minute.
func (c *Catalog) Package(studio models.Studio, hours float64) (pricing.PricingPackage, error) {
	if _, ok := c.Studio(studio); !ok {
		return pricing.PricingPackage{}, fmt.Errorf("%w: %s", ErrUnknownStudio, studio)
	}
	want := durationMinutes(hours)
	for _, p := range c.Packages {
		if p.Studio == studio && durationMinutes(p.DurationHours) == want {
			return p, nil
		}
	}
	return pricing.PricingPackage{}, fmt.Errorf("%w: %s for %v hours", ErrPackageNotFound, studio, hours)
}

// Composer returns the pricing composer for the catalog's add-ons.
func (c *Catalog) Composer() *pricing.Composer {
	return c.composer
}

// Discounts returns a validator over the catalog's codes.
func (c *Catalog) Discounts() *discount.Validator {
	return discount.NewValidator(c.codes)
}

// String returns a summary of the catalog.
func (c *Catalog) String() string {
	return fmt.Sprintf("Catalog: %d studios, %d packages, %d add-ons, %d codes",
		len(c.Studios), len(c.Packages), len(c.AddOns), len(c.Codes))
}

func durationMinutes(hours float64) int64 {
	return int64(math.Round(hours * 60))
}
