// Package pricing composes a booking price from a studio package and optional add-ons.
package pricing

import (
	"errors"
	"fmt"
	"time"

	"studiobook/internal/models"
	"studiobook/internal/surcharge"
)

var (
	ErrAddOnQuantityExceeded   = errors.New("add-on quantity exceeds maximum")
	ErrUnknownAddOn            = errors.New("unknown add-on")
	ErrInvalidQuantity         = errors.New("add-on quantity must be at least 1")
	ErrSurchargeAlreadyApplied = errors.New("surcharge already applied to quote")
	ErrInvalidCatalogItem      = errors.New("invalid catalog item")
)

// PricingPackage is a bookable duration of a studio at a fixed base price.
type PricingPackage struct {
	Studio         models.Studio `json:"studio"`
	DurationLabel  string        `json:"duration_label"`
	DurationHours  float64       `json:"duration_hours"`
	BasePricePence int64         `json:"base_price_pence"`
}

// Validate checks a package read from the content store.
func (p PricingPackage) Validate() error {
	switch {
	case p.Studio == "":
		return fmt.Errorf("%w: package without studio", ErrInvalidCatalogItem)
	case p.DurationHours <= 0:
		return fmt.Errorf("%w: package %s/%s has non-positive duration", ErrInvalidCatalogItem, p.Studio, p.DurationLabel)
	case p.BasePricePence < 0:
		return fmt.Errorf("%w: package %s/%s has negative price", ErrInvalidCatalogItem, p.Studio, p.DurationLabel)
	}
	return nil
}

// Label is the breakdown label of the package line.
func (p PricingPackage) Label() string {
	if p.DurationLabel == "" {
		return string(p.Studio)
	}
	return fmt.Sprintf("%s (%s)", p.Studio, p.DurationLabel)
}

// AddOn is an optional extra sold per unit, up to MaxQuantity units per booking.
type AddOn struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PricePence  int64  `json:"price_pence"`
	MaxQuantity int    `json:"max_quantity"`
}

func (a AddOn) Validate() error {
	switch {
	case a.ID == "":
		return fmt.Errorf("%w: add-on without id", ErrInvalidCatalogItem)
	case a.PricePence < 0:
		return fmt.Errorf("%w: add-on %s has negative price", ErrInvalidCatalogItem, a.ID)
	case a.MaxQuantity < 1:
		return fmt.Errorf("%w: add-on %s max quantity must be at least 1", ErrInvalidCatalogItem, a.ID)
	}
	return nil
}

// Selection requests Quantity units of an add-on.
type Selection struct {
	AddOnID  string `json:"id"`
	Quantity int    `json:"quantity"`
}

// LineKind tells breakdown lines apart.
type LineKind string

const (
	LinePackage   LineKind = "package"
	LineAddOn     LineKind = "add_on"
	LineSurcharge LineKind = "surcharge"
)

// Line is one entry of a quote breakdown.
type Line struct {
	Kind       LineKind `json:"kind"`
	Label      string   `json:"label"`
	PricePence int64    `json:"price_pence"`
}

// Quote is a priced booking. TotalPence always equals the sum of the breakdown lines.
type Quote struct {
	Studio         models.Studio `json:"studio"`
	SubtotalPence  int64         `json:"subtotal_pence"`
	SurchargePence int64         `json:"surcharge_pence"`
	TotalPence     int64         `json:"total_pence"`
	Breakdown      []Line        `json:"breakdown"`
}

// HasSurcharge reports whether the breakdown already carries a surcharge line.
func (q Quote) HasSurcharge() bool {
	for _, l := range q.Breakdown {
		if l.Kind == LineSurcharge {
			return true
		}
	}
	return false
}

// WithSurcharge returns a copy of q uplifted for a booking starting at start, which must be
// in the studio's local time. A quote that already carries a surcharge is rejected so the
// uplift is never compounded.
func (q Quote) WithSurcharge(rules surcharge.Rules, start time.Time) (Quote, error) {
	if q.HasSurcharge() {
		return Quote{}, ErrSurchargeAlreadyApplied
	}

	res := rules.Apply(q.TotalPence, start, start.Hour())
	out := q
	out.Breakdown = append([]Line(nil), q.Breakdown...)
	if res.SurchargeApplied {
		out.Breakdown = append(out.Breakdown, Line{
			Kind:       LineSurcharge,
			Label:      rules.Label(),
			PricePence: res.SurchargePence,
		})
	}
	out.SurchargePence = res.SurchargePence
	out.TotalPence = res.FinalPricePence
	return out, nil
}

// Composer prices packages against a fixed add-on catalog.
type Composer struct {
	addOns map[string]AddOn
}

// NewComposer indexes the add-on catalog by id.
func NewComposer(addOns []AddOn) (*Composer, error) {
	idx := make(map[string]AddOn, len(addOns))
	for _, a := range addOns {
		if err := a.Validate(); err != nil {
			return nil, err
		}
		if _, dup := idx[a.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate add-on %s", ErrInvalidCatalogItem, a.ID)
		}
		idx[a.ID] = a
	}
	return &Composer{addOns: idx}, nil
}

// AddOn looks up an add-on by id.
func (c *Composer) AddOn(id string) (AddOn, bool) {
	a, ok := c.addOns[id]
	return a, ok
}

// Compute sums the package base price and the selected add-ons. The base line comes first,
// then one line per add-on in order of first selection. Repeated selections of the same
// add-on are combined before the quantity cap is checked.
func (c *Composer) Compute(pkg PricingPackage, selections []Selection) (Quote, error) {
	if err := pkg.Validate(); err != nil {
		return Quote{}, err
	}

	var order []string
	qty := make(map[string]int, len(selections))
	for _, s := range selections {
		if _, ok := c.addOns[s.AddOnID]; !ok {
			return Quote{}, fmt.Errorf("%w: %q", ErrUnknownAddOn, s.AddOnID)
		}
		if s.Quantity < 1 {
			return Quote{}, fmt.Errorf("%w: %s requested %d", ErrInvalidQuantity, s.AddOnID, s.Quantity)
		}
		if _, seen := qty[s.AddOnID]; !seen {
			order = append(order, s.AddOnID)
		}
		qty[s.AddOnID] += s.Quantity
	}

	q := Quote{
		Studio:    pkg.Studio,
		Breakdown: []Line{{Kind: LinePackage, Label: pkg.Label(), PricePence: pkg.BasePricePence}},
	}
	total := pkg.BasePricePence

	for _, id := range order {
		a, n := c.addOns[id], qty[id]
		if n > a.MaxQuantity {
			return Quote{}, fmt.Errorf("%w: %s requested %d, max %d", ErrAddOnQuantityExceeded, id, n, a.MaxQuantity)
		}
		price := a.PricePence * int64(n)
		q.Breakdown = append(q.Breakdown, Line{Kind: LineAddOn, Label: addOnLabel(a, n), PricePence: price})
		total += price
	}

	q.SubtotalPence = total
	q.TotalPence = total
	return q, nil
}

// Price is Compute followed by WithSurcharge.
func (c *Composer) Price(pkg PricingPackage, selections []Selection, rules surcharge.Rules, start time.Time) (Quote, error) {
	q, err := c.Compute(pkg, selections)
	if err != nil {
		return Quote{}, err
	}
	return q.WithSurcharge(rules, start)
}

func addOnLabel(a AddOn, n int) string {
	name := a.Name
	if name == "" {
		name = a.ID
	}
	if n == 1 {
		return name
	}
	return fmt.Sprintf("%s x%d", name, n)
}
