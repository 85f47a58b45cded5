package export

import (
	"io"
	"time"

	"studiobook/internal/catalog"
	"studiobook/internal/surcharge"
)

// WritePriceList writes an .xlsx workbook with standard and evening/weekend prices per
// package on one sheet and the add-ons on another.
func WritePriceList(out io.Writer, cat *catalog.Catalog, rules surcharge.Rules) error {
	w, err := newSheetWriter()
	if err != nil {
		return err
	}
	defer w.close()

	if err := w.addSheet("Packages"); err != nil {
		return err
	}
	if err := w.writeHeader("Studio", "Package", "Hours", "Standard price", rules.Label()); err != nil {
		return err
	}

	uplifted := weekendSample(rules)
	for _, s := range cat.Studios {
		for _, p := range cat.PackagesFor(s.ID) {
			res := rules.Apply(p.BasePricePence, uplifted, uplifted.Hour())
			err := w.writeRow(s.Name, p.DurationLabel, p.DurationHours, pounds(p.BasePricePence), pounds(res.FinalPricePence))
			if err != nil {
				return err
			}
		}
	}

	if len(cat.AddOns) > 0 {
		if err := w.addSheet("Add-ons"); err != nil {
			return err
		}
		if err := w.writeHeader("Add-on", "Unit price", "Max quantity"); err != nil {
			return err
		}
		for _, a := range cat.AddOns {
			if err := w.writeRow(a.Name, pounds(a.PricePence), a.MaxQuantity); err != nil {
				return err
			}
		}
	}

	return w.save(out)
}

// weekendSample returns a time that qualifies for the surcharge.
func weekendSample(rules surcharge.Rules) time.Time {
	base := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC) // a Monday
	for i := 0; i < 7; i++ {
		d := base.AddDate(0, 0, i)
		if rules.IsWeekend(d) {
			return d
		}
	}
	return time.Date(2026, 1, 5, rules.EveningStartHour, 0, 0, 0, time.UTC)
}
