// Package availability decides whether a studio can be booked for a given window.
package availability

import (
	"errors"
	"fmt"
	"time"

	"studiobook/internal/models"
	"studiobook/internal/schedule"
	"studiobook/internal/slots"
)

var (
	// ErrInvalidDuration is returned for a zero or negative duration.
	ErrInvalidDuration = errors.New("booking duration must be positive")

	// ErrOutsideOperatingHours is returned when the booking does not fit the day's window.
	ErrOutsideOperatingHours = errors.New("booking is outside operating hours")

	// ErrSlotConflict is returned when the booking overlaps a busy interval or its cooldown.
	ErrSlotConflict = errors.New("booking conflicts with an existing booking")
)

// Checker applies operating hours and cooldown to a snapshot of busy intervals.
// It holds no mutable state and is safe for concurrent use.
type Checker struct {
	rules schedule.Rules
}

// NewChecker creates a checker for the given schedule.
func NewChecker(rules schedule.Rules) *Checker {
	return &Checker{rules: rules}
}

// Rules returns the schedule the checker was built with.
func (c *Checker) Rules() schedule.Rules {
	return c.rules
}

// Check returns nil when req can be booked, otherwise the first failing reason.
// Each busy interval blocks new starts until its end plus the cooldown. Nothing is added
// before a busy interval's start, so a booking may end exactly when another begins.
func (c *Checker) Check(req models.BookingRequest, busy []models.BusyInterval) error {
	// Durations are compared at minute precision, so anything under half a minute is empty.
	if req.DurationHours <= 0 || req.Duration() <= 0 {
		return fmt.Errorf("%w: got %v hours", ErrInvalidDuration, req.DurationHours)
	}

	start := c.rules.Local(req.StartTime)
	end := start.Add(req.Duration())

	openAt, closeAt, ok := c.rules.Bounds(start)
	if !ok {
		return fmt.Errorf("%w: closed on %s", ErrOutsideOperatingHours, start.Weekday())
	}
	if start.Before(openAt) || end.After(closeAt) {
		return fmt.Errorf("%w: %s-%s not within %s-%s", ErrOutsideOperatingHours,
			start.Format(slots.ClockFormat), end.Format(slots.ClockFormat),
			openAt.Format(slots.ClockFormat), closeAt.Format(slots.ClockFormat))
	}

	for _, b := range c.EffectiveBusy(busy) {
		if b.Overlaps(start, end) {
			return fmt.Errorf("%w: busy until %s", ErrSlotConflict, c.rules.Local(b.End).Format(slots.ClockFormat))
		}
	}
	return nil
}

// Available reports whether Check passes.
func (c *Checker) Available(req models.BookingRequest, busy []models.BusyInterval) bool {
	return c.Check(req, busy) == nil
}

// EffectiveBusy extends every interval's end by the cooldown. The input is not modified.
func (c *Checker) EffectiveBusy(busy []models.BusyInterval) []models.BusyInterval {
	out := make([]models.BusyInterval, len(busy))
	for i, b := range busy {
		out[i] = b.Extend(c.rules.Cooldown())
	}
	return out
}

// DaySlots lists every candidate start of date with its availability for a booking of durationHours.
func (c *Checker) DaySlots(studio models.Studio, date time.Time, intervalMinutes int, durationHours float64, busy []models.BusyInterval) ([]slots.Slot, error) {
	template := models.BookingRequest{Studio: studio, DurationHours: durationHours}

	return slots.Build(c.rules, date, intervalMinutes, template.Duration(), func(start time.Time) bool {
		req := template
		req.StartTime = start
		return c.Check(req, busy) == nil
	})
}

// AvailableSlots returns the "HH:MM" starts of date at which a booking of durationHours fits.
func (c *Checker) AvailableSlots(studio models.Studio, date time.Time, intervalMinutes int, durationHours float64, busy []models.BusyInterval) ([]string, error) {
	day, err := c.DaySlots(studio, date, intervalMinutes, durationHours, busy)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(day))
	for _, s := range slots.GetAvailableSlots(day) {
		out = append(out, s.StartTime.Format(slots.ClockFormat))
	}
	return out, nil
}
