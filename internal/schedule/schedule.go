// Package schedule defines studio operating hours and the post-booking cooldown.
package schedule

import (
	"errors"
	"fmt"
	"time"
)

// DefaultCooldown is the idle buffer required after a booking ends.
const DefaultCooldown = 60 * time.Minute

// DefaultLocation is the studio time zone used when none is configured.
const DefaultLocation = "Europe/London"

var ErrInvalidWindow = errors.New("invalid operating window")

// OperatingWindow is the open/close hour pair of a single weekday.
// CloseHour may be 24 to mean midnight at the end of the day.
type OperatingWindow struct {
	OpenHour  int `json:"open_hour" yaml:"open"`
	CloseHour int `json:"close_hour" yaml:"close"`
}

// Validate checks 0 <= OpenHour < CloseHour <= 24.
func (w OperatingWindow) Validate() error {
	if w.OpenHour < 0 || w.OpenHour > 23 {
		return fmt.Errorf("%w: open hour %d out of range", ErrInvalidWindow, w.OpenHour)
	}
	if w.CloseHour < 1 || w.CloseHour > 24 {
		return fmt.Errorf("%w: close hour %d out of range", ErrInvalidWindow, w.CloseHour)
	}
	if w.OpenHour >= w.CloseHour {
		return fmt.Errorf("%w: open hour %d must be before close hour %d", ErrInvalidWindow, w.OpenHour, w.CloseHour)
	}
	return nil
}

// Rules is an immutable weekly schedule. The zero value is closed every day.
type Rules struct {
	windows  [7]OperatingWindow
	open     [7]bool
	cooldown time.Duration
	loc      *time.Location
}

// NewRules builds rules from per-weekday windows. Weekdays missing from the map are closed.
// A nil location means UTC.
func NewRules(windows map[time.Weekday]OperatingWindow, cooldown time.Duration, loc *time.Location) (Rules, error) {
	if cooldown < 0 {
		return Rules{}, fmt.Errorf("cooldown must not be negative, got %s", cooldown)
	}
	if loc == nil {
		loc = time.UTC
	}

	r := Rules{cooldown: cooldown, loc: loc}
	for day, w := range windows {
		if day < time.Sunday || day > time.Saturday {
			return Rules{}, fmt.Errorf("invalid weekday %d", day)
		}
		if err := w.Validate(); err != nil {
			return Rules{}, fmt.Errorf("%s: %w", day, err)
		}
		r.windows[day] = w
		r.open[day] = true
	}
	return r, nil
}

// DefaultRules opens every day 08:00-22:00 London time with a one hour cooldown.
func DefaultRules() Rules {
	loc, err := time.LoadLocation(DefaultLocation)
	if err != nil {
		loc = time.UTC
	}
	windows := make(map[time.Weekday]OperatingWindow, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		windows[d] = OperatingWindow{OpenHour: 8, CloseHour: 22}
	}
	r, _ := NewRules(windows, DefaultCooldown, loc)
	return r
}

// WindowFor returns the window of a weekday. ok is false when the studio is closed that day.
func (r Rules) WindowFor(day time.Weekday) (w OperatingWindow, ok bool) {
	if day < time.Sunday || day > time.Saturday || !r.open[day] {
		return OperatingWindow{}, false
	}
	return r.windows[day], true
}

// Cooldown returns the post-booking buffer.
func (r Rules) Cooldown() time.Duration {
	return r.cooldown
}

// Location returns the studio time zone.
func (r Rules) Location() *time.Location {
	if r.loc == nil {
		return time.UTC
	}
	return r.loc
}

// Local converts t to the studio time zone.
func (r Rules) Local(t time.Time) time.Time {
	return t.In(r.Location())
}

// Bounds returns the absolute open and close instants of the calendar day containing day,
// evaluated in the studio time zone.
func (r Rules) Bounds(day time.Time) (openAt, closeAt time.Time, ok bool) {
	local := r.Local(day)
	w, ok := r.WindowFor(local.Weekday())
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	y, m, d := local.Date()
	openAt = time.Date(y, m, d, w.OpenHour, 0, 0, 0, r.Location())
	closeAt = time.Date(y, m, d, w.CloseHour, 0, 0, 0, r.Location())
	return openAt, closeAt, true
}
