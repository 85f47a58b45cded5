package models

import (
	"math"
	"time"
)

// Studio identifies a bookable studio (resource) by its catalog key, e.g. "studio-1".
type Studio string

// BusyInterval is a period during which a studio is unavailable, as reported by the calendar.
type BusyInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Extend returns a copy of the interval with End moved later by d.
func (b BusyInterval) Extend(d time.Duration) BusyInterval {
	return BusyInterval{Start: b.Start, End: b.End.Add(d)}
}

// Overlaps reports whether [start, end) intersects the interval.
// Uses half-open semantics: touching boundaries do not overlap.
func (b BusyInterval) Overlaps(start, end time.Time) bool {
	return start.Before(b.End) && end.After(b.Start)
}

// BookingRequest is a candidate booking of a studio.
type BookingRequest struct {
	Studio        Studio    `json:"studio"`
	StartTime     time.Time `json:"start_time"`
	DurationHours float64   `json:"duration_hours"`
}

// Duration converts DurationHours to a time.Duration rounded to the minute.
func (r BookingRequest) Duration() time.Duration {
	return time.Duration(math.Round(r.DurationHours*60)) * time.Minute
}

// EndTime returns StartTime plus the requested duration.
func (r BookingRequest) EndTime() time.Time {
	return r.StartTime.Add(r.Duration())
}
