package slots

import (
	"fmt"
	"iter"
	"slices"
	"strconv"
	"strings"
	"time"

	"studiobook/internal/schedule"
)

// ClockFormat is the "HH:MM" layout of slot labels.
const ClockFormat = "15:04"

// DefaultIntervalMinutes is the slot granularity used when none is configured.
const DefaultIntervalMinutes = 30

// Slot represents a candidate booking window.
type Slot struct {
	StartTime time.Time
	EndTime   time.Time
	Available bool
}

// SlotInfo is a simplified representation for UI.
type SlotInfo struct {
	Start     string `json:"start"` // "10:00"
	End       string `json:"end"`   // "11:00"
	Available bool   `json:"available"`
}

// Sequence yields the "HH:MM" start times of a day, hour by hour from the opening hour
// up to but excluding the closing hour. Within each hour minutes step by intervalMinutes
// and restart at :00, so an interval that does not divide 60 leaves a short gap before
// the next hour. The sequence is empty on closed days or for a non-positive interval.
func Sequence(rules schedule.Rules, date time.Time, intervalMinutes int) iter.Seq[string] {
	return func(yield func(string) bool) {
		if intervalMinutes <= 0 {
			return
		}
		w, ok := rules.WindowFor(rules.Local(date).Weekday())
		if !ok {
			return
		}
		for h := w.OpenHour; h < w.CloseHour; h++ {
			for m := 0; m < 60; m += intervalMinutes {
				if !yield(fmt.Sprintf("%02d:%02d", h, m)) {
					return
				}
			}
		}
	}
}

// Generate collects Sequence into a slice.
func Generate(rules schedule.Rules, date time.Time, intervalMinutes int) []string {
	return slices.Collect(Sequence(rules, date, intervalMinutes))
}

// Build turns the day's start times into slots of the given duration. isFree decides
// availability of each [start, start+duration) window.
func Build(rules schedule.Rules, date time.Time, intervalMinutes int, duration time.Duration, isFree func(start time.Time) bool) ([]Slot, error) {
	var out []Slot
	for label := range Sequence(rules, date, intervalMinutes) {
		start, err := OnDate(rules.Local(date), label)
		if err != nil {
			return nil, err
		}
		out = append(out, Slot{
			StartTime: start,
			EndTime:   start.Add(duration),
			Available: isFree == nil || isFree(start),
		})
	}
	return out, nil
}

// ToSlotInfo converts slots to SlotInfo for UI.
func ToSlotInfo(slots []Slot) []SlotInfo {
	result := make([]SlotInfo, len(slots))
	for i, s := range slots {
		result[i] = SlotInfo{
			Start:     s.StartTime.Format(ClockFormat),
			End:       s.EndTime.Format(ClockFormat),
			Available: s.Available,
		}
	}
	return result
}

// GetAvailableSlots returns only available slots.
func GetAvailableSlots(slots []Slot) []Slot {
	var available []Slot
	for _, s := range slots {
		if s.Available {
			available = append(available, s)
		}
	}
	return available
}

// OnDate places an "HH:MM" clock time on the calendar day of date, in date's location.
func OnDate(date time.Time, clock string) (time.Time, error) {
	hour, minute, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, date.Location()), nil
}

// ParseClock splits "HH:MM" into hour and minute.
func ParseClock(clock string) (hour, minute int, err error) {
	parts := strings.Split(clock, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time format: %s", clock)
	}

	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour: %s", clock)
	}

	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute: %s", clock)
	}

	return hour, minute, nil
}
