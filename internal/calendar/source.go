// Package calendar supplies the busy intervals of a studio for a day.
package calendar

import (
	"context"
	"errors"
	"sort"
	"time"

	"studiobook/internal/models"
)

var ErrUnknownCalendar = errors.New("no calendar configured for studio")

// BusySource returns the busy intervals overlapping the studio-local calendar day of day.
type BusySource interface {
	BusyIntervals(ctx context.Context, studio models.Studio, day time.Time) ([]models.BusyInterval, error)
}

// CalendarResolver maps a studio to its calendar id.
type CalendarResolver interface {
	CalendarID(studio models.Studio) (string, bool)
}

// StaticSource serves fixed intervals, for deployments without a calendar and for tests.
// Days are bounded in the studio's location and widened by the lookback, like GoogleSource.
type StaticSource struct {
	busy     map[models.Studio][]models.BusyInterval
	loc      *time.Location
	lookback time.Duration
}

func NewStaticSource(busy map[models.Studio][]models.BusyInterval, loc *time.Location, lookback time.Duration) *StaticSource {
	if loc == nil {
		loc = time.UTC
	}
	return &StaticSource{busy: busy, loc: loc, lookback: lookback}
}

func (s *StaticSource) BusyIntervals(_ context.Context, studio models.Studio, day time.Time) ([]models.BusyInterval, error) {
	start, end := dayBounds(day, s.loc, s.lookback)
	var out []models.BusyInterval
	for _, b := range s.busy[studio] {
		if b.Overlaps(start, end) {
			out = append(out, b)
		}
	}
	sortIntervals(out)
	return out, nil
}

// dayBounds returns [midnight - lookback, next midnight) of day in loc.
func dayBounds(day time.Time, loc *time.Location, lookback time.Duration) (time.Time, time.Time) {
	local := day.In(loc)
	y, m, d := local.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return start.Add(-lookback), start.AddDate(0, 0, 1)
}

func sortIntervals(in []models.BusyInterval) {
	sort.Slice(in, func(i, j int) bool { return in[i].Start.Before(in[j].Start) })
}
