package calendar

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"studiobook/internal/models"
)

// GoogleOptions configures GoogleSource.
type GoogleOptions struct {
	// CredentialsFile is a service account JSON key. Ignored when Endpoint is set.
	CredentialsFile string
	// Endpoint overrides the API base URL and disables authentication.
	Endpoint          string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	Location          *time.Location
	// Lookback widens each query before midnight so that late bookings of the previous
	// day still contribute their cooldown.
	Lookback time.Duration
}

// GoogleSource reads busy intervals from the Google Calendar FreeBusy API.
type GoogleSource struct {
	svc       *gcal.Service
	calendars CalendarResolver
	limiter   *rate.Limiter
	timeout   time.Duration
	loc       *time.Location
	lookback  time.Duration
	logger    *zerolog.Logger
}

func NewGoogleSource(ctx context.Context, opts GoogleOptions, calendars CalendarResolver, logger *zerolog.Logger) (*GoogleSource, error) {
	var clientOpts []option.ClientOption
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint), option.WithoutAuthentication())
	} else {
		data, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read calendar credentials: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, gcal.CalendarReadonlyScope)
		if err != nil {
			return nil, fmt.Errorf("parse calendar credentials: %w", err)
		}
		clientOpts = append(clientOpts, option.WithCredentials(creds))
	}

	svc, err := gcal.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 5
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	l := logger.With().Str("component", "google_calendar").Logger()
	return &GoogleSource{
		svc:       svc,
		calendars: calendars,
		limiter:   rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		timeout:   opts.Timeout,
		loc:       opts.Location,
		lookback:  opts.Lookback,
		logger:    &l,
	}, nil
}

// BusyIntervals queries FreeBusy for the studio's calendar. The call waits for the rate
// limiter and is bounded by the configured timeout.
func (s *GoogleSource) BusyIntervals(ctx context.Context, studio models.Studio, day time.Time) ([]models.BusyInterval, error) {
	calID, ok := s.calendars.CalendarID(studio)
	if !ok || calID == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCalendar, studio)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("calendar rate limit: %w", err)
	}

	start, end := dayBounds(day, s.loc, s.lookback)
	resp, err := s.svc.Freebusy.Query(&gcal.FreeBusyRequest{
		TimeMin:  start.Format(time.RFC3339),
		TimeMax:  end.Format(time.RFC3339),
		TimeZone: s.loc.String(),
		Items:    []*gcal.FreeBusyRequestItem{{Id: calID}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("freebusy %s: %w", studio, err)
	}

	cal, ok := resp.Calendars[calID]
	if !ok {
		return nil, fmt.Errorf("freebusy %s: calendar %s missing from response", studio, calID)
	}
	if len(cal.Errors) > 0 {
		return nil, fmt.Errorf("freebusy %s: %s", studio, cal.Errors[0].Reason)
	}

	out := make([]models.BusyInterval, 0, len(cal.Busy))
	for _, p := range cal.Busy {
		bs, err := time.Parse(time.RFC3339, p.Start)
		if err != nil {
			return nil, fmt.Errorf("freebusy %s: bad start %q: %w", studio, p.Start, err)
		}
		be, err := time.Parse(time.RFC3339, p.End)
		if err != nil {
			return nil, fmt.Errorf("freebusy %s: bad end %q: %w", studio, p.End, err)
		}
		out = append(out, models.BusyInterval{Start: bs, End: be})
	}
	sortIntervals(out)

	s.logger.Debug().Str("studio", string(studio)).Str("day", start.Format(time.DateOnly)).Int("busy", len(out)).Msg("calendar fetched")
	return out, nil
}
