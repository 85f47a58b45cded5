// Package booking ties the pricing and availability engine to the calendar, the content
// store and checkout.
package booking

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"studiobook/internal/availability"
	"studiobook/internal/calendar"
	"studiobook/internal/catalog"
	"studiobook/internal/checkout"
	"studiobook/internal/discount"
	"studiobook/internal/export"
	"studiobook/internal/metrics"
	"studiobook/internal/models"
	"studiobook/internal/pricing"
	"studiobook/internal/schedule"
	"studiobook/internal/slots"
	"studiobook/internal/surcharge"
)

var (
	ErrCatalogNotLoaded = errors.New("catalog not loaded")
	ErrUnavailable      = errors.New("requested slot is not available")
)

// CatalogStore persists the catalog and discount usage.
type CatalogStore interface {
	SyncCatalog(ctx context.Context, cat *catalog.Catalog) error
	LoadCatalog(ctx context.Context) (*catalog.Catalog, error)
	RedeemCode(ctx context.Context, code, quoteID, email string, discountPence int64) error
}

// Payments creates checkout sessions.
type Payments interface {
	CreateSession(ctx context.Context, order checkout.Order) (checkout.Session, error)
}

// BusyCache is implemented by busy sources that keep a per-day cache.
type BusyCache interface {
	Invalidate(ctx context.Context, studio models.Studio, day time.Time) error
}

// Rules is the immutable engine configuration.
type Rules struct {
	Schedule            schedule.Rules
	Surcharge           surcharge.Rules
	SlotIntervalMinutes int
}

// Service is safe for concurrent use. The catalog may be swapped at any time.
type Service struct {
	rules    Rules
	checker  *availability.Checker
	catalog  *catalog.Holder
	busy     calendar.BusySource
	store    CatalogStore
	payments Payments
	logger   *zerolog.Logger
	now      func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithStore keeps the catalog and code usage in a persistent store.
func WithStore(store CatalogStore) Option {
	return func(s *Service) { s.store = store }
}

func WithPayments(p Payments) Option {
	return func(s *Service) { s.payments = p }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(rules Rules, holder *catalog.Holder, busy calendar.BusySource, logger *zerolog.Logger, opts ...Option) *Service {
	if rules.SlotIntervalMinutes <= 0 {
		rules.SlotIntervalMinutes = slots.DefaultIntervalMinutes
	}
	if busy == nil {
		busy = calendar.NewStaticSource(nil, rules.Schedule.Location(), rules.Schedule.Cooldown())
	}
	if holder == nil {
		holder = catalog.NewHolder(nil)
	}
	l := logger.With().Str("component", "booking").Logger()
	s := &Service{
		rules:   rules,
		checker: availability.NewChecker(rules.Schedule),
		catalog: holder,
		busy:    busy,
		logger:  &l,
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Rules returns the engine configuration.
func (s *Service) Rules() Rules {
	return s.rules
}

// Catalog returns the current catalog snapshot.
func (s *Service) Catalog() (*catalog.Catalog, error) {
	c := s.catalog.Load()
	if c == nil {
		return nil, ErrCatalogNotLoaded
	}
	return c, nil
}

// ApplyCatalog publishes a new catalog. With a store the catalog is synced first and
// re-read so that recorded code usage is reflected.
func (s *Service) ApplyCatalog(ctx context.Context, cat *catalog.Catalog) error {
	if s.store == nil {
		s.catalog.Store(cat)
		metrics.IncCatalogReload("ok")
		s.logger.Info().Str("catalog", cat.String()).Msg("catalog applied")
		return nil
	}

	if err := s.store.SyncCatalog(ctx, cat); err != nil {
		metrics.IncCatalogReload("error")
		return fmt.Errorf("sync catalog: %w", err)
	}
	if err := s.refreshCatalog(ctx); err != nil {
		metrics.IncCatalogReload("error")
		return err
	}
	metrics.IncCatalogReload("ok")
	s.logger.Info().Str("catalog", s.catalog.Load().String()).Msg("catalog applied")
	return nil
}

func (s *Service) refreshCatalog(ctx context.Context) error {
	loaded, err := s.store.LoadCatalog(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	s.catalog.Store(loaded)
	return nil
}

func (s *Service) fetchBusy(ctx context.Context, studio models.Studio, day time.Time) ([]models.BusyInterval, error) {
	start := time.Now()
	busy, err := s.busy.BusyIntervals(ctx, studio, day)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.ObserveCalendarFetch(status, time.Since(start))
	if err != nil {
		s.logger.Error().Err(err).Str("studio", string(studio)).Msg("busy interval fetch failed")
		return nil, fmt.Errorf("fetch busy intervals: %w", err)
	}
	return busy, nil
}

func (s *Service) requireStudio(studio models.Studio) (*catalog.Catalog, error) {
	cat, err := s.Catalog()
	if err != nil {
		return nil, err
	}
	if _, ok := cat.Studio(studio); !ok {
		return nil, fmt.Errorf("%w: %s", catalog.ErrUnknownStudio, studio)
	}
	return cat, nil
}

func checkDuration(hours float64) error {
	if (models.BookingRequest{DurationHours: hours}).Duration() <= 0 {
		return fmt.Errorf("%w: got %v hours", availability.ErrInvalidDuration, hours)
	}
	return nil
}

// DaySlots lists the candidate starts of date for a booking of durationHours, each marked
// available or not.
func (s *Service) DaySlots(ctx context.Context, studio models.Studio, date time.Time, durationHours float64) ([]slots.SlotInfo, error) {
	if _, err := s.requireStudio(studio); err != nil {
		return nil, err
	}
	if err := checkDuration(durationHours); err != nil {
		return nil, err
	}

	busy, err := s.fetchBusy(ctx, studio, date)
	if err != nil {
		return nil, err
	}
	day, err := s.checker.DaySlots(studio, date, s.rules.SlotIntervalMinutes, durationHours, busy)
	if err != nil {
		return nil, err
	}
	return slots.ToSlotInfo(day), nil
}

// AvailableStarts returns only the "HH:MM" starts of date at which the booking fits.
func (s *Service) AvailableStarts(ctx context.Context, studio models.Studio, date time.Time, durationHours float64) ([]string, error) {
	if _, err := s.requireStudio(studio); err != nil {
		return nil, err
	}
	if err := checkDuration(durationHours); err != nil {
		return nil, err
	}

	busy, err := s.fetchBusy(ctx, studio, date)
	if err != nil {
		return nil, err
	}
	return s.checker.AvailableSlots(studio, date, s.rules.SlotIntervalMinutes, durationHours, busy)
}

// Availability is the outcome of CheckAvailability. Reason is empty when available.
type Availability struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
	Message   string `json:"message,omitempty"`
}

// CheckAvailability decides whether req can be booked against the studio calendar.
// Rule violations are reported in the result; only collaborator failures return an error.
func (s *Service) CheckAvailability(ctx context.Context, req models.BookingRequest) (Availability, error) {
	if _, err := s.requireStudio(req.Studio); err != nil {
		return Availability{}, err
	}

	busy, err := s.fetchBusy(ctx, req.Studio, req.StartTime)
	if err != nil {
		return Availability{}, err
	}

	if err := s.checker.Check(req, busy); err != nil {
		reason := AvailabilityReason(err)
		metrics.IncAvailability(reason)
		return Availability{Reason: reason, Message: err.Error()}, nil
	}
	metrics.IncAvailability("available")
	return Availability{Available: true}, nil
}

// AvailabilityReason maps checker errors to machine readable codes.
func AvailabilityReason(err error) string {
	switch {
	case errors.Is(err, availability.ErrInvalidDuration):
		return "invalid_duration"
	case errors.Is(err, availability.ErrOutsideOperatingHours):
		return "outside_operating_hours"
	case errors.Is(err, availability.ErrSlotConflict):
		return "slot_conflict"
	}
	return ""
}

// QuoteRequest asks for the price of a booking.
type QuoteRequest struct {
	Booking      models.BookingRequest
	AddOns       []pricing.Selection
	DiscountCode string
	Email        string
}

// Quote is a fully priced booking: package, add-ons, surcharge and an optional discount.
type Quote struct {
	ID              string            `json:"id"`
	Studio          models.Studio     `json:"studio"`
	StartTime       time.Time         `json:"start_time"`
	DurationHours   float64           `json:"duration_hours"`
	Package         string            `json:"package"`
	Pricing         pricing.Quote     `json:"pricing"`
	Discount        *discount.Outcome `json:"discount,omitempty"`
	FinalTotalPence int64             `json:"final_total_pence"`
}

// Quote prices req. The surcharge is decided in studio local time and the discount is
// computed on the surcharged total.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (Quote, error) {
	q, err := s.quote(req)
	if err != nil {
		metrics.IncQuote("rejected")
		return Quote{}, err
	}
	metrics.IncQuote("ok")
	s.logger.Debug().
		Str("quote_id", q.ID).
		Str("studio", string(q.Studio)).
		Int64("total_pence", q.FinalTotalPence).
		Msg("quote computed")
	return q, nil
}

func (s *Service) quote(req QuoteRequest) (Quote, error) {
	cat, err := s.requireStudio(req.Booking.Studio)
	if err != nil {
		return Quote{}, err
	}
	if err := checkDuration(req.Booking.DurationHours); err != nil {
		return Quote{}, err
	}

	pkg, err := cat.Package(req.Booking.Studio, req.Booking.DurationHours)
	if err != nil {
		return Quote{}, err
	}

	local := s.rules.Schedule.Local(req.Booking.StartTime)
	priced, err := cat.Composer().Price(pkg, req.AddOns, s.rules.Surcharge, local)
	if err != nil {
		return Quote{}, err
	}

	q := Quote{
		ID:              uuid.NewString(),
		Studio:          req.Booking.Studio,
		StartTime:       local,
		DurationHours:   req.Booking.DurationHours,
		Package:         pkg.DurationLabel,
		Pricing:         priced,
		FinalTotalPence: priced.TotalPence,
	}

	if code := strings.TrimSpace(req.DiscountCode); code != "" {
		out, err := s.validateDiscount(cat, code, discount.Context{
			Email:             req.Email,
			Studio:            req.Booking.Studio,
			BookingTotalPence: priced.TotalPence,
			Now:               s.now(),
		})
		if err != nil {
			return Quote{}, err
		}
		q.Discount = &out
		q.FinalTotalPence = priced.TotalPence - out.DiscountPence
	}
	return q, nil
}

// ValidateDiscount checks a code against a booking total without pricing a booking.
func (s *Service) ValidateDiscount(_ context.Context, code string, c discount.Context) (discount.Outcome, error) {
	cat, err := s.Catalog()
	if err != nil {
		return discount.Outcome{}, err
	}
	if c.Now.IsZero() {
		c.Now = s.now()
	}
	return s.validateDiscount(cat, code, c)
}

func (s *Service) validateDiscount(cat *catalog.Catalog, code string, c discount.Context) (discount.Outcome, error) {
	out, err := cat.Discounts().Validate(code, c)
	if err != nil {
		reason := discount.ReasonCode(err)
		if reason == "" {
			reason = "error"
		}
		metrics.IncDiscount(reason)
		s.logger.Info().Str("code", discount.Normalize(code)).Str("reason", reason).Msg("discount code rejected")
		return discount.Outcome{}, err
	}
	metrics.IncDiscount("accepted")
	return out, nil
}

// Checkout re-prices req, confirms the slot is still free, records the discount use and
// opens a payment session for the final total.
func (s *Service) Checkout(ctx context.Context, req QuoteRequest) (Quote, checkout.Session, error) {
	if s.payments == nil {
		metrics.IncCheckout("disabled")
		return Quote{}, checkout.Session{}, checkout.ErrNotConfigured
	}

	q, err := s.Quote(ctx, req)
	if err != nil {
		metrics.IncCheckout("rejected")
		return Quote{}, checkout.Session{}, err
	}

	avail, err := s.CheckAvailability(ctx, req.Booking)
	if err != nil {
		metrics.IncCheckout("error")
		return Quote{}, checkout.Session{}, err
	}
	if !avail.Available {
		metrics.IncCheckout("unavailable")
		return Quote{}, checkout.Session{}, fmt.Errorf("%w: %s", ErrUnavailable, avail.Message)
	}

	if q.FinalTotalPence <= 0 {
		metrics.IncCheckout("rejected")
		return Quote{}, checkout.Session{}, checkout.ErrNothingToPay
	}

	// A redemption is not rolled back if the payment session cannot be created.
	if q.Discount != nil && s.store != nil {
		if err := s.store.RedeemCode(ctx, q.Discount.Code, q.ID, req.Email, q.Discount.DiscountPence); err != nil {
			metrics.IncCheckout("rejected")
			return Quote{}, checkout.Session{}, err
		}
		if err := s.refreshCatalog(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("catalog refresh after redemption failed")
		}
	}

	order := checkout.Order{
		QuoteID:       q.ID,
		Studio:        string(q.Studio),
		StartTime:     q.StartTime,
		DurationLabel: q.Package,
		Email:         req.Email,
		Breakdown:     q.Pricing.Breakdown,
		TotalPence:    q.FinalTotalPence,
	}
	if q.Discount != nil {
		order.DiscountCode = q.Discount.Code
		order.DiscountPence = q.Discount.DiscountPence
	}

	sess, err := s.payments.CreateSession(ctx, order)
	if err != nil {
		metrics.IncCheckout("error")
		s.logger.Error().Err(err).Str("quote_id", q.ID).Msg("checkout session failed")
		return Quote{}, checkout.Session{}, err
	}
	metrics.IncCheckout("created")

	// The paid booking lands in the calendar shortly; stop serving the cached day.
	if cache, ok := s.busy.(BusyCache); ok {
		if err := cache.Invalidate(ctx, q.Studio, q.StartTime); err != nil {
			s.logger.Warn().Err(err).Str("studio", string(q.Studio)).Msg("busy cache invalidation failed")
		}
	}
	return q, sess, nil
}

// WritePriceList renders the current catalog as an Excel workbook.
func (s *Service) WritePriceList(w io.Writer) error {
	cat, err := s.Catalog()
	if err != nil {
		return err
	}
	return export.WritePriceList(w, cat, s.rules.Surcharge)
}
