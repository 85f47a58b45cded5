package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"studiobook/internal/booking"
	"studiobook/internal/catalog"
	"studiobook/internal/checkout"
	"studiobook/internal/discount"
	"studiobook/internal/models"
	"studiobook/internal/pricing"
	"studiobook/internal/slots"
)

const dateFormat = "2006-01-02"

// Service is the booking surface exposed over HTTP.
type Service interface {
	Rules() booking.Rules
	Catalog() (*catalog.Catalog, error)
	DaySlots(ctx context.Context, studio models.Studio, date time.Time, durationHours float64) ([]slots.SlotInfo, error)
	AvailableStarts(ctx context.Context, studio models.Studio, date time.Time, durationHours float64) ([]string, error)
	CheckAvailability(ctx context.Context, req models.BookingRequest) (booking.Availability, error)
	Quote(ctx context.Context, req booking.QuoteRequest) (booking.Quote, error)
	ValidateDiscount(ctx context.Context, code string, c discount.Context) (discount.Outcome, error)
	Checkout(ctx context.Context, req booking.QuoteRequest) (booking.Quote, checkout.Session, error)
	WritePriceList(w io.Writer) error
}

type Handler struct {
	svc    Service
	logger *zerolog.Logger
}

func NewHandler(svc Service, logger *zerolog.Logger) *Handler {
	l := logger.With().Str("component", "api").Logger()
	return &Handler{svc: svc, logger: &l}
}

// bookingBody accepts either an RFC 3339 start_time or a local date plus "HH:MM" start.
type bookingBody struct {
	Studio        models.Studio `json:"studio"`
	StartTime     *time.Time    `json:"start_time,omitempty"`
	Date          string        `json:"date,omitempty"`
	Start         string        `json:"start,omitempty"`
	DurationHours float64       `json:"duration_hours"`
}

type quoteBody struct {
	bookingBody
	AddOns       []pricing.Selection `json:"add_ons,omitempty"`
	DiscountCode string              `json:"discount_code,omitempty"`
	Email        string              `json:"email,omitempty"`
}

type discountBody struct {
	Code              string        `json:"code"`
	Email             string        `json:"email,omitempty"`
	Studio            models.Studio `json:"studio"`
	BookingTotalPence int64         `json:"booking_total_pence"`
}

type checkoutResponse struct {
	Quote   booking.Quote    `json:"quote"`
	Session checkout.Session `json:"session"`
}

type studioResponse struct {
	catalog.Studio
	Packages []pricing.PricingPackage `json:"packages"`
}

type catalogResponse struct {
	Studios []studioResponse `json:"studios"`
	AddOns  []pricing.AddOn  `json:"add_ons"`
}

type slotsResponse struct {
	Studio models.Studio    `json:"studio"`
	Date   string           `json:"date"`
	Slots  []slots.SlotInfo `json:"slots"`
}

type startsResponse struct {
	Studio models.Studio `json:"studio"`
	Date   string        `json:"date"`
	Starts []string      `json:"starts"`
}

func (h *Handler) request(b bookingBody) (models.BookingRequest, error) {
	req := models.BookingRequest{Studio: b.Studio, DurationHours: b.DurationHours}
	if b.StartTime != nil {
		req.StartTime = *b.StartTime
		return req, nil
	}
	if b.Date == "" || b.Start == "" {
		return req, fmt.Errorf("start_time or date and start are required")
	}
	day, err := time.ParseInLocation(dateFormat, b.Date, h.svc.Rules().Schedule.Location())
	if err != nil {
		return req, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", b.Date)
	}
	req.StartTime, err = slots.OnDate(day, b.Start)
	return req, err
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, reason, ok := classify(err)
	if !ok {
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		respondError(w, status, "internal", "internal error")
		return
	}
	h.logger.Debug().Err(err).Str("path", r.URL.Path).Str("reason", reason).Msg("request rejected")
	respondError(w, status, reason, err.Error())
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	return true
}

// Catalog handles GET /api/studios.
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	cat, err := h.svc.Catalog()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := catalogResponse{AddOns: cat.AddOns}
	for _, s := range cat.Studios {
		resp.Studios = append(resp.Studios, studioResponse{Studio: s, Packages: cat.PackagesFor(s.ID)})
	}
	respondJSON(w, http.StatusOK, resp)
}

// dayQuery reads studio, date and hours (default 1) from the query string. On failure it
// has already written a 400 response.
func (h *Handler) dayQuery(w http.ResponseWriter, r *http.Request) (studio models.Studio, date time.Time, hours float64, ok bool) {
	q := r.URL.Query()
	studio = models.Studio(strings.TrimSpace(q.Get("studio")))
	if studio == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "studio is required")
		return "", time.Time{}, 0, false
	}

	date, err := time.ParseInLocation(dateFormat, q.Get("date"), h.svc.Rules().Schedule.Location())
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "date must be YYYY-MM-DD")
		return "", time.Time{}, 0, false
	}

	hours = 1
	if v := q.Get("hours"); v != "" {
		if hours, err = strconv.ParseFloat(v, 64); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "hours must be a number")
			return "", time.Time{}, 0, false
		}
	}
	return studio, date, hours, true
}

// Slots handles GET /api/slots?studio=studio-1&date=2026-01-17&hours=2.
func (h *Handler) Slots(w http.ResponseWriter, r *http.Request) {
	studio, date, hours, ok := h.dayQuery(w, r)
	if !ok {
		return
	}

	day, err := h.svc.DaySlots(r.Context(), studio, date, hours)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, slotsResponse{Studio: studio, Date: date.Format(dateFormat), Slots: day})
}

// AvailableStarts handles GET /api/slots/available with the same query as Slots.
func (h *Handler) AvailableStarts(w http.ResponseWriter, r *http.Request) {
	studio, date, hours, ok := h.dayQuery(w, r)
	if !ok {
		return
	}

	starts, err := h.svc.AvailableStarts(r.Context(), studio, date, hours)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, startsResponse{Studio: studio, Date: date.Format(dateFormat), Starts: starts})
}

// Availability handles POST /api/availability. A rejected slot is still a 200 response.
func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	var body bookingBody
	if !decode(w, r, &body) {
		return
	}
	req, err := h.request(body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	res, err := h.svc.CheckAvailability(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *Handler) quoteRequest(w http.ResponseWriter, r *http.Request) (booking.QuoteRequest, bool) {
	var body quoteBody
	if !decode(w, r, &body) {
		return booking.QuoteRequest{}, false
	}
	req, err := h.request(body.bookingBody)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return booking.QuoteRequest{}, false
	}
	return booking.QuoteRequest{
		Booking:      req,
		AddOns:       body.AddOns,
		DiscountCode: body.DiscountCode,
		Email:        body.Email,
	}, true
}

// Quote handles POST /api/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	req, ok := h.quoteRequest(w, r)
	if !ok {
		return
	}
	q, err := h.svc.Quote(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, q)
}

// ValidateDiscount handles POST /api/discounts/validate.
func (h *Handler) ValidateDiscount(w http.ResponseWriter, r *http.Request) {
	var body discountBody
	if !decode(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Code) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "code is required")
		return
	}

	out, err := h.svc.ValidateDiscount(r.Context(), body.Code, discount.Context{
		Email:             body.Email,
		Studio:            body.Studio,
		BookingTotalPence: body.BookingTotalPence,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

// Checkout handles POST /api/checkout.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	req, ok := h.quoteRequest(w, r)
	if !ok {
		return
	}
	q, sess, err := h.svc.Checkout(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info().Str("quote_id", q.ID).Str("session_id", sess.ID).Msg("checkout session created")
	respondJSON(w, http.StatusCreated, checkoutResponse{Quote: q, Session: sess})
}

// PriceList handles GET /api/price-list.xlsx. The workbook is built in memory so a failure
// can still be reported as JSON.
func (h *Handler) PriceList(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.svc.WritePriceList(&buf); err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="price-list.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = buf.WriteTo(w)
}
