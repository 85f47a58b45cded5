// Package checkout hands a final quote to Stripe Checkout. Payment capture happens on Stripe.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"

	"studiobook/internal/money"
	"studiobook/internal/pricing"
)

var (
	ErrNotConfigured = errors.New("checkout is not configured")
	ErrNothingToPay  = errors.New("order total must be positive")
)

// Options configures the Stripe client.
type Options struct {
	SecretKey  string
	SuccessURL string
	CancelURL  string
	Currency   string
	// BackendURL overrides the Stripe API base URL.
	BackendURL string
}

// Order is a priced, discounted booking ready for payment.
type Order struct {
	QuoteID       string
	Studio        string
	StartTime     time.Time
	DurationLabel string
	Email         string
	Breakdown     []pricing.Line
	DiscountCode  string
	DiscountPence int64
	TotalPence    int64
}

// Session is the created checkout session.
type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type Service struct {
	sessions session.Client
	opts     Options
	logger   *zerolog.Logger
}

func NewService(opts Options, logger *zerolog.Logger) *Service {
	if opts.Currency == "" {
		opts.Currency = "gbp"
	}

	backend := stripe.GetBackend(stripe.APIBackend)
	if opts.BackendURL != "" {
		backend = stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			URL: stripe.String(opts.BackendURL),
		})
	}

	l := logger.With().Str("component", "checkout").Logger()
	return &Service{
		sessions: session.Client{B: backend, Key: opts.SecretKey},
		opts:     opts,
		logger:   &l,
	}
}

// Enabled reports whether a Stripe key is configured.
func (s *Service) Enabled() bool {
	return s.opts.SecretKey != ""
}

// CreateSession creates a Stripe Checkout session charging the order total as a single
// line item. The breakdown travels in the session metadata.
func (s *Service) CreateSession(ctx context.Context, order Order) (Session, error) {
	if !s.Enabled() {
		return Session{}, ErrNotConfigured
	}
	if order.TotalPence <= 0 {
		return Session{}, fmt.Errorf("%w: got %d", ErrNothingToPay, order.TotalPence)
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(s.opts.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(productName(order)),
					},
					UnitAmount: stripe.Int64(order.TotalPence),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.opts.SuccessURL),
		CancelURL:         stripe.String(s.opts.CancelURL),
		ClientReferenceID: stripe.String(order.QuoteID),
	}
	if order.Email != "" {
		params.CustomerEmail = stripe.String(order.Email)
	}
	params.Context = ctx
	for k, v := range metadata(order) {
		params.AddMetadata(k, v)
	}

	sess, err := s.sessions.New(params)
	if err != nil {
		return Session{}, fmt.Errorf("create checkout session: %w", err)
	}

	s.logger.Info().
		Str("quote_id", order.QuoteID).
		Str("session_id", sess.ID).
		Int64("total_pence", order.TotalPence).
		Msg("checkout session created")
	return Session{ID: sess.ID, URL: sess.URL}, nil
}

func productName(o Order) string {
	name := fmt.Sprintf("%s booking %s", o.Studio, o.StartTime.Format("2006-01-02 15:04"))
	if o.DurationLabel != "" {
		name += " (" + o.DurationLabel + ")"
	}
	return name
}

// metadata flattens the order for Stripe, which allows string values only.
func metadata(o Order) map[string]string {
	m := map[string]string{
		"quote_id":    o.QuoteID,
		"studio":      o.Studio,
		"start_time":  o.StartTime.Format(time.RFC3339),
		"total_pence": fmt.Sprint(o.TotalPence),
	}
	lines := make([]string, 0, len(o.Breakdown))
	for _, l := range o.Breakdown {
		lines = append(lines, fmt.Sprintf("%s: %s", l.Label, money.FormatGBP(l.PricePence)))
	}
	m["breakdown"] = truncate(strings.Join(lines, "; "), 500)
	if o.DiscountCode != "" {
		m["discount_code"] = o.DiscountCode
		m["discount_pence"] = fmt.Sprint(o.DiscountPence)
	}
	return m
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
