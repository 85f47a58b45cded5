package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	quotesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studiobook",
			Name:      "quotes_total",
			Help:      "Count of price quotes by outcome.",
		},
		[]string{"outcome"},
	)

	availabilityChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studiobook",
			Name:      "availability_checks_total",
			Help:      "Count of availability decisions by result.",
		},
		[]string{"result"},
	)

	discountOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studiobook",
			Name:      "discount_validations_total",
			Help:      "Count of discount code validations by reason.",
		},
		[]string{"reason"},
	)

	checkoutSessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studiobook",
			Name:      "checkout_sessions_total",
			Help:      "Count of checkout session attempts by status.",
		},
		[]string{"status"},
	)

	calendarFetch = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "studiobook",
			Name:      "calendar_fetch_seconds",
			Help:      "Latency of busy interval fetches.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	catalogReloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studiobook",
			Name:      "catalog_reloads_total",
			Help:      "Count of catalog reloads by status.",
		},
		[]string{"status"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(quotesTotal, availabilityChecks, discountOutcomes, checkoutSessions, calendarFetch, catalogReloads)
	})
}

func IncQuote(outcome string) {
	quotesTotal.WithLabelValues(outcome).Inc()
}

func IncAvailability(result string) {
	availabilityChecks.WithLabelValues(result).Inc()
}

// IncDiscount counts a validation; reason is "accepted" or a rejection code.
func IncDiscount(reason string) {
	discountOutcomes.WithLabelValues(reason).Inc()
}

func IncCheckout(status string) {
	checkoutSessions.WithLabelValues(status).Inc()
}

func ObserveCalendarFetch(status string, d time.Duration) {
	calendarFetch.WithLabelValues(status).Observe(d.Seconds())
}

func IncCatalogReload(status string) {
	catalogReloads.WithLabelValues(status).Inc()
}
