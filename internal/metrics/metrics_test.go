package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestRegisterIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

func TestCounters(t *testing.T) {
	before := counterValue(t, discountOutcomes.WithLabelValues("expired"))
	IncDiscount("expired")
	assert.Equal(t, before+1, counterValue(t, discountOutcomes.WithLabelValues("expired")))

	before = counterValue(t, checkoutSessions.WithLabelValues("created"))
	IncCheckout("created")
	assert.Equal(t, before+1, counterValue(t, checkoutSessions.WithLabelValues("created")))

	assert.NotPanics(t, func() {
		IncQuote("ok")
		IncAvailability("available")
		IncCatalogReload("ok")
		ObserveCalendarFetch("ok", 20*time.Millisecond)
	})
}
