// Package api exposes the booking service as a JSON HTTP API.
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// NewRouter registers the /api routes.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(h.logRequests)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/studios", h.Catalog).Methods(http.MethodGet)
	api.HandleFunc("/slots", h.Slots).Methods(http.MethodGet)
	api.HandleFunc("/slots/available", h.AvailableStarts).Methods(http.MethodGet)
	api.HandleFunc("/availability", h.Availability).Methods(http.MethodPost)
	api.HandleFunc("/quote", h.Quote).Methods(http.MethodPost)
	api.HandleFunc("/discounts/validate", h.ValidateDiscount).Methods(http.MethodPost)
	api.HandleFunc("/checkout", h.Checkout).Methods(http.MethodPost)
	api.HandleFunc("/price-list.xlsx", h.PriceList).Methods(http.MethodGet)

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}
