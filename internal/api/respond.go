package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"studiobook/internal/availability"
	"studiobook/internal/booking"
	"studiobook/internal/catalog"
	"studiobook/internal/checkout"
	"studiobook/internal/discount"
	"studiobook/internal/pricing"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, reason, msg string) {
	respondJSON(w, status, ErrorResponse{Error: msg, Reason: reason})
}

// classify maps service errors to a status and reason code. ok is false for unexpected
// errors, which are reported as 500 without detail.
func classify(err error) (status int, reason string, ok bool) {
	if r := discount.ReasonCode(err); r != "" {
		return http.StatusUnprocessableEntity, r, true
	}
	switch {
	case errors.Is(err, availability.ErrInvalidDuration):
		return http.StatusBadRequest, "invalid_duration", true
	case errors.Is(err, availability.ErrOutsideOperatingHours):
		return http.StatusUnprocessableEntity, "outside_operating_hours", true
	case errors.Is(err, availability.ErrSlotConflict), errors.Is(err, booking.ErrUnavailable):
		return http.StatusConflict, "slot_unavailable", true
	case errors.Is(err, catalog.ErrUnknownStudio):
		return http.StatusNotFound, "unknown_studio", true
	case errors.Is(err, catalog.ErrPackageNotFound):
		return http.StatusUnprocessableEntity, "package_not_found", true
	case errors.Is(err, pricing.ErrAddOnQuantityExceeded):
		return http.StatusUnprocessableEntity, "add_on_quantity_exceeded", true
	case errors.Is(err, pricing.ErrUnknownAddOn):
		return http.StatusUnprocessableEntity, "unknown_add_on", true
	case errors.Is(err, pricing.ErrInvalidQuantity):
		return http.StatusBadRequest, "invalid_quantity", true
	case errors.Is(err, checkout.ErrNothingToPay):
		return http.StatusUnprocessableEntity, "nothing_to_pay", true
	case errors.Is(err, checkout.ErrNotConfigured), errors.Is(err, booking.ErrCatalogNotLoaded):
		return http.StatusServiceUnavailable, "unavailable", true
	}
	return http.StatusInternalServerError, "", false
}
