package http

import (
	"context"
	"errors"
	"net/http"

	"battery-rental-backend/internal/domain"
	"battery-rental-backend/internal/logger"
	"battery-rental-backend/internal/registry"

	"github.com/go-chi/render"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code"`
	Ticket string `json:"ticket,omitempty"`
}

type errorMapping struct {
	err    error
	status int
	code   string
}

// checked in order; the first match wins
var errorMappings = []errorMapping{
	{domain.ErrInvalidArgument, http.StatusBadRequest, "invalid_argument"},
	{domain.ErrInvalidInterval, http.StatusBadRequest, "invalid_interval"},
	{domain.ErrNotFound, http.StatusNotFound, "rental_not_found"},
	{domain.ErrStationNotFound, http.StatusNotFound, "station_not_found"},
	{domain.ErrBatteryNotFound, http.StatusNotFound, "battery_not_found"},
	{domain.ErrCaseNotFound, http.StatusNotFound, "case_not_found"},
	{domain.ErrAccountNotFound, http.StatusNotFound, "account_not_found"},
	{domain.ErrInsufficientBalance, http.StatusPaymentRequired, "insufficient_balance"},
	{domain.ErrNoAvailableBattery, http.StatusConflict, "no_available_battery"},
	{domain.ErrConcurrencyLimitExceeded, http.StatusConflict, "concurrency_limit_exceeded"},
	{domain.ErrAlreadyClosed, http.StatusConflict, "already_closed"},
	{domain.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{domain.ErrBatteryAlreadyRented, http.StatusConflict, "battery_already_rented"},
	{domain.ErrReconciliationPending, http.StatusConflict, "reconciliation_pending"},
	{registry.ErrRegistryClosed, http.StatusServiceUnavailable, "shutting_down"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
}

// writeError renders err with the status its domain error maps to. Faults
// are logged and hidden behind a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ice *domain.InternalConsistencyError
	if errors.As(err, &ice) {
		logger.ErrorContext(r.Context(), "Internal consistency error", "ticket", ice.Ticket, "rentalID", ice.RentalID, "error", err)
		respond(w, r, http.StatusInternalServerError, ErrorResponse{
			Error:  ice.UserMessage(),
			Code:   "internal_consistency",
			Ticket: ice.Ticket,
		})
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			respond(w, r, m.status, ErrorResponse{Error: err.Error(), Code: m.code})
			return
		}
	}

	logger.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "error", err)
	respond(w, r, http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: "internal"})
}

func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	respond(w, r, http.StatusBadRequest, ErrorResponse{Error: msg, Code: "invalid_argument"})
}

func respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}
