package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/zombor/siteledger/internal/job"
	"github.com/zombor/siteledger/internal/receipt"
	"github.com/zombor/siteledger/internal/timesheet"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads and validates a request body
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

// validationMessage lists each failing field with the rule it broke
func validationMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		parts = append(parts, fe.Field()+": "+fe.Tag())
	}
	return "invalid fields: " + strings.Join(parts, ", ")
}

// writeError maps engine errors onto HTTP statuses
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, receipt.ErrNotFound),
		errors.Is(err, timesheet.ErrNotFound),
		errors.Is(err, job.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		writeJSONError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, receipt.ErrInvalid),
		errors.Is(err, timesheet.ErrOutOfOrder),
		errors.Is(err, timesheet.ErrOutsideGeofence):
		writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, timesheet.ErrAlreadyClockedIn),
		errors.Is(err, timesheet.ErrNotClockedIn),
		errors.Is(err, timesheet.ErrShiftClosed),
		errors.Is(err, timesheet.ErrShiftOpen),
		errors.Is(err, timesheet.ErrImmutable):
		writeJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, receipt.ErrPersistence),
		errors.Is(err, timesheet.ErrPersistence):
		slog.Error("Storage unavailable", "error", err)
		w.Header().Set("Retry-After", "5")
		writeJSONError(w, http.StatusServiceUnavailable, "Storage temporarily unavailable, please retry")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeJSONError(w, http.StatusGatewayTimeout, "Request cancelled")
	default:
		slog.Error("Request failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Internal server error")
	}
}
