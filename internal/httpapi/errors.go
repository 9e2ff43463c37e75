package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"fleetd/internal/entityset"
	"fleetd/internal/fleet"
	"fleetd/internal/hub"
	"fleetd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusFor maps command errors to HTTP status codes.
func statusFor(err error) int {
	var he HTTPError
	switch {
	case errors.As(err, &he):
		return he.StatusCode()
	case entityset.IsValidation(err), fleet.IsInvalidReport(err), fleet.IsCoerce(err),
		errors.Is(err, fleet.ErrUnknownField):
		return http.StatusBadRequest
	case entityset.IsInUse(err):
		return http.StatusConflict
	case hub.IsUnhandled(err):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && zlog != nil {
		zlog.Error().Err(err).Msg("encode response")
	}
}
