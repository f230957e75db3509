package api

import (
	"context"
	"encoding/json"
	"net/http"

	"crimewatch/pkg/errors"
	"crimewatch/pkg/logger"
)

// errorBody is the JSON shape of every failed response
type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	Value string `json:"value,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps a service error to its HTTP status and client-safe body.
// Anything unrecognized is a 500 with an opaque message.
func statusFor(err error) (int, errorBody) {
	var unknown *errors.UnknownCategoryError
	var invalid *errors.ValidationError

	switch {
	case errors.As(err, &unknown):
		return http.StatusBadRequest, errorBody{Error: "unknown category", Field: unknown.Field, Value: unknown.Value}
	case errors.As(err, &invalid):
		return http.StatusBadRequest, errorBody{Error: invalid.Message, Field: invalid.Field}
	case errors.Is(err, errors.ErrInvalidInput):
		return http.StatusBadRequest, errorBody{Error: err.Error()}
	case errors.Is(err, errors.ErrAlreadyExists):
		return http.StatusConflict, errorBody{Error: err.Error()}
	case errors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: "not found"}
	case errors.Is(err, errors.ErrModelUnavailable):
		return http.StatusServiceUnavailable, errorBody{Error: "prediction model unavailable"}
	case errors.Is(err, errors.ErrUnavailable):
		return http.StatusServiceUnavailable, errorBody{Error: "service unavailable"}
	case errors.Is(err, errors.ErrRateLimitExceeded):
		return http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"}
	case errors.Is(err, errors.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errorBody{Error: "request timed out"}
	default:
		return http.StatusInternalServerError, errorBody{Error: "internal error"}
	}
}

// writeError renders err. 5xx errors other than known unavailability are
// logged and forwarded to the error tracker.
func writeError(w http.ResponseWriter, r *http.Request, log *logger.Logger, route string, err error) {
	code, body := statusFor(err)
	switch {
	case code == http.StatusInternalServerError || code == http.StatusGatewayTimeout:
		log.ErrorWithContext(r.Context(), err, map[string]string{"route": route})
	case code == http.StatusServiceUnavailable:
		log.Warnw("Dependency unavailable", "route", route, "error", err)
	default:
		log.Debugw("Request rejected", "route", route, "status", code, "error", err)
	}
	writeJSON(w, code, body)
}

// decode reads a JSON body into dst, reporting malformed input as invalid
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		return errors.Wrapf(errors.ErrInvalidInput, "malformed JSON body: %v", err)
	}
	return nil
}
