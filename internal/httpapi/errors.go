package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"lottied/internal/fetch"
	"lottied/internal/format"
	"lottied/internal/manager"
	"lottied/internal/player"
	"lottied/internal/renderer"
	"lottied/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var he HTTPError
	switch {
	case errors.As(err, &he):
		return he.StatusCode()
	case manager.IsAnimationNotFound(err):
		return http.StatusNotFound
	case manager.IsTooBusy(err):
		return http.StatusTooManyRequests
	case manager.IsDependencyUnavailable(err), errors.Is(err, renderer.ErrDependencyUnavailable):
		return http.StatusServiceUnavailable
	case manager.IsInvalidRequest(err):
		return http.StatusBadRequest
	case fetch.IsFetchFailed(err):
		return http.StatusBadGateway
	case errors.Is(err, player.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, format.ErrUnparsable),
		errors.Is(err, renderer.ErrDecodeFailed),
		errors.Is(err, player.ErrNoFrame):
		return http.StatusUnprocessableEntity
	case errors.Is(err, player.ErrNotLoaded):
		return http.StatusConflict
	case errors.Is(err, player.ErrRecycled):
		return http.StatusGone
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// writeError maps err and writes it as a JSON error payload.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusTooManyRequests {
		countRejection(err)
	}
	writeJSONError(w, status, err.Error())
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}
