package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors handlers wrap to pick a response status.
var (
	ErrNotFound    = errors.New("resource not found")
	ErrValidation  = errors.New("validation failed")
	ErrUpstream    = errors.New("upstream failure")
	ErrUnavailable = errors.New("service unavailable")
)

// RespondError maps wrapped sentinel errors to RFC7807 responses. code is
// copied into the problem body when non-empty.
func RespondError(w http.ResponseWriter, err error, code string) {
	switch {
	case errors.Is(err, ErrNotFound):
		ProblemCode(w, http.StatusNotFound, "Not Found", err.Error(), code)
	case errors.Is(err, ErrValidation):
		ProblemCode(w, http.StatusBadRequest, "Validation Failed", err.Error(), code)
	case errors.Is(err, ErrUpstream):
		ProblemCode(w, http.StatusBadGateway, "Upstream Failure", err.Error(), code)
	case errors.Is(err, ErrUnavailable):
		ProblemCode(w, http.StatusServiceUnavailable, "Unavailable", err.Error(), code)
	default:
		ProblemCode(w, http.StatusInternalServerError, "Internal Error", "", code)
	}
}
