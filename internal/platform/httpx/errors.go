// Package httpx provides HTTP response utilities.
package httpx

import (
	"net/http"

	"github.com/labdesk/labdesk/internal/shared"
)

// StatusFor maps a workflow error kind onto an HTTP status code.
func StatusFor(kind shared.Kind) int {
	switch kind {
	case shared.KindValidation:
		return http.StatusBadRequest
	case shared.KindInvalidTransition:
		return http.StatusConflict
	case shared.KindNotFound:
		return http.StatusNotFound
	case shared.KindConflict:
		return http.StatusConflict
	case shared.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusServiceUnavailable
	}
}

// RespondError writes err as an error Result envelope.
func RespondError(w http.ResponseWriter, err error) {
	res := shared.Fail[any](err)
	if res.Error.Kind == shared.KindPersistence {
		res.Error.Message = "storage temporarily unavailable"
	}
	if res.Error.Retryable {
		w.Header().Set("Retry-After", "1")
	}
	JSON(w, StatusFor(res.Error.Kind), res)
}

// Respond writes a (value, error) pair as a Result envelope.
func Respond[T any](w http.ResponseWriter, status int, data T, err error) {
	if err != nil {
		RespondError(w, err)
		return
	}
	JSON(w, status, shared.OK(data))
}
