package api

import (
	"errors"
	"net/http"

	"cryptoadvisor/pkg/advisor"
)

// writeCoreError maps a pipeline error to its HTTP status. Only a rejected
// request is the client's fault; anything else is reported as a server-side
// failure, matching what callers of the original endpoint expect.
func writeCoreError(w http.ResponseWriter, err error) {
	var advErr *advisor.Error
	if errors.As(err, &advErr) {
		writeError(w, mapErrorCodeToHTTPStatus(advErr.Code), advErr.Message)
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func mapErrorCodeToHTTPStatus(code advisor.ErrorCode) int {
	switch code {
	case advisor.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case advisor.ErrCodeServiceUnavailable, advisor.ErrCodeUpstream,
		advisor.ErrCodeDatabase, advisor.ErrCodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
