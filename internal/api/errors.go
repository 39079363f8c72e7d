// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bacco007/webepg/internal/epg"
	"github.com/bacco007/webepg/internal/jobs"
	applog "github.com/bacco007/webepg/internal/log"
	"github.com/bacco007/webepg/internal/store"
)

// Error codes returned in the "code" field of error responses.
const (
	CodeInvalidTimezone     = "INVALID_TIMEZONE"
	CodeInvalidDate         = "INVALID_DATE_FORMAT"
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeSourceNotFound      = "SOURCE_NOT_FOUND"
	CodeChannelNotFound     = "CHANNEL_NOT_FOUND"
	CodeProgrammingNotFound = "PROGRAMMING_NOT_FOUND"
	CodeAlreadyRunning      = "ALREADY_RUNNING"
	CodeInternal            = "INTERNAL_ERROR"
)

var (
	errInvalidDate    = errors.New("invalid date, expected YYYYMMDD")
	errNoProgramming  = errors.New("no programming found")
	errInvalidRequest = errors.New("invalid request body")
)

// APIError is the JSON body of every error response.
type APIError struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status and error code. Unknown errors are
// logged and reported as 500 without their detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := classify(err)
	body := APIError{
		Error:     msg,
		Code:      code,
		RequestID: applog.RequestIDFromContext(r.Context()),
	}
	if status == http.StatusInternalServerError {
		logger := applog.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).
			Str(applog.FieldEvent, "api.internal_error").
			Str(applog.FieldPath, r.URL.Path).
			Msg("request failed")
	} else {
		body.Detail = err.Error()
	}
	writeJSON(w, status, body)
}

func classify(err error) (status int, code, msg string) {
	var tzErr *epg.UnknownTimezoneError
	switch {
	case errors.As(err, &tzErr):
		return http.StatusBadRequest, CodeInvalidTimezone, "unknown or invalid timezone"
	case errors.Is(err, errInvalidDate):
		return http.StatusBadRequest, CodeInvalidDate, "invalid date format"
	case errors.Is(err, errInvalidRequest):
		return http.StatusBadRequest, CodeInvalidRequest, "invalid request"
	case errors.Is(err, store.ErrSourceNotFound):
		return http.StatusNotFound, CodeSourceNotFound, "source not found"
	case errors.Is(err, store.ErrChannelNotFound):
		return http.StatusNotFound, CodeChannelNotFound, "channel not found"
	case errors.Is(err, errNoProgramming):
		return http.StatusNotFound, CodeProgrammingNotFound, "programming not found"
	case errors.Is(err, jobs.ErrAlreadyRunning):
		return http.StatusConflict, CodeAlreadyRunning, "ingestion already running"
	}
	return http.StatusInternalServerError, CodeInternal, "internal server error"
}
