// SPDX-License-Identifier: MIT

package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/google/uuid"

	applog "github.com/bacco007/webepg/internal/log"
)

// RequestIDHeader carries the request correlation id.
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLen = 128

// RequestID propagates a caller supplied X-Request-ID or assigns a new
// UUID, echoes it in the response and stores it in the request context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(applog.ContextWithRequestID(r.Context(), id)))
	})
}

// Recoverer turns a handler panic into a JSON 500 response and logs the
// stack. http.ErrAbortHandler is re-raised so the server aborts the
// connection as intended.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel compared by identity as net/http does
				panic(rec)
			}
			logger := applog.WithComponentFromContext(r.Context(), "http")
			logger.Error().
				Str(applog.FieldEvent, "http.panic").
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("method", r.Method).
				Str(applog.FieldPath, r.URL.Path).
				Msg("recovered from handler panic")

			reqID := applog.RequestIDFromContext(r.Context())
			if reqID == "" {
				reqID = w.Header().Get(RequestIDHeader)
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":      "internal server error",
				"code":       "INTERNAL_ERROR",
				"request_id": reqID,
			})
		}()
		next.ServeHTTP(w, r)
	})
}
