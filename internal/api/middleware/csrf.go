// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"net/url"
	"slices"
	"strings"
)

// CSRFProtection guards state-changing routes against cross-site browser
// requests. The caller's origin comes from Origin, or from Referer when
// Origin is absent; it must be same-origin or listed in allowedOrigins
// ("*" allows any). Requests without either header are not from a browser
// and pass through.
func CSRFProtection(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.TrimSuffix(o, "/")] = struct{}{}
	}
	_, allowAll := allowed["*"]

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !mutating(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			origin := callerOrigin(r)
			if origin == "" || allowAll || origin == targetOrigin(r) {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := allowed[origin]; ok {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"cross-origin request not allowed","code":"FORBIDDEN_ORIGIN"}` + "\n"))
		})
	}
}

func mutating(method string) bool {
	return slices.Contains([]string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}, method)
}

// callerOrigin returns scheme://host of the page that issued r, or "".
func callerOrigin(r *http.Request) string {
	if o := r.Header.Get("Origin"); o != "" {
		return strings.TrimSuffix(o, "/")
	}
	ref := r.Header.Get("Referer")
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// targetOrigin is the origin r was addressed to, honouring a proxy's
// X-Forwarded-Proto.
func targetOrigin(r *http.Request) string {
	if r.Host == "" {
		return ""
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	return scheme + "://" + r.Host
}
