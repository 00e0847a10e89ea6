package middleware

import (
	"crypto/subtle"
	"net/http"

	"memberhub-api/pkg/apierror"
	"memberhub-api/pkg/response"
)

// NewSharedSecret builds a middleware requiring an exact match between the
// given header and the configured secret. An empty configured secret locks
// the route group out entirely rather than leaving it open.
func NewSharedSecret(header, secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(header)
			if secret == "" || got == "" ||
				subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				response.Error(w, apierror.Unauthorized("invalid or missing "+header))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
