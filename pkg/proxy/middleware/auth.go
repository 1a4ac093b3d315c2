package middleware

import (
	"net/http"

	"tollbooth-hq/tollbooth/pkg/proxy"
)

// SecretHeader carries the shared internal secret.
const SecretHeader = proxy.SecretHeader

// RequireSecret rejects requests whose X-Internal-Secret does not pass
// authenticate. It guards the non-admission routes; the admission pipeline
// authenticates completion requests itself.
func RequireSecret(authenticate func(secret string) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := authenticate(r.Header.Get(SecretHeader)); err != nil {
				_ = proxy.WriteErrorResponse(w, proxy.HandleError(err))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
