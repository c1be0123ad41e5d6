package auth

import (
	"encoding/json"
	"net/http"

	"github.com/confkit-labs/confkit-go/internal/platform/tenant"
)

// Identify resolves the caller's identity and records it as the acting
// user for the request. A resolvable-but-invalid credential is rejected
// with 401; an anonymous identity in headers mode passes through.
func Identify(authenticator Authenticator, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := authenticator.Authenticate(r.Context(), r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "unauthorized"})
			return
		}
		ctx := r.Context()
		if identity.Subject != "" {
			ctx = tenant.WithUser(ctx, identity.Subject)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
