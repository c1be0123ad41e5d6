// Package tenant resolves the tenant and acting user for a request.
// Every data-plane route requires an X-Tenant-Id header; the tenant id
// partitions all reads and writes. X-Okapi-Tenant is accepted as an
// alias for interoperability with existing clients.
package tenant

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

const (
	HeaderTenant      = "X-Tenant-Id"
	HeaderTenantAlias = "X-Okapi-Tenant"
	HeaderUser        = "X-User-Id"
)

type ctxKeyTenant struct{}
type ctxKeyUser struct{}

func FromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyTenant{}).(string)
	return v, ok
}

// UserFromContext returns the acting user id, empty when the caller did
// not identify one.
func UserFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyUser{}).(string)
	return v
}

func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, ctxKeyTenant{}, tenantID)
}

func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKeyUser{}, userID)
}

// Require rejects requests that carry no tenant header with 400 before
// the handler runs.
func Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID := strings.TrimSpace(r.Header.Get(HeaderTenant))
		if tenantID == "" {
			tenantID = strings.TrimSpace(r.Header.Get(HeaderTenantAlias))
		}
		if tenantID == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": "missing " + HeaderTenant + " header",
			})
			return
		}

		ctx := WithTenant(r.Context(), tenantID)
		if userID := strings.TrimSpace(r.Header.Get(HeaderUser)); userID != "" {
			ctx = WithUser(ctx, userID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
