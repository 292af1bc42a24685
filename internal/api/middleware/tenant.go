package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/jsmcel/guideitor/internal/domain"
	"github.com/jsmcel/guideitor/internal/tenant"
)

type contextKey string

const tenantContextKey contextKey = "tenant"

// TenantFromContext returns the tenant resolved for this request.
func TenantFromContext(ctx context.Context) *domain.Tenant {
	t, _ := ctx.Value(tenantContextKey).(*domain.Tenant)
	return t
}

// ResolveTenant resolves the request's tenant from the X-Tenant-ID header or
// the tenant query parameter, falling back to the configured default. Unknown
// tenants are rejected before any handler runs.
func ResolveTenant(registry *tenant.Registry, defaultTenant string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Tenant-ID")
			if id == "" {
				id = r.URL.Query().Get("tenant")
			}
			if id == "" {
				id = defaultTenant
			}

			t, err := registry.Get(id)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusNotFound)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "unknown tenant: " + id})
				return
			}

			ctx := context.WithValue(r.Context(), tenantContextKey, t)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
