package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/sitepilot/control-plane/internal/proxy"
	"github.com/sitepilot/control-plane/pkg/models"
)

type contextKey string

const proxySiteContextKey contextKey = "proxy_site"

// ProxySiteFromContext returns the authenticated ProxySite a request
// was resolved to by ProxyAuth.
func ProxySiteFromContext(ctx context.Context) (*models.ProxySite, bool) {
	site, ok := ctx.Value(proxySiteContextKey).(*models.ProxySite)
	return site, ok
}

// ProxyAuth authenticates inbound proxy requests by their bearer token
// against gw, attaching the resolved ProxySite to the request context.
func ProxyAuth(gw *proxy.Gateway) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				http.Error(w, `{"error":"missing bearer token"}`, http.StatusUnauthorized)
				return
			}

			site, err := gw.Authenticate(r.Context(), token)
			if err != nil {
				http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), proxySiteContextKey, site)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// AdminAuth gates the admin surface behind a shared secret compared in
// constant time.
func AdminAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("x-proxy-admin-secret")
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
