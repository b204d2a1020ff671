// pkg/middleware/csp.go
package middleware

import (
	"net/http"
	"strings"

	"shopgate/internal/auth"
	"shopgate/internal/shopify"
)

// CSP restricts which admin surfaces may frame the embedded app. The shop
// is resolved from the query, the host parameter or the bearer token; when
// none resolves, only the platform admin hosts are allowed.
func CSP(verifier *auth.SessionVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			shop := r.URL.Query().Get("shop")
			if !shopify.IsValidShopDomain(shop) {
				shop = shopify.ShopFromHost(r.URL.Query().Get("host"))
			}
			if !shopify.IsValidShopDomain(shop) {
				shop = ""
				if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
					if _, s, err := verifier.Verify(strings.TrimPrefix(authz, "Bearer ")); err == nil {
						shop = s
					}
				}
			}
			frameAncestors := "https://admin.shopify.com https://*.myshopify.com"
			if shopify.IsValidShopDomain(shop) {
				frameAncestors = "https://" + shop + " https://admin.shopify.com"
			}
			w.Header().Set("Content-Security-Policy", "frame-ancestors "+frameAncestors+";")
			w.Header().Del("X-Frame-Options")
			next.ServeHTTP(w, r)
		})
	}
}
