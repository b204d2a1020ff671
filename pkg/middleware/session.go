// pkg/middleware/session.go
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"shopgate/internal/auth"
)

type ctxShopKey struct{}

// WithShop stores the verified shop domain in the context.
func WithShop(ctx context.Context, shop string) context.Context {
	return context.WithValue(ctx, ctxShopKey{}, shop)
}

// ShopFrom returns the shop placed in context by RequireSession, or "".
func ShopFrom(ctx context.Context) string {
	if v := ctx.Value(ctxShopKey{}); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// publicPaths are exempt from session-token interception: the OAuth
// install/callback pair, webhook deliveries (signature-verified instead),
// the app shell and health.
var publicPaths = map[string]struct{}{
	"/shopify/install":                         {},
	"/shopify/oauth/callback":                  {},
	"/shopify/health":                          {},
	"/shopify/webhooks/compliance":             {},
	"/shopify/webhooks/app/uninstalled":        {},
	"/shopify/webhooks/customers/data_request": {},
	"/shopify/webhooks/customers/redact":       {},
	"/shopify/webhooks/shop/redact":            {},
	"/shopify/webhooks/app_uninstalled":        {},
	"/shopify/webhooks/customers_data_request": {},
	"/shopify/webhooks/customers_redact":       {},
	"/shopify/webhooks/shop_redact":            {},
}

func isPublicPath(path string) bool {
	if strings.HasPrefix(path, "/shopify/app") {
		return true
	}
	if !strings.HasPrefix(path, "/shopify/") {
		return true
	}
	_, ok := publicPaths[path]
	return ok
}

// RequireSession validates the embedded-app session token on every
// protected path and attaches the derived shop to the request context.
// The bearer header is preferred; an id_token query parameter is accepted
// for top-level navigations where headers are unavailable. Any failure is
// a structured JSON 401; a panic here must not fall through to a generic
// 500 that could mask an auth bypass.
func RequireSession(verifier *auth.SessionVerifier, log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			raw := ""
			if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
				raw = strings.TrimPrefix(authz, "Bearer ")
			} else {
				raw = r.URL.Query().Get("id_token")
			}
			if raw == "" {
				writeDetail(w, http.StatusUnauthorized, "Missing session token.")
				return
			}

			_, shop, err := verifier.Verify(raw)
			if err != nil {
				log.Warnw("session rejected", "path", r.URL.Path, "reason", rejectReason(err))
				writeDetail(w, http.StatusUnauthorized, rejectDetail(err))
				return
			}
			if err := auth.CheckShop(shop, r.URL.Query().Get("shop")); err != nil {
				writeDetail(w, http.StatusUnauthorized, "Shop context mismatch.")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithShop(r.Context(), shop)))
		})
	}
}

// rejectDetail maps validation errors to fixed response strings; claim
// contents never reach the caller.
func rejectDetail(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return "Session token expired."
	case errors.Is(err, auth.ErrInvalidIssuer):
		return "Invalid session token issuer."
	default:
		return "Invalid session token."
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return "expired"
	case errors.Is(err, auth.ErrInvalidIssuer):
		return "issuer"
	default:
		return "invalid"
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
