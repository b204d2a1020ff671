package gateway

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the gateway surface on the router. Session-token
// enforcement happens in the middleware chain; install/callback/webhooks
// are exempt there and carry their own verification.
func (a *App) RegisterRoutes(r chi.Router) {
	r.Get("/shopify/health", a.health)

	r.Get("/shopify/install", a.install)
	r.Get("/shopify/oauth/callback", a.oauthCallback)

	r.Post("/shopify/webhooks/compliance", a.webhookCompliance)
	// Canonical slash-delimited topics plus legacy underscore URLs; both
	// route identically.
	for path, deleteShop := range map[string]bool{
		"/shopify/webhooks/app/uninstalled":        true,
		"/shopify/webhooks/shop/redact":            true,
		"/shopify/webhooks/customers/data_request": false,
		"/shopify/webhooks/customers/redact":       false,
		"/shopify/webhooks/app_uninstalled":        true,
		"/shopify/webhooks/shop_redact":            true,
		"/shopify/webhooks/customers_data_request": false,
		"/shopify/webhooks/customers_redact":       false,
	} {
		r.Post(path, a.webhookHandler(deleteShop))
	}

	r.Get("/shopify/billing/active", a.billingActive)
	r.Post("/shopify/billing/ensure", a.billingEnsure)
	r.Post("/shopify/billing/usage", a.billingUsage)

	r.Get("/shopify/products", a.listProducts)
	r.Get("/shopify/products/{productID}/images", a.listProductImages)
	r.Post("/shopify/products/{productID}/images", a.uploadProductImage)
	r.Get("/shopify/images/fetch", a.fetchImage)

	r.Post("/shopify/optimize-listing", a.optimizeListing)
}

func (a *App) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{"ok": true, "timestamp": time.Now().UTC().Format(time.RFC3339)}, http.StatusOK)
}
