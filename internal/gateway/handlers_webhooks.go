package gateway

import (
	"io"
	"net/http"

	"shopgate/internal/auth"
	"shopgate/internal/shopify"
)

const webhookHMACHeader = "X-Shopify-Hmac-Sha256"

// webhookHandler verifies the delivery signature over the raw body and,
// for uninstall/redaction topics, removes the shop's credential record.
// The body must be read before anything parses it; the signature covers
// the exact wire bytes.
func (a *App) webhookHandler(deleteShop bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
		if err != nil {
			webhooksTotal.WithLabelValues("rejected").Inc()
			writeDetail(w, http.StatusUnauthorized, "Invalid webhook signature.")
			return
		}
		if !auth.VerifyWebhookHMAC(raw, r.Header.Get(webhookHMACHeader), a.cfg.APISecret) {
			webhooksTotal.WithLabelValues("rejected").Inc()
			writeDetail(w, http.StatusUnauthorized, "Invalid webhook signature.")
			return
		}
		if deleteShop {
			shop := r.Header.Get("X-Shopify-Shop-Domain")
			if shopify.IsValidShopDomain(shop) {
				if err := a.store.Delete(r.Context(), shop); err != nil {
					// Respond 401 so the platform redelivers.
					a.log.Errorw("webhook shop delete failed", "shop", shop, "err", err)
					webhooksTotal.WithLabelValues("failed").Inc()
					writeDetail(w, http.StatusUnauthorized, "Invalid webhook signature.")
					return
				}
				a.log.Infow("shop record deleted", "shop", shop)
			}
		}
		webhooksTotal.WithLabelValues("ok").Inc()
		writeJSON(w, map[string]any{"ok": true}, http.StatusOK)
	}
}

// webhookCompliance is the single combined endpoint for GDPR topics; the
// topic header decides whether the shop record is redacted.
func (a *App) webhookCompliance(w http.ResponseWriter, r *http.Request) {
	if a.cfg.APISecret == "" {
		writeDetail(w, http.StatusUnauthorized, "Invalid webhook signature.")
		return
	}
	deleteShop := r.Header.Get("X-Shopify-Topic") == "shop/redact"
	a.webhookHandler(deleteShop)(w, r)
}
