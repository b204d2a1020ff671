package gateway

import (
	"errors"
	"net/http"

	"encoding/json"

	"shopgate/internal/billing"
	"shopgate/internal/ratelimit"
	"shopgate/internal/shopify"
	"shopgate/pkg/shops"
)

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail any) {
	writeJSON(w, map[string]any{"detail": detail}, status)
}

// writeDomainError maps domain errors to their fixed status codes and
// structured bodies. Unknown errors degrade to a generic 502 so internal
// detail never leaks.
func (a *App) writeDomainError(w http.ResponseWriter, r *http.Request, shop string, err error) {
	var notInstalled *shops.NotInstalledError
	if errors.As(err, &notInstalled) {
		installURL := a.InstallURL(notInstalled.Shop, r.URL.Query().Get("host"))
		if installURL == "" {
			installURL = notInstalled.InstallURL
		}
		writeJSON(w, map[string]any{
			"detail": map[string]any{"error": "shop_not_installed", "install_url": installURL},
		}, http.StatusUnauthorized)
		return
	}
	var userErrs *billing.UserErrorsError
	if errors.As(err, &userErrs) {
		writeDetail(w, http.StatusBadRequest, userErrs.Errors)
		return
	}
	var status *shopify.StatusError
	switch {
	case errors.Is(err, ratelimit.ErrRateLimited):
		writeDetail(w, http.StatusTooManyRequests, "Rate limit exceeded.")
	case errors.Is(err, billing.ErrBillingNotActive):
		writeDetail(w, http.StatusPaymentRequired, "Active billing subscription required.")
	case errors.Is(err, billing.ErrPriceMismatch):
		writeDetail(w, http.StatusBadRequest, "Invalid price.")
	case errors.Is(err, shopify.ErrUpstreamUnavailable):
		writeDetail(w, http.StatusBadGateway, "Upstream unavailable. Please try again.")
	case errors.As(err, &status):
		// Pass the upstream status through without its body.
		writeDetail(w, status.StatusCode, "Upstream request failed.")
	default:
		a.log.Errorw("request failed", "shop", shop, "path", r.URL.Path, "err", err)
		writeDetail(w, http.StatusBadGateway, "Upstream unavailable. Please try again.")
	}
}

// requireShop pulls the authoritative shop for a handler. Responds 401 and
// returns "" when no shop context exists.
func (a *App) requireShop(w http.ResponseWriter, r *http.Request, derived string) string {
	shop := shopContext(derived, r.URL.Query().Get("shop"))
	if shop == "" {
		writeDetail(w, http.StatusUnauthorized, "Missing shop context.")
		return ""
	}
	return shop
}

// shopRecord loads the stored credential, writing the structured
// not-installed response on miss.
func (a *App) shopRecord(w http.ResponseWriter, r *http.Request, shop string) (shops.Record, bool) {
	rec, err := a.store.Get(r.Context(), shop)
	if err != nil {
		a.writeDomainError(w, r, shop, err)
		return shops.Record{}, false
	}
	return rec, true
}
