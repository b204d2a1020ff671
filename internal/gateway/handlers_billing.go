package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"shopgate/pkg/middleware"
)

func (a *App) billingActive(w http.ResponseWriter, r *http.Request) {
	shop := a.requireShop(w, r, middleware.ShopFrom(r.Context()))
	if shop == "" {
		return
	}
	rec, ok := a.shopRecord(w, r, shop)
	if !ok {
		return
	}
	subs, err := a.billing.ActiveSubscriptions(r.Context(), shop, rec.AccessToken)
	if err != nil {
		a.writeDomainError(w, r, shop, err)
		return
	}
	if subs == nil {
		subs = []any{}
	}
	writeJSON(w, map[string]any{"subscriptions": subs}, http.StatusOK)
}

func (a *App) billingEnsure(w http.ResponseWriter, r *http.Request) {
	shop := a.requireShop(w, r, middleware.ShopFrom(r.Context()))
	if shop == "" {
		return
	}
	rec, ok := a.shopRecord(w, r, shop)
	if !ok {
		return
	}
	returnURL := a.returnURL(shop, r.URL.Query().Get("host"))
	if returnURL == "" {
		writeDetail(w, http.StatusInternalServerError, "Missing Shopify app URL.")
		return
	}
	res, err := a.billing.EnsureSubscription(r.Context(), shop, rec.AccessToken, returnURL)
	if err != nil {
		a.writeDomainError(w, r, shop, err)
		return
	}
	if res.Active {
		writeJSON(w, map[string]any{"active": true, "subscription": res.Subscription}, http.StatusOK)
		return
	}
	writeJSON(w, map[string]any{"active": false, "confirmationUrl": res.ConfirmationURL}, http.StatusOK)
}

type usageChargeRequest struct {
	Description string   `json:"description"`
	Price       *float64 `json:"price"`
}

func (a *App) billingUsage(w http.ResponseWriter, r *http.Request) {
	shop := a.requireShop(w, r, middleware.ShopFrom(r.Context()))
	if shop == "" {
		return
	}
	if err := a.limiter.Allow(r.Context(), shop, "billing_usage"); err != nil {
		a.writeDomainError(w, r, shop, err)
		return
	}
	rec, ok := a.shopRecord(w, r, shop)
	if !ok {
		return
	}
	var req usageChargeRequest
	if r.Body != nil {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeDetail(w, http.StatusBadRequest, "Invalid request body.")
			return
		}
	}
	price := a.cfg.UsagePriceUSD
	if req.Price != nil {
		price = *req.Price
	}
	usageID, err := a.billing.ChargeUsage(r.Context(), shop, rec.AccessToken, price)
	if err != nil {
		a.writeDomainError(w, r, shop, err)
		return
	}
	usageChargesTotal.Inc()
	a.log.Infow("usage charged", "shop", shop, "usage_id", usageID, "amount", a.billing.PriceUSD())
	writeJSON(w, map[string]any{"ok": true, "usageRecordId": usageID}, http.StatusOK)
}
