package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"shopgate/internal/studio"
	"shopgate/pkg/middleware"
)

type optimizeRequest struct {
	ImageBase64 string `json:"imageBase64"`
	Mode        string `json:"mode"`
	UserEmail   string `json:"userEmail,omitempty"`
	Variant     string `json:"variant,omitempty"`
	BackdropID  string `json:"backdropId,omitempty"`
	BackdropHex string `json:"backdropHex,omitempty"`
}

// optimizeListing is the billable operation: gate on an active usage plan,
// run the processing job, and charge usage only after it succeeds. The two
// steps are not transactional: a crash after processing but before the
// charge leaves the work unbilled rather than billing for failed work.
func (a *App) optimizeListing(w http.ResponseWriter, r *http.Request) {
	shop := middleware.ShopFrom(r.Context())
	if shop == "" {
		writeDetail(w, http.StatusUnauthorized, "Missing shop context.")
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
	lineItem := a.billing.UsageLineItem(subs)
	if lineItem == "" {
		writeDetail(w, http.StatusPaymentRequired, "Active billing subscription required.")
		return
	}

	var req optimizeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 32<<20)).Decode(&req); err != nil || req.ImageBase64 == "" {
		writeDetail(w, http.StatusBadRequest, "Missing imageBase64.")
		return
	}
	if req.Mode == "" {
		req.Mode = "image"
	}
	if req.UserEmail == "" {
		req.UserEmail = "shopify+" + shop + "@nudio.ai"
	}
	body := map[string]any{"imageBase64": req.ImageBase64, "mode": req.Mode, "userEmail": req.UserEmail}
	for k, v := range map[string]string{"variant": req.Variant, "backdropId": req.BackdropID, "backdropHex": req.BackdropHex} {
		if v != "" {
			body[k] = v
		}
	}

	result, err := a.studio.OptimizeListing(r.Context(), body)
	if err != nil {
		var status *studio.StatusError
		switch {
		case errors.Is(err, studio.ErrTimeout):
			writeDetail(w, http.StatusGatewayTimeout, "Processing timed out. Please try again.")
		case errors.Is(err, studio.ErrNotConfigured):
			writeDetail(w, http.StatusInternalServerError, "Missing processing backend configuration.")
		case errors.As(err, &status):
			a.log.Warnw("optimize listing failed", "shop", shop, "status", status.StatusCode, "detail", status.Detail)
			writeDetail(w, status.StatusCode, status.Detail)
		default:
			a.writeDomainError(w, r, shop, err)
		}
		return
	}

	usageID, err := a.billing.CreateUsageRecord(r.Context(), shop, rec.AccessToken, lineItem)
	if err != nil {
		a.writeDomainError(w, r, shop, err)
		return
	}
	usageChargesTotal.Inc()
	a.log.Infow("optimize listing billed", "shop", shop, "usage_id", usageID, "amount", a.billing.PriceUSD())
	result["usageRecordId"] = usageID
	writeJSON(w, result, http.StatusOK)
}
