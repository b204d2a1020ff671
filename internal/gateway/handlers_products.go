package gateway

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"shopgate/internal/shopify"
	"shopgate/pkg/middleware"
)

const maxImageBytes = 10 << 20

func (a *App) listProducts(w http.ResponseWriter, r *http.Request) {
	shop := a.requireShop(w, r, middleware.ShopFrom(r.Context()))
	if shop == "" {
		return
	}
	rec, ok := a.shopRecord(w, r, shop)
	if !ok {
		return
	}
	limit := 25
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	limit = max(1, min(limit, 250))
	res, err := a.client.REST(r.Context(), shop, rec.AccessToken, http.MethodGet, "/products.json", map[string]any{
		"limit":  limit,
		"fields": "id,title,images",
	})
	if err != nil {
		a.writeDomainError(w, r, shop, err)
		return
	}
	writeJSON(w, res, http.StatusOK)
}

func (a *App) listProductImages(w http.ResponseWriter, r *http.Request) {
	shop := a.requireShop(w, r, middleware.ShopFrom(r.Context()))
	if shop == "" {
		return
	}
	rec, ok := a.shopRecord(w, r, shop)
	if !ok {
		return
	}
	productID := chi.URLParam(r, "productID")
	res, err := a.client.REST(r.Context(), shop, rec.AccessToken, http.MethodGet,
		fmt.Sprintf("/products/%s/images.json", productID), map[string]any{"fields": "id,src,position,alt"})
	if err != nil {
		a.writeDomainError(w, r, shop, err)
		return
	}
	writeJSON(w, res, http.StatusOK)
}

type imageUploadRequest struct {
	ImageBase64 string `json:"image_base64"`
	Filename    string `json:"filename"`
}

// uploadProductImage pushes a processed image back onto the product. The
// upload goes through the retrying client; the optional reorder to primary
// position is best-effort and never fails the request once the upload
// itself succeeded.
func (a *App) uploadProductImage(w http.ResponseWriter, r *http.Request) {
	shop := a.requireShop(w, r, middleware.ShopFrom(r.Context()))
	if shop == "" {
		return
	}
	if err := a.limiter.Allow(r.Context(), shop, "product_upload"); err != nil {
		a.writeDomainError(w, r, shop, err)
		return
	}
	rec, ok := a.shopRecord(w, r, shop)
	if !ok {
		return
	}
	var req imageUploadRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 32<<20)).Decode(&req); err != nil || req.ImageBase64 == "" {
		writeDetail(w, http.StatusBadRequest, "Missing image_base64.")
		return
	}
	attachment := extractBase64(req.ImageBase64)
	estimated := len(attachment)*3/4 - strings.Count(attachment, "=")
	if estimated > maxImageBytes {
		writeDetail(w, http.StatusRequestEntityTooLarge, "Image exceeds 10MB limit.")
		return
	}
	image := map[string]any{"attachment": attachment}
	if req.Filename != "" {
		image["filename"] = req.Filename
	}
	productID := chi.URLParam(r, "productID")
	res, err := a.client.RESTWithRetry(r.Context(), shop, rec.AccessToken, http.MethodPost,
		fmt.Sprintf("/products/%s/images.json", productID), map[string]any{"image": image})
	if err != nil {
		a.writeDomainError(w, r, shop, err)
		return
	}
	if makePrimary, _ := strconv.ParseBool(r.URL.Query().Get("make_primary")); makePrimary {
		if imageID := imageIDFrom(res); imageID != "" {
			_, err := a.client.RESTWithRetry(r.Context(), shop, rec.AccessToken, http.MethodPut,
				fmt.Sprintf("/products/%s/images/%s.json", productID, imageID),
				map[string]any{"image": map[string]any{"id": json.Number(imageID), "position": 1}})
			if err != nil {
				a.log.Warnw("product image reorder failed", "shop", shop, "product_id", productID, "image_id", imageID, "err", err)
			}
		}
	}
	a.log.Infow("product image uploaded", "shop", shop, "product_id", productID)
	writeJSON(w, res, http.StatusOK)
}

// fetchImage proxies a platform-hosted image to the frontend as a data
// URL, sidestepping CDN CORS. Only platform hosts are fetched.
func (a *App) fetchImage(w http.ResponseWriter, r *http.Request) {
	shop := a.requireShop(w, r, middleware.ShopFrom(r.Context()))
	if shop == "" {
		return
	}
	if _, ok := a.shopRecord(w, r, shop); !ok {
		return
	}
	src := r.URL.Query().Get("src")
	if src == "" {
		writeDetail(w, http.StatusBadRequest, "Missing image source.")
		return
	}
	if !shopify.IsAllowedImageURL(src) {
		writeDetail(w, http.StatusBadRequest, "Unsupported image source.")
		return
	}
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, src, nil)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Unsupported image source.")
		return
	}
	res, err := a.imageHTTP.Do(req)
	if err != nil {
		a.writeDomainError(w, r, shop, err)
		return
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		a.writeDomainError(w, r, shop, &shopify.StatusError{StatusCode: res.StatusCode})
		return
	}
	content, err := io.ReadAll(io.LimitReader(res.Body, maxImageBytes+1))
	if err != nil {
		a.writeDomainError(w, r, shop, err)
		return
	}
	if len(content) > maxImageBytes {
		writeDetail(w, http.StatusRequestEntityTooLarge, "Image exceeds 10MB limit.")
		return
	}
	contentType := res.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	dataURL := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(content)
	writeJSON(w, map[string]any{"data_url": dataURL}, http.StatusOK)
}

func extractBase64(dataURL string) string {
	if i := strings.Index(dataURL, ","); i >= 0 {
		return dataURL[i+1:]
	}
	return dataURL
}

// imageIDFrom digs the numeric image id out of the upload response.
func imageIDFrom(res map[string]any) string {
	img, ok := res["image"].(map[string]any)
	if !ok {
		return ""
	}
	switch v := img["id"].(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case string:
		return v
	}
	return ""
}
