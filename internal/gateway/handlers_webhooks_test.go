package gateway

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopgate/internal/auth"
	"shopgate/pkg/shops"
)

func webhookRequest(t *testing.T, path, shop, secret string, body []byte) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set(webhookHMACHeader, auth.WebhookDigest(body, secret))
	if shop != "" {
		req.Header.Set("X-Shopify-Shop-Domain", shop)
	}
	return req
}

func TestWebhook_ValidDelivery(t *testing.T) {
	_, r := newTestApp(t, nil)

	req := webhookRequest(t, "/shopify/webhooks/customers/data_request", "shop1.myshopify.com", "test-api-secret", []byte(`{"id":1}`))
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)

	assert.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"ok":true}`, res.Body.String())
}

func TestWebhook_InvalidSignature(t *testing.T) {
	_, r := newTestApp(t, nil)

	body := []byte(`{"id":1}`)
	req := httptest.NewRequest(http.MethodPost, "/shopify/webhooks/app/uninstalled", bytes.NewReader(body))
	req.Header.Set(webhookHMACHeader, auth.WebhookDigest(body, "wrong-secret"))
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)

	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestWebhook_MissingSignature(t *testing.T) {
	_, r := newTestApp(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/shopify/webhooks/app/uninstalled", bytes.NewReader([]byte(`{}`)))
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)

	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestWebhook_UninstallDeletesShop(t *testing.T) {
	app, r := newTestApp(t, nil)
	ctx := context.Background()
	require.NoError(t, app.store.Upsert(ctx, "shop1.myshopify.com", "at-1", nil))

	for _, path := range []string{"/shopify/webhooks/app/uninstalled", "/shopify/webhooks/app_uninstalled"} {
		require.NoError(t, app.store.Upsert(ctx, "shop1.myshopify.com", "at-1", nil))

		req := webhookRequest(t, path, "shop1.myshopify.com", "test-api-secret", []byte(`{}`))
		res := httptest.NewRecorder()
		r.ServeHTTP(res, req)
		require.Equal(t, http.StatusOK, res.Code, path)

		_, err := app.store.Get(ctx, "shop1.myshopify.com")
		var nie *shops.NotInstalledError
		assert.ErrorAs(t, err, &nie, path)
	}
}

func TestWebhook_DataRequestKeepsShop(t *testing.T) {
	app, r := newTestApp(t, nil)
	ctx := context.Background()
	require.NoError(t, app.store.Upsert(ctx, "shop1.myshopify.com", "at-1", nil))

	req := webhookRequest(t, "/shopify/webhooks/customers/data_request", "shop1.myshopify.com", "test-api-secret", []byte(`{}`))
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	_, err := app.store.Get(ctx, "shop1.myshopify.com")
	assert.NoError(t, err)
}

func TestWebhookCompliance_ShopRedact(t *testing.T) {
	app, r := newTestApp(t, nil)
	ctx := context.Background()
	require.NoError(t, app.store.Upsert(ctx, "shop1.myshopify.com", "at-1", nil))

	req := webhookRequest(t, "/shopify/webhooks/compliance", "shop1.myshopify.com", "test-api-secret", []byte(`{}`))
	req.Header.Set("X-Shopify-Topic", "shop/redact")
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	_, err := app.store.Get(ctx, "shop1.myshopify.com")
	var nie *shops.NotInstalledError
	assert.ErrorAs(t, err, &nie)
}

func TestWebhookCompliance_OtherTopicKeepsShop(t *testing.T) {
	app, r := newTestApp(t, nil)
	ctx := context.Background()
	require.NoError(t, app.store.Upsert(ctx, "shop1.myshopify.com", "at-1", nil))

	req := webhookRequest(t, "/shopify/webhooks/compliance", "shop1.myshopify.com", "test-api-secret", []byte(`{}`))
	req.Header.Set("X-Shopify-Topic", "customers/redact")
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	_, err := app.store.Get(ctx, "shop1.myshopify.com")
	assert.NoError(t, err)
}
