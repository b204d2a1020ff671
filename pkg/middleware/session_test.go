package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shopgate/internal/auth"
)

const (
	mwAPIKey = "test-api-key"
	mwSecret = "test-api-secret"
)

func sessionToken(t *testing.T, shop string) string {
	t.Helper()
	now := time.Now()
	tok, err := jwt.NewBuilder().
		Issuer("https://"+shop+"/admin").
		Audience([]string{mwAPIKey}).
		Subject("12345").
		Claim("dest", "https://"+shop).
		IssuedAt(now).
		Expiration(now.Add(time.Minute)).
		Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte(mwSecret)))
	require.NoError(t, err)
	return string(signed)
}

func sessionHandler(t *testing.T) (http.Handler, *string) {
	t.Helper()
	verifier := auth.NewSessionVerifier(mwAPIKey, mwSecret)
	var seenShop string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenShop = ShopFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	return RequireSession(verifier, zap.NewNop().Sugar())(inner), &seenShop
}

func detailOf(t *testing.T, res *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	return body["detail"]
}

func TestRequireSession_BearerToken(t *testing.T) {
	h, seenShop := sessionHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/shopify/products", nil)
	req.Header.Set("Authorization", "Bearer "+sessionToken(t, "shop1.myshopify.com"))
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)

	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "shop1.myshopify.com", *seenShop)
}

func TestRequireSession_IDTokenQueryFallback(t *testing.T) {
	h, seenShop := sessionHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/shopify/products?id_token="+sessionToken(t, "shop1.myshopify.com"), nil)
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)

	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "shop1.myshopify.com", *seenShop)
}

func TestRequireSession_MissingToken(t *testing.T) {
	h, _ := sessionHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/shopify/products", nil)
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)

	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, "Missing session token.", detailOf(t, res))
}

func TestRequireSession_ShopMismatch(t *testing.T) {
	h, _ := sessionHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/shopify/products?shop=shop2.myshopify.com", nil)
	req.Header.Set("Authorization", "Bearer "+sessionToken(t, "shop1.myshopify.com"))
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)

	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, "Shop context mismatch.", detailOf(t, res))
}

func TestRequireSession_BadSignature(t *testing.T) {
	h, _ := sessionHandler(t)

	tok := sessionToken(t, "shop1.myshopify.com")
	req := httptest.NewRequest(http.MethodGet, "/shopify/products", nil)
	req.Header.Set("Authorization", "Bearer "+tok+"x")
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)

	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, "Invalid session token.", detailOf(t, res))
}

func TestRequireSession_PublicPathsPassThrough(t *testing.T) {
	h, _ := sessionHandler(t)

	for _, path := range []string{
		"/shopify/install",
		"/shopify/oauth/callback",
		"/shopify/health",
		"/shopify/webhooks/app/uninstalled",
		"/shopify/webhooks/app_uninstalled",
		"/shopify/app",
		"/shopify/app/settings",
		"/healthz",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		res := httptest.NewRecorder()
		h.ServeHTTP(res, req)
		assert.Equal(t, http.StatusOK, res.Code, path)
	}
}

func TestRequireSession_ProtectedWebhookLookalike(t *testing.T) {
	h, _ := sessionHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/shopify/webhooks/orders/create", nil)
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)

	assert.Equal(t, http.StatusUnauthorized, res.Code)
}
