package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopgate/internal/auth"
)

func stateCookie(t *testing.T, res *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range res.Result().Cookies() {
		if c.Name == stateCookieName {
			return c
		}
	}
	return nil
}

func TestInstall_RedirectsToConsent(t *testing.T) {
	_, r := newTestApp(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/shopify/install?shop=shop1.myshopify.com", nil)
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)

	require.Equal(t, http.StatusFound, res.Code)
	loc := res.Header().Get("Location")
	assert.True(t, strings.HasPrefix(loc, "https://shop1.myshopify.com/admin/oauth/authorize?"), loc)
	assert.Contains(t, loc, "client_id=test-api-key")

	cookie := stateCookie(t, res)
	require.NotNil(t, cookie)
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteNoneMode, cookie.SameSite)

	u, err := url.Parse(loc)
	require.NoError(t, err)
	assert.Equal(t, cookie.Value, u.Query().Get("state"))
}

func TestInstall_RejectsInvalidShop(t *testing.T) {
	_, r := newTestApp(t, nil)

	for _, shop := range []string{"", "evil.com", "shop1.myshopify.com%2Fextra"} {
		req := httptest.NewRequest(http.MethodGet, "/shopify/install?shop="+shop, nil)
		res := httptest.NewRecorder()
		r.ServeHTTP(res, req)
		assert.Equal(t, http.StatusBadRequest, res.Code, shop)
	}
}

func callbackQuery(shop, code, state, secret string) url.Values {
	q := url.Values{}
	q.Set("shop", shop)
	q.Set("code", code)
	q.Set("state", state)
	q.Set("timestamp", "1700000000")
	q.Set("hmac", auth.SignQueryHMAC(q, secret))
	return q
}

func TestOAuthCallback_CompletesInstall(t *testing.T) {
	exchange := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/admin/oauth/access_token", r.URL.Path)
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "c0de", in["code"])
		assert.Equal(t, "test-api-key", in["client_id"])
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token": "at-123",
			"scope":        "read_products,write_products",
		})
	})
	app, r := newTestApp(t, exchange)

	state := app.state.Issue("shop1.myshopify.com")
	q := callbackQuery("shop1.myshopify.com", "c0de", state, "test-api-secret")
	req := httptest.NewRequest(http.MethodGet, "/shopify/oauth/callback?"+q.Encode(), nil)
	req.AddCookie(&http.Cookie{Name: stateCookieName, Value: state})
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)

	require.Equal(t, http.StatusFound, res.Code, res.Body.String())
	assert.Equal(t, "https://admin.shopify.com/store/shop1/apps/product-studio", res.Header().Get("Location"))

	cookie := stateCookie(t, res)
	require.NotNil(t, cookie)
	assert.Equal(t, -1, cookie.MaxAge)

	rec, err := app.store.Get(context.Background(), "shop1.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, "at-123", rec.AccessToken)
	assert.Equal(t, []string{"read_products", "write_products"}, rec.Scopes)
}

func TestOAuthCallback_SignedStateWithoutCookie(t *testing.T) {
	exchange := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "at-123", "scope": ""})
	})
	app, r := newTestApp(t, exchange)

	state := app.state.Issue("shop1.myshopify.com")
	q := callbackQuery("shop1.myshopify.com", "c0de", state, "test-api-secret")
	req := httptest.NewRequest(http.MethodGet, "/shopify/oauth/callback?"+q.Encode(), nil)
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)

	assert.Equal(t, http.StatusFound, res.Code, res.Body.String())
}

func TestOAuthCallback_RejectsBadHMAC(t *testing.T) {
	app, r := newTestApp(t, nil)

	state := app.state.Issue("shop1.myshopify.com")
	q := callbackQuery("shop1.myshopify.com", "c0de", state, "wrong-secret")
	req := httptest.NewRequest(http.MethodGet, "/shopify/oauth/callback?"+q.Encode(), nil)
	req.AddCookie(&http.Cookie{Name: stateCookieName, Value: state})
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)

	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Invalid HMAC signature.")
}

func TestOAuthCallback_RejectsForeignState(t *testing.T) {
	app, r := newTestApp(t, nil)

	state := app.state.Issue("shop2.myshopify.com")
	q := callbackQuery("shop1.myshopify.com", "c0de", state, "test-api-secret")
	req := httptest.NewRequest(http.MethodGet, "/shopify/oauth/callback?"+q.Encode(), nil)
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)

	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Invalid OAuth state.")
}

func TestOAuthCallback_RequiresCodeAndState(t *testing.T) {
	_, r := newTestApp(t, nil)

	q := url.Values{}
	q.Set("shop", "shop1.myshopify.com")
	q.Set("hmac", auth.SignQueryHMAC(q, "test-api-secret"))
	req := httptest.NewRequest(http.MethodGet, "/shopify/oauth/callback?"+q.Encode(), nil)
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)

	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Missing code or state.")
}
