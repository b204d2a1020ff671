package shopify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient("2024-10", zap.NewNop().Sugar())
	c.SetBaseURL(func(string) string { return srv.URL })
	c.SetRetryBase(time.Millisecond)
	return c, srv
}

func TestREST_SendsTokenAndVersion(t *testing.T) {
	var gotPath, gotToken string
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.Header.Get("X-Shopify-Access-Token")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))

	out, err := c.REST(context.Background(), "shop1.myshopify.com", "tok", http.MethodGet, "products.json", map[string]any{"limit": 5})
	require.NoError(t, err)
	assert.Equal(t, "/admin/api/2024-10/products.json", gotPath)
	assert.Equal(t, "tok", gotToken)
	assert.Equal(t, true, out["ok"])
}

func TestRESTWithRetry_RecoversAfterTransientFailures(t *testing.T) {
	var calls atomic.Int64
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))

	out, err := c.RESTWithRetry(context.Background(), "shop1.myshopify.com", "tok", http.MethodGet, "products.json", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4), calls.Load())
	assert.Equal(t, true, out["ok"])
}

func TestRESTWithRetry_ExhaustsBudget(t *testing.T) {
	var calls atomic.Int64
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := c.RESTWithRetry(context.Background(), "shop1.myshopify.com", "tok", http.MethodGet, "products.json", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Equal(t, int64(4), calls.Load())
}

func TestRESTWithRetry_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int64
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := c.RESTWithRetry(context.Background(), "shop1.myshopify.com", "tok", http.MethodGet, "products.json", nil)
	require.Error(t, err)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Equal(t, int64(1), calls.Load())
}

func TestGraphQL_PostsQuery(t *testing.T) {
	var body map[string]any
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/api/2024-10/graphql.json", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{}})
	}))

	_, err := c.GraphQL(context.Background(), "shop1.myshopify.com", "tok", "query { shop { name } }", nil)
	require.NoError(t, err)
	assert.Equal(t, "query { shop { name } }", body["query"])
}

func TestExchangeToken(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/oauth/access_token", r.URL.Path)
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		assert.Equal(t, "c0de", in["code"])
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "at-123", "scope": "read_products"})
	}))

	tok, scope, err := c.ExchangeToken(context.Background(), "shop1.myshopify.com", "key", "secret", "c0de")
	require.NoError(t, err)
	assert.Equal(t, "at-123", tok)
	assert.Equal(t, "read_products", scope)
}

func TestTransientStatuses(t *testing.T) {
	for _, s := range []int{429, 500, 502, 503, 504} {
		assert.True(t, transient(s), s)
	}
	for _, s := range []int{200, 400, 401, 403, 404, 422} {
		assert.False(t, transient(s), s)
	}
}
