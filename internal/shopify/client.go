// internal/shopify/client.go
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// ErrUpstreamUnavailable is returned once the retry budget for transient
// upstream failures is exhausted.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// StatusError is a non-2xx response from the platform admin API.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d", e.StatusCode)
}

// transient statuses are retried; every other non-2xx propagates
// immediately.
func transient(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Client executes shop-scoped REST and GraphQL calls against the platform
// admin API. Every call is pinned to one API version and carries the
// shop's access token.
type Client struct {
	httpc      *http.Client
	log        *zap.SugaredLogger
	apiVersion string

	retryBase  time.Duration
	maxRetries uint64

	// baseURL maps a shop domain to its scheme+host; tests point it at a
	// local server.
	baseURL func(shop string) string
}

func NewClient(apiVersion string, log *zap.SugaredLogger) *Client {
	return &Client{
		httpc: &http.Client{
			Timeout: 20 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
			},
		},
		log:        log,
		apiVersion: apiVersion,
		retryBase:  600 * time.Millisecond,
		maxRetries: 3,
		baseURL:    func(shop string) string { return "https://" + shop },
	}
}

// SetBaseURL overrides the shop→origin mapping. Used by tests and local
// proxies; production traffic always goes to https://<shop>.
func (c *Client) SetBaseURL(f func(shop string) string) { c.baseURL = f }

// SetRetryBase overrides the first backoff delay.
func (c *Client) SetRetryBase(d time.Duration) { c.retryBase = d }

func (c *Client) apiURL(shop, path string) string {
	return c.baseURL(shop) + "/admin/api/" + c.apiVersion + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) do(req *http.Request) (map[string]any, error) {
	res, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, 10<<20))
	if err != nil {
		return nil, err
	}
	if res.StatusCode >= 400 {
		return nil, &StatusError{StatusCode: res.StatusCode, Body: body}
	}
	var out map[string]any
	if len(body) > 0 {
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, fmt.Errorf("decode upstream response: %w", err)
		}
	}
	return out, nil
}

// GraphQL posts a query to the shop's admin GraphQL endpoint.
func (c *Client) GraphQL(ctx context.Context, shop, accessToken, query string, variables map[string]any) (map[string]any, error) {
	if variables == nil {
		variables = map[string]any{}
	}
	payload, err := json.Marshal(map[string]any{"query": query, "variables": variables})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL(shop, "graphql.json"), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Shopify-Access-Token", accessToken)
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// REST performs a single admin REST call. GET payloads become query
// parameters; other methods send a JSON body.
func (c *Client) REST(ctx context.Context, shop, accessToken, method, path string, payload map[string]any) (map[string]any, error) {
	u := c.apiURL(shop, path)
	var body io.Reader
	if strings.EqualFold(method, http.MethodGet) {
		if len(payload) > 0 {
			q := url.Values{}
			for k, v := range payload {
				q.Set(k, fmt.Sprint(v))
			}
			u += "?" + q.Encode()
		}
	} else if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Shopify-Access-Token", accessToken)
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// RESTWithRetry wraps REST with bounded exponential backoff on transient
// statuses (429, 500, 502, 503, 504): up to 3 extra attempts delayed
// 0.6s, 1.2s, 2.4s. Anything else propagates without delay.
func (c *Client) RESTWithRetry(ctx context.Context, shop, accessToken, method, path string, payload map[string]any) (map[string]any, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryBase
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0

	var out map[string]any
	op := func() error {
		res, err := c.REST(ctx, shop, accessToken, method, path, payload)
		if err != nil {
			var se *StatusError
			if errors.As(err, &se) && transient(se.StatusCode) {
				c.log.Warnw("upstream retry", "shop", shop, "status", se.StatusCode)
				return err
			}
			return backoff.Permanent(err)
		}
		out = res
		return nil
	}
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, c.maxRetries), ctx))
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && transient(se.StatusCode) {
			return nil, fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, se.StatusCode)
		}
		return nil, err
	}
	return out, nil
}

// ExchangeToken swaps an OAuth authorization code for the shop's long-lived
// access token.
func (c *Client) ExchangeToken(ctx context.Context, shop, clientID, clientSecret, code string) (accessToken, scope string, err error) {
	payload, err := json.Marshal(map[string]string{
		"client_id":     clientID,
		"client_secret": clientSecret,
		"code":          code,
	})
	if err != nil {
		return "", "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL(shop)+"/admin/oauth/access_token", bytes.NewReader(payload))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")
	ctx15, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	out, err := c.do(req.WithContext(ctx15))
	if err != nil {
		return "", "", err
	}
	accessToken, _ = out["access_token"].(string)
	scope, _ = out["scope"].(string)
	return accessToken, scope, nil
}
