// internal/studio/client.go
package studio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrTimeout indicates the processing backend did not answer within the
// long-call budget. Handlers map it to 504.
var ErrTimeout = errors.New("processing timed out")

// ErrNotConfigured is returned when the backend base URL or key is unset.
var ErrNotConfigured = errors.New("studio backend not configured")

// StatusError carries a non-2xx backend response body for passthrough.
type StatusError struct {
	StatusCode int
	Detail     any
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("studio status %d", e.StatusCode)
}

// Client calls the image-processing backend. The call is opaque from this
// service's perspective: one long-running POST whose success gates the
// usage charge.
type Client struct {
	httpc      *http.Client
	log        *zap.SugaredLogger
	baseURL    string
	serviceKey string
}

func NewClient(baseURL, serviceKey string, log *zap.SugaredLogger) *Client {
	return &Client{
		httpc: &http.Client{
			Timeout: 180 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
			},
		},
		log:        log,
		baseURL:    baseURL,
		serviceKey: serviceKey,
	}
}

// OptimizeListing runs one processing job and returns the backend's JSON
// result.
func (c *Client) OptimizeListing(ctx context.Context, body map[string]any) (map[string]any, error) {
	if c.baseURL == "" || c.serviceKey == "" {
		return nil, ErrNotConfigured
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/optimize-listing", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("x-nudio-shopify-mode", "true")

	res, err := c.httpc.Do(req)
	if err != nil {
		var ne net.Error
		if (errors.As(err, &ne) && ne.Timeout()) || errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, err
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(res.Body, 32<<20))
	if err != nil {
		return nil, err
	}
	if res.StatusCode >= 400 {
		var detail any
		if err := json.Unmarshal(raw, &detail); err != nil {
			detail = string(raw)
		}
		return nil, &StatusError{StatusCode: res.StatusCode, Detail: detail}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode studio response: %w", err)
	}
	// A 200 with a null body decodes to a nil map; callers annotate the
	// result, so hand back a writable one.
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}
