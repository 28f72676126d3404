// Package oracle fetches conversion rates at settlement time. Rates are never
// cached; each call hits the upstream.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrUnavailable = errors.New("oracle_unavailable")

type Client interface {
	GetRate(ctx context.Context, pair string) (decimal.Decimal, error)
}

// Pair names the conversion from an event currency into a network's units.
func Pair(currency, network string) string {
	return strings.ToUpper(currency) + "/" + strings.ToUpper(network)
}

type HTTPClient struct {
	baseURL string
	apiKey  string
	inner   *http.Client
}

func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		inner:   &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) GetRate(ctx context.Context, pair string) (decimal.Decimal, error) {
	if c.baseURL == "" {
		return decimal.Zero, fmt.Errorf("%w: no oracle configured", ErrUnavailable)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/rates/"+url.PathEscape(pair), nil)
	if err != nil {
		return decimal.Zero, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.inner.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	var body struct {
		Rate decimal.Decimal `json:"rate"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return decimal.Zero, fmt.Errorf("%w: decode rate: %v", ErrUnavailable, err)
	}
	if !body.Rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: non-positive rate %s", ErrUnavailable, body.Rate)
	}
	return body.Rate, nil
}
