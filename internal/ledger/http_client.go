package ledger

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

type HTTPConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
}

// HTTPClient is a JSON client for the ledger gateway. Outbound calls share one
// token bucket so a large winner batch cannot flood the gateway.
type HTTPClient struct {
	baseURL string
	apiKey  string
	inner   *http.Client
	limiter *rate.Limiter
}

func NewHTTPClient(cfg HTTPConfig) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		inner:   &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
	}
}

type transferBody struct {
	FromAddress    string `json:"from_address"`
	FromSecret     string `json:"from_secret"`
	ToAddress      string `json:"to_address"`
	Amount         int64  `json:"amount"`
	Network        string `json:"network"`
	IdempotencyKey string `json:"idempotency_key"`
}

type transferResponse struct {
	TransferID string `json:"transfer_id"`
	Error      string `json:"error"`
	Reason     string `json:"reason"`
}

func (c *HTTPClient) Transfer(ctx context.Context, req TransferRequest) (string, error) {
	if req.Amount <= 0 {
		return "", &TransferError{Reason: "invalid_amount"}
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", &TransferError{Reason: "rate_limited"}
	}
	body := transferBody{
		FromAddress:    req.FromAddress,
		FromSecret:     base64.StdEncoding.EncodeToString(req.FromSecret),
		ToAddress:      req.ToAddress,
		Amount:         req.Amount,
		Network:        req.Network,
		IdempotencyKey: req.IdempotencyKey,
	}
	headers := map[string]string{}
	if req.IdempotencyKey != "" {
		headers["Idempotency-Key"] = req.IdempotencyKey
	}
	status, raw, err := c.do(ctx, http.MethodPost, c.baseURL+"/transfers", headers, body)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %w", &TransferError{Reason: "timeout"}, ctx.Err())
		}
		return "", &TransferError{Reason: "network_error"}
	}
	var resp transferResponse
	_ = json.Unmarshal(raw, &resp)
	if status < 200 || status >= 300 {
		reason := strings.TrimSpace(resp.Reason)
		if reason == "" {
			reason = strings.TrimSpace(resp.Error)
		}
		if reason == "" {
			reason = fmt.Sprintf("status_%d", status)
		}
		return "", &TransferError{Reason: reason, Status: status}
	}
	if strings.TrimSpace(resp.TransferID) == "" {
		return "", &TransferError{Reason: "missing_transfer_id", Status: status}
	}
	return resp.TransferID, nil
}

func (c *HTTPClient) GetBalance(ctx context.Context, address, network string) (int64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBalance, err)
	}
	endpoint := c.baseURL + "/balances/" + url.PathEscape(network) + "/" + url.PathEscape(address)
	status, raw, err := c.do(ctx, http.MethodGet, endpoint, nil, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBalance, err)
	}
	if status < 200 || status >= 300 {
		return 0, fmt.Errorf("%w: status %d", ErrBalance, status)
	}
	var resp struct {
		Balance int64 `json:"balance"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBalance, err)
	}
	return resp.Balance, nil
}

func (c *HTTPClient) do(ctx context.Context, method, endpoint string, headers map[string]string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.inner.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, raw, nil
}
