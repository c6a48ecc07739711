package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dafibh/eventcore/internal/domain"
)

const (
	sandboxBaseURL = "https://api-m.sandbox.paypal.com"
	liveBaseURL = "https://api-m.paypal.com"

	tokenRefreshSkew = 60 * time.Second
)

// Mode selects which PayPal environment the client talks to.
type Mode string

const (
	ModeSandbox Mode = "sandbox"
	ModeLive Mode = "live"
)

// Client is the payment-provider client of C1: token caching, idempotent
// POSTs carrying a caller-chosen request id, and JSON error normalization.
type Client struct {
	httpClient *http.Client
	baseURL string
	clientID string
	clientSecret string

	mu sync.Mutex
	accessToken string
	expiresAt time.Time
}

// NewClient constructs a provider client for the given mode and credentials.
func NewClient(mode Mode, clientID, clientSecret string) *Client {
	base := sandboxBaseURL
	if mode == ModeLive {
		base = liveBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL: base,
		clientID: clientID,
		clientSecret: clientSecret,
	}
}

// GetAccessToken returns a cached bearer token, re-authenticating if the
// cache has expired or was never populated.
func (c *Client) GetAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.expiresAt) {
		return c.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", domain.WrapError(domain.KindProviderUnavailable, "failed to build token request", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", domain.WrapError(domain.KindProviderUnavailable, "payment provider token request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.WrapError(domain.KindProviderUnavailable, "failed to read token response", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", domain.NewError(domain.KindProviderAuth, "payment provider rejected credentials")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", domain.NewError(domain.KindProviderUnavailable, fmt.Sprintf("token endpoint returned %d: %s", resp.StatusCode, string(body)))
	}

	var tok TokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", domain.WrapError(domain.KindProviderUnavailable, "malformed token response", err)
	}

	c.accessToken = tok.AccessToken
	c.expiresAt = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - tokenRefreshSkew)
	return c.accessToken, nil
}

// post sends an idempotent POST carrying requestID in the PayPal-Request-Id
// header and returns the status code and raw body.
func (c *Client) post(ctx context.Context, path string, body any, requestID string) (int, []byte, error) {
	token, err := c.GetAccessToken(ctx)
	if err != nil {
		return 0, nil, err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, domain.WrapError(domain.KindValidationFailed, "failed to encode request body", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, domain.WrapError(domain.KindProviderUnavailable, "failed to build provider request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("PayPal-Request-Id", requestID)

	log.Debug().Str("path", path).Str("request_id", requestID).Msg("paypal: sending idempotent post")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, domain.WrapError(domain.KindProviderUnavailable, "payment provider request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, domain.WrapError(domain.KindProviderUnavailable, "failed to read provider response", err)
	}

	return resp.StatusCode, raw, nil
}

// normalizeError converts a non-2xx response into a ProviderRejected domain
// error carrying the provider's error message (the raw body when no message
// parses) and its debug id. Callers surface the body rather
// than auto-retrying, since the provider's rejection is usually permanent.
func normalizeError(statusCode int, raw []byte) error {
	var perr ErrorResponse
	_ = json.Unmarshal(raw, &perr)
	msg := perr.Message
	if msg == "" {
		msg = string(raw)
	}
	return domain.WrapError(domain.KindProviderRejected,
		fmt.Sprintf("provider returned %d: %s", statusCode, msg),
		fmt.Errorf("debug_id=%s", perr.DebugID))
}

// CreateOrder issues POST /v2/checkout/orders.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest, requestID string) (*OrderResponse, error) {
	status, raw, err := c.post(ctx, "/v2/checkout/orders", req, requestID)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return nil, normalizeError(status, raw)
	}
	var out OrderResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, domain.WrapError(domain.KindProviderUnavailable, "malformed order create response", err)
	}
	return &out, nil
}

// CaptureOrder issues POST /v2/checkout/orders/{order_id}/capture with the
// stable request id "capture:<order_id>".
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*OrderResponse, error) {
	requestID := "capture:" + orderID
	status, raw, err := c.post(ctx, fmt.Sprintf("/v2/checkout/orders/%s/capture", orderID), struct{}{}, requestID)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return nil, normalizeError(status, raw)
	}
	var out OrderResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, domain.WrapError(domain.KindProviderUnavailable, "malformed capture response", err)
	}
	if out.Status != "COMPLETED" && out.Status != "APPROVED" {
		return nil, domain.NewError(domain.KindProviderRejected, "capture did not complete: status="+out.Status)
	}
	return &out, nil
}

// RefundCapture issues POST /v2/payments/captures/{capture_id}/refund with
// the caller-chosen requestID.
func (c *Client) RefundCapture(ctx context.Context, captureID string, amount Money, requestID string) (*RefundResponse, error) {
	status, raw, err := c.post(ctx, fmt.Sprintf("/v2/payments/captures/%s/refund", captureID), RefundRequest{Amount: amount}, requestID)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return nil, normalizeError(status, raw)
	}
	var out RefundResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, domain.WrapError(domain.KindProviderUnavailable, "malformed refund response", err)
	}
	return &out, nil
}
