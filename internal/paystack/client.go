// Package paystack is the payment provider client: transaction
// initialization, verification, refunds, and webhook signature checks.
// Network failures surface as ErrProviderUnavailable for the caller to
// retry; this package never retries beyond its own bounded HTTP retries.
package paystack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// ErrProviderUnavailable wraps any network or non-2xx provider failure.
var ErrProviderUnavailable = errors.New("payment provider unavailable")

// Client encapsulates HTTP interaction with the provider API.
type Client struct {
	baseURL       string
	secretKey     string
	webhookSecret string
	httpClient    *retryablehttp.Client
}

// NewClient creates a provider client. Requests retry transient failures a
// bounded number of times with backoff.
func NewClient(baseURL, secretKey, webhookSecret string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.HTTPClient.Timeout = 15 * time.Second
	rc.Logger = nil

	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		httpClient:    rc,
	}
}

// InitializeResult is the redirect handle for a new transaction.
type InitializeResult struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

// VerifyResult is the provider's view of a transaction. Amount is in minor
// currency units, as the provider reports it.
type VerifyResult struct {
	Status    string
	Amount    int64
	Reference string
	PaidAt    string
	Metadata  map[string]any
}

// RefundResult is the provider's acknowledgement of a refund.
type RefundResult struct {
	RefundID int64
	Status   string
	Amount   int64
}

type apiEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Initialize starts a transaction for the given amount in minor units and
// returns the authorization URL the payer is redirected to.
func (c *Client) Initialize(ctx context.Context, email string, amount int64, reference, callbackURL string, metadata map[string]any) (*InitializeResult, error) {
	body := map[string]any{
		"email":        email,
		"amount":       amount,
		"currency":     "NGN",
		"reference":    reference,
		"callback_url": callbackURL,
		"metadata":     metadata,
	}

	var data struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	}
	if err := c.call(ctx, http.MethodPost, "/transaction/initialize", body, &data); err != nil {
		return nil, err
	}

	return &InitializeResult{
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		Reference:        data.Reference,
	}, nil
}

// Verify fetches the current state of a transaction by reference.
func (c *Client) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	var data struct {
		Status    string         `json:"status"`
		Amount    int64          `json:"amount"`
		Reference string         `json:"reference"`
		PaidAt    string         `json:"paid_at"`
		Metadata  map[string]any `json:"metadata"`
	}
	if err := c.call(ctx, http.MethodGet, "/transaction/verify/"+reference, nil, &data); err != nil {
		return nil, err
	}

	return &VerifyResult{
		Status:    data.Status,
		Amount:    data.Amount,
		Reference: data.Reference,
		PaidAt:    data.PaidAt,
		Metadata:  data.Metadata,
	}, nil
}

// Refund reverses amount minor units of the transaction behind the given
// provider reference.
func (c *Client) Refund(ctx context.Context, transactionRef string, amount int64) (*RefundResult, error) {
	body := map[string]any{
		"transaction": transactionRef,
		"amount":      amount,
	}

	var data struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
		Amount int64  `json:"amount"`
	}
	if err := c.call(ctx, http.MethodPost, "/refund", body, &data); err != nil {
		return nil, err
	}

	return &RefundResult{RefundID: data.ID, Status: data.Status, Amount: data.Amount}, nil
}

// VerifySignature checks the webhook HMAC-SHA512 signature over the raw
// request body using constant-time comparison.
func (c *Client) VerifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha512.New, []byte(c.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (c *Client) call(ctx context.Context, method, path string, body any, out any) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d on %s", ErrProviderUnavailable, resp.StatusCode, path)
	}

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrProviderUnavailable, err)
	}
	if !envelope.Status {
		return fmt.Errorf("%w: %s", ErrProviderUnavailable, envelope.Message)
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("%w: decode data: %v", ErrProviderUnavailable, err)
		}
	}
	return nil
}

// WebhookEvent is an inbound provider notification.
type WebhookEvent struct {
	Event string      `json:"event"`
	Data  WebhookData `json:"data"`
}

// WebhookData is the transaction payload inside a webhook event. Amount is
// in minor currency units.
type WebhookData struct {
	Reference string         `json:"reference"`
	Amount    int64          `json:"amount"`
	Status    string         `json:"status"`
	Metadata  map[string]any `json:"metadata"`
}
