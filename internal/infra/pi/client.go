package pi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client issues the three Pi payment operations with the server-side
// API key. Every call is a single round trip; retry policy belongs to
// the payments service, not here.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type Payment struct {
	Identifier string          `json:"identifier"`
	Amount     float64         `json:"amount"`
	TxID       string          `json:"txid"`
	Metadata   PaymentMetadata `json:"metadata"`
}

// PaymentMetadata echoes whatever the client app attached at approval
// time. It is attacker-influenced input and must never be the primary
// source of crediting identifiers.
type PaymentMetadata struct {
	BookID  string `json:"bookId"`
	UserUID string `json:"userUid"`
}

type ProviderError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Err != nil && e.StatusCode > 0:
		return fmt.Sprintf("pi %s: status=%d: %v", e.Op, e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("pi %s: %v", e.Op, e.Err)
	case e.StatusCode > 0:
		return fmt.Sprintf("pi %s: status=%d: %s", e.Op, e.StatusCode, e.Body)
	default:
		return "pi " + e.Op
	}
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func NewClient(baseURL, apiKey string, httpClient *http.Client) (*Client, error) {
	trimmedBaseURL := strings.TrimSpace(baseURL)
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedBaseURL == "" || trimmedKey == "" {
		return nil, errors.New("pi api url or api key is empty")
	}

	parsed, err := url.Parse(trimmedBaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse pi api url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid pi api url: %s", trimmedBaseURL)
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: 8 * time.Second}
	}

	return &Client{
		baseURL:    strings.TrimRight(trimmedBaseURL, "/"),
		apiKey:     trimmedKey,
		httpClient: httpClient,
	}, nil
}

func (c *Client) Approve(ctx context.Context, paymentID string) error {
	var ignored Payment
	return c.do(ctx, "approve payment", http.MethodPost,
		"/payments/"+url.PathEscape(paymentID)+"/approve", nil, &ignored)
}

func (c *Client) Complete(ctx context.Context, paymentID, txid string) (Payment, error) {
	var payment Payment
	err := c.do(ctx, "complete payment", http.MethodPost,
		"/payments/"+url.PathEscape(paymentID)+"/complete",
		map[string]string{"txid": txid}, &payment)
	if err != nil {
		return Payment{}, err
	}
	return payment, nil
}

func (c *Client) GetPayment(ctx context.Context, paymentID string) (Payment, error) {
	var payment Payment
	err := c.do(ctx, "get payment", http.MethodGet,
		"/payments/"+url.PathEscape(paymentID), nil, &payment)
	if err != nil {
		return Payment{}, err
	}
	return payment, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body any, target *Payment) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return &ProviderError{Op: op, Err: fmt.Errorf("marshal request body: %w", err)}
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return &ProviderError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Key "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ProviderError{Op: op, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	rawResp, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &ProviderError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &ProviderError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(rawResp)),
		}
	}

	if target != nil && len(rawResp) > 0 {
		if err := json.Unmarshal(rawResp, target); err != nil {
			return &ProviderError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
		}
	}

	return nil
}

// IsProviderError reports whether err came from the Pi API rather than
// from local state, so callers can map it to a 502 instead of treating
// the payment as failed.
func IsProviderError(err error) bool {
	var provErr *ProviderError
	return errors.As(err, &provErr)
}
