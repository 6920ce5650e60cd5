// Package rupantor is a minimal REST client for the RupantorPay payment
// processor. Requests are authenticated with an X-API-KEY header.
package rupantor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultBaseURL = "https://api.rupantorpay.com"

const (
	checkoutPath = "/api/payment/checkout"
	verifyPath   = "/api/payment/verify-payment"
)

type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func New(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type CheckoutRequest struct {
	Amount        float64 `json:"amount"`
	Description   string  `json:"description,omitempty"`
	SuccessURL    string  `json:"success_url"`
	CancelURL     string  `json:"cancel_url"`
	CallbackURL   string  `json:"callback_url"`
	ReferenceID   string  `json:"reference_id"`
	CustomerEmail string  `json:"customer_email,omitempty"`
	CustomerName  string  `json:"customer_name,omitempty"`
}

type CheckoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
	ReferenceID string `json:"reference_id"`
	Status      string `json:"status"`
}

type VerifyResponse struct {
	Status        string  `json:"status"`
	Amount        float64 `json:"amount"`
	TransactionID string  `json:"transaction_id"`
	Message       string  `json:"message"`
}

// CreateCheckout issues a payment request and returns the hosted checkout URL.
func (c *Client) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error) {
	var out CheckoutResponse
	if err := c.post(ctx, checkoutPath, req, &out); err != nil {
		return nil, err
	}
	if out.CheckoutURL == "" {
		return nil, fmt.Errorf("rupantorpay: checkout response missing checkout_url")
	}
	return &out, nil
}

// VerifyPayment polls the processor for the final status of a reference.
func (c *Client) VerifyPayment(ctx context.Context, referenceID string) (*VerifyResponse, error) {
	body := map[string]string{"reference_id": referenceID}
	var out VerifyResponse
	if err := c.post(ctx, verifyPath, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	if c.apiKey == "" {
		return fmt.Errorf("rupantorpay: API key is not configured")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("rupantorpay: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("rupantorpay: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("rupantorpay: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("rupantorpay: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("rupantorpay: API error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("rupantorpay: decode response: %w", err)
	}
	return nil
}
