package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CardPayClient talks to the hosted card-checkout provider over its
// JSON API. Amounts go over the wire as decimal strings.
type CardPayClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewCardPayClient(baseURL, apiKey string) *CardPayClient {
	return &CardPayClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *CardPayClient) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	body := map[string]interface{}{
		"amount":         params.Amount.String(),
		"currency":       params.Currency,
		"success_url":    params.SuccessURL,
		"cancel_url":     params.CancelURL,
		"customer_email": params.CustomerEmail,
		"metadata":       params.Metadata,
	}

	var session CheckoutSession
	if err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", body, &session); err != nil {
		return nil, err
	}

	return &session, nil
}

func (c *CardPayClient) RetrieveCheckoutSession(ctx context.Context, sessionID string) (*SessionDetails, error) {
	var details SessionDetails
	if err := c.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+sessionID, nil, &details); err != nil {
		return nil, err
	}

	return &details, nil
}

func (c *CardPayClient) CreateRefund(ctx context.Context, paymentReference string, amount decimal.Decimal) (*Refund, error) {
	body := map[string]interface{}{
		"payment_reference": paymentReference,
		"amount":            amount.String(),
	}

	var refund Refund
	if err := c.do(ctx, http.MethodPost, "/v1/refunds", body, &refund); err != nil {
		return nil, err
	}

	return &refund, nil
}

func (c *CardPayClient) CreateTransfer(ctx context.Context, amount decimal.Decimal, currency, destinationAccount string, metadata map[string]string) (*Transfer, error) {
	body := map[string]interface{}{
		"amount":      amount.String(),
		"currency":    currency,
		"destination": destinationAccount,
		"metadata":    metadata,
	}

	var transfer Transfer
	if err := c.do(ctx, http.MethodPost, "/v1/transfers", body, &transfer); err != nil {
		return nil, err
	}

	return &transfer, nil
}

func (c *CardPayClient) CreateConnectAccount(ctx context.Context, email string) (*Account, error) {
	body := map[string]interface{}{
		"type":  "express",
		"email": email,
	}

	var account Account
	if err := c.do(ctx, http.MethodPost, "/v1/accounts", body, &account); err != nil {
		return nil, err
	}

	return &account, nil
}

// ConstructWebhookEvent verifies the signature header and parses the
// payload. A bad signature is fatal for the whole webhook request.
func (c *CardPayClient) ConstructWebhookEvent(payload []byte, signature, secret string) (*Event, error) {
	if err := VerifySignature(payload, signature, secret, time.Now()); err != nil {
		return nil, err
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("malformed webhook payload: %w", err)
	}

	return &event, nil
}

func (c *CardPayClient) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	// Retried requests replay the same operation on the provider side.
	req.Header.Set("Idempotency-Key", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayRequest, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", ErrGatewayRequest, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s %s returned %d: %s", ErrGatewayRequest, method, path, resp.StatusCode, respBody)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("%w: decoding response: %v", ErrGatewayRequest, err)
		}
	}

	return nil
}
