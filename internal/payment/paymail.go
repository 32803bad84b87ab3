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

// PayMailClient talks to the email-payout provider: funds are sent to a
// payee's email address in batches and confirmed asynchronously.
type PayMailClient struct {
	baseURL    string
	clientID   string
	secret     string
	httpClient *http.Client
}

func NewPayMailClient(baseURL, clientID, secret string) *PayMailClient {
	return &PayMailClient{
		baseURL:  baseURL,
		clientID: clientID,
		secret:   secret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *PayMailClient) CreatePayout(ctx context.Context, email string, amount decimal.Decimal, currency, batchID, note string) (*PayoutBatch, error) {
	if batchID == "" {
		batchID = uuid.NewString()
	}

	body := map[string]interface{}{
		"sender_batch_header": map[string]string{
			"sender_batch_id": batchID,
			"email_subject":   "You have a payout",
		},
		"items": []map[string]interface{}{
			{
				"recipient_type": "EMAIL",
				"receiver":       email,
				"amount": map[string]string{
					"value":    amount.String(),
					"currency": currency,
				},
				"note": note,
			},
		},
	}

	var result struct {
		BatchID string `json:"batch_id"`
		Items   []struct {
			ItemID string `json:"item_id"`
		} `json:"items"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/payouts", body, &result); err != nil {
		return nil, err
	}

	batch := &PayoutBatch{BatchID: result.BatchID}
	if len(result.Items) > 0 {
		batch.ItemID = result.Items[0].ItemID
	}

	return batch, nil
}

func (c *PayMailClient) GetPayoutStatus(ctx context.Context, batchID string) (*PayoutStatus, error) {
	var status PayoutStatus
	if err := c.do(ctx, http.MethodGet, "/v1/payouts/"+batchID, nil, &status); err != nil {
		return nil, err
	}

	return &status, nil
}

func (c *PayMailClient) VerifyWebhookSignature(payload []byte, signature, secret string) error {
	return VerifyPlainSignature(payload, signature, secret)
}

func (c *PayMailClient) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
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

	req.SetBasicAuth(c.clientID, c.secret)
	req.Header.Set("Content-Type", "application/json")

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
