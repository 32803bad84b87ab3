package payment

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrGatewayRequest   = errors.New("gateway request failed")
)

// CheckoutSession is returned on session creation; the URL is where the
// buyer is redirected to pay.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// SessionDetails is the retrieved state of an existing session. The
// payment reference is only present once the buyer has paid.
type SessionDetails struct {
	ID               string `json:"id"`
	PaymentStatus    string `json:"payment_status"`
	PaymentReference string `json:"payment_reference"`
}

type CheckoutParams struct {
	Amount        decimal.Decimal
	Currency      string
	SuccessURL    string
	CancelURL     string
	CustomerEmail string
	Metadata      map[string]string
}

type Refund struct {
	ID string `json:"id"`
}

type Transfer struct {
	ID string `json:"id"`
}

type Account struct {
	ID string `json:"id"`
}

// Event is a verified webhook payload.
type Event struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// CheckoutGateway is the card-checkout provider surface the engines
// consume. Implementations are thin HTTP adapters; no business rules
// live behind this interface.
type CheckoutGateway interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
	RetrieveCheckoutSession(ctx context.Context, sessionID string) (*SessionDetails, error)
	CreateRefund(ctx context.Context, paymentReference string, amount decimal.Decimal) (*Refund, error)
	CreateTransfer(ctx context.Context, amount decimal.Decimal, currency, destinationAccount string, metadata map[string]string) (*Transfer, error)
	CreateConnectAccount(ctx context.Context, email string) (*Account, error)
	ConstructWebhookEvent(payload []byte, signature, secret string) (*Event, error)
}

type PayoutBatch struct {
	BatchID string `json:"batch_id"`
	ItemID  string `json:"item_id"`
}

type PayoutItemStatus struct {
	ItemID string `json:"item_id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type PayoutStatus struct {
	BatchID     string             `json:"batch_id"`
	BatchStatus string             `json:"batch_status"`
	Items       []PayoutItemStatus `json:"items"`
}

/// PayoutGateway is the email-payout provider surface: batch payouts
// addressed to a payee email, with asynchronous status callbacks.
type PayoutGateway interface {
	CreatePayout(ctx context.Context, email string, amount decimal.Decimal, currency, batchID, note string) (*PayoutBatch, error)
	GetPayoutStatus(ctx context.Context, batchID string) (*PayoutStatus, error)
	VerifyWebhookSignature(payload []byte, signature, secret string) error
}
