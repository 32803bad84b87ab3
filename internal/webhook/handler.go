package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"belta/internal/logger"
	"belta/internal/metrics"
	"belta/internal/payment"
	"belta/internal/payout"
	"belta/internal/purchase"
)

// Signature headers the providers send.
const (
	cardPaySignatureHeader = "CardPay-Signature"
	payMailSignatureHeader = "PayMail-Transmission-Sig"
)

// payMail event types map onto withdraw statuses; everything not listed
// here is acknowledged and dropped.
var payMailStatusByEvent = map[string]string{
	"PAYMENT.PAYOUTS-ITEM.SUCCEEDED": payout.StatusCompleted,
	"PAYMENT.PAYOUTS-ITEM.UNCLAIMED": payout.StatusUnclaimed,
	"PAYMENT.PAYOUTS-ITEM.HELD":      payout.StatusProcessing,
	"PAYMENT.PAYOUTS-ITEM.FAILED":    payout.StatusFailed,
	"PAYMENT.PAYOUTS-ITEM.RETURNED":  payout.StatusFailed,
	"PAYMENT.PAYOUTS-ITEM.REFUNDED":  payout.StatusFailed,
	"PAYMENT.PAYOUTS-ITEM.BLOCKED":   payout.StatusFailed,
	"PAYMENT.PAYOUTS-ITEM.CANCELED":  payout.StatusFailed,
	"PAYMENT.PAYOUTS-ITEM.DENIED":    payout.StatusFailed,
}

// cardPay transfer event types map the same way.
var cardPayTransferStatusByEvent = map[string]string{
	"transfer.paid":     payout.StatusCompleted,
	"transfer.failed":   payout.StatusFailed,
	"transfer.reversed": payout.StatusFailed,
}

type Handler struct {
	purchases     purchase.Service
	payouts       payout.Service
	checkout      payment.CheckoutGateway
	payoutGateway payment.PayoutGateway
	cardPaySecret string
	payMailSecret string
}

func NewHandler(purchases purchase.Service, payouts payout.Service,
	checkout payment.CheckoutGateway, payoutGateway payment.PayoutGateway,
	cardPaySecret, payMailSecret string) *Handler {
	return &Handler{
		purchases:     purchases,
		payouts:       payouts,
		checkout:      checkout,
		payoutGateway: payoutGateway,
		cardPaySecret: cardPaySecret,
		payMailSecret: payMailSecret,
	}
}

type checkoutSessionData struct {
	ID            string `json:"id"`
	PaymentStatus string `json:"payment_status"`
}

type transferData struct {
	ID string `json:"id"`
}

// HandleCardPay godoc
// @Summary      Card gateway webhook
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Success      200  {object}  gin.H
// @Failure      400  {object}  gin.H
// @Router       /webhooks/cardpay [post]
func (h *Handler) HandleCardPay(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	event, err := h.checkout.ConstructWebhookEvent(payload, c.GetHeader(cardPaySignatureHeader), h.cardPaySecret)
	if err != nil {
		metrics.RecordWebhookEvent("cardpay", "rejected")
		logger.Warnf("Rejected cardpay webhook: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
		return
	}

	// Anything past the signature check gets a 200 so the provider
	// stops retrying; failures are logged for reconciliation.
	outcome := h.processCardPayEvent(c, event)
	metrics.RecordWebhookEvent("cardpay", outcome)
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *Handler) processCardPayEvent(c *gin.Context, event *payment.Event) string {
	ctx := c.Request.Context()

	if status, ok := cardPayTransferStatusByEvent[event.Type]; ok {
		var data transferData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			logger.Errorf("Malformed %s event %s: %v", event.Type, event.ID, err)
			return "error"
		}
		return h.applyPayoutStatus(c, data.ID, status, event.Type)
	}

	var data checkoutSessionData
	switch event.Type {
	case "checkout.session.completed":
		if err := json.Unmarshal(event.Data, &data); err != nil {
			logger.Errorf("Malformed %s event %s: %v", event.Type, event.ID, err)
			return "error"
		}
		if data.PaymentStatus == "paid" {
			return h.settlePurchase(ctx, data.ID, event.ID)
		}
		// Session closed without payment (e.g. delayed methods that
		// never cleared).
		return h.resolvePurchase(ctx, data.ID, event.ID, h.purchases.Cancel)

	case "checkout.session.expired":
		if err := json.Unmarshal(event.Data, &data); err != nil {
			logger.Errorf("Malformed %s event %s: %v", event.Type, event.ID, err)
			return "error"
		}
		return h.resolvePurchase(ctx, data.ID, event.ID, h.purchases.Cancel)

	case "checkout.session.async_payment_failed":
		if err := json.Unmarshal(event.Data, &data); err != nil {
			logger.Errorf("Malformed %s event %s: %v", event.Type, event.ID, err)
			return "error"
		}
		return h.resolvePurchase(ctx, data.ID, event.ID, h.purchases.Reject)

	default:
		logger.Infof("Ignoring cardpay event %s of type %s", event.ID, event.Type)
		return "ignored"
	}
}

func (h *Handler) settlePurchase(ctx context.Context, sessionID, eventID string) string {
	if _, err := h.purchases.CompleteFromWebhook(ctx, sessionID); err != nil {
		if errors.Is(err, purchase.ErrTransactionNotFound) {
			logger.Warnf("Event %s references unknown session %s", eventID, sessionID)
			return "unknown_reference"
		}
		logger.Errorf("Failed to settle session %s from event %s: %v", sessionID, eventID, err)
		return "error"
	}
	return "processed"
}

func (h *Handler) resolvePurchase(ctx context.Context, sessionID, eventID string,
	resolve func(context.Context, string) (*purchase.Transaction, error)) string {
	if _, err := resolve(ctx, sessionID); err != nil {
		if errors.Is(err, purchase.ErrTransactionNotFound) {
			logger.Warnf("Event %s references unknown session %s", eventID, sessionID)
			return "unknown_reference"
		}
		logger.Errorf("Failed to resolve session %s from event %s: %v", sessionID, eventID, err)
		return "error"
	}
	return "processed"
}

type payMailEvent struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		PayoutItemID      string `json:"payout_item_id"`
		TransactionStatus string `json:"transaction_status"`
		Errors            struct {
			Message string `json:"message"`
		} `json:"errors"`
	} `json:"resource"`
}

// HandlePayMail godoc
// @Summary      Email payout provider webhook
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Success      200  {object}  gin.H
// @Failure      400  {object}  gin.H
// @Router       /webhooks/paymail [post]
func (h *Handler) HandlePayMail(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	if err := h.payoutGateway.VerifyWebhookSignature(payload, c.GetHeader(payMailSignatureHeader), h.payMailSecret); err != nil {
		metrics.RecordWebhookEvent("paymail", "rejected")
		logger.Warnf("Rejected paymail webhook: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
		return
	}

	var event payMailEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		metrics.RecordWebhookEvent("paymail", "error")
		logger.Errorf("Malformed paymail webhook: %v", err)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	status, ok := payMailStatusByEvent[event.EventType]
	if !ok {
		metrics.RecordWebhookEvent("paymail", "ignored")
		logger.Infof("Ignoring paymail event %s of type %s", event.ID, event.EventType)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	note := event.EventType
	if event.Resource.Errors.Message != "" {
		note = event.Resource.Errors.Message
	}

	outcome := h.applyPayoutStatus(c, event.Resource.PayoutItemID, status, note)
	metrics.RecordWebhookEvent("paymail", outcome)
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *Handler) applyPayoutStatus(c *gin.Context, reference, status, note string) string {
	if _, err := h.payouts.UpdateFromGateway(c.Request.Context(), reference, status, note); err != nil {
		if errors.Is(err, payout.ErrWithdrawNotFound) {
			logger.Warnf("Payout event references unknown withdraw %s", reference)
			return "unknown_reference"
		}
		logger.Errorf("Failed to apply payout status %s to %s: %v", status, reference, err)
		return "error"
	}
	return "processed"
}
