package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"belta/internal/logger"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Billing event types consumed by downstream analytics.
const (
	TypePurchaseCompleted = "purchase.completed"
	TypeRefundApproved    = "refund.approved"
	TypePayoutRequested   = "payout.requested"
	TypePayoutFailed      = "payout.failed"
	TypePayoutSettled     = "payout.settled"
)

type Envelope struct {
	EventID   string      `json:"event_id"`
	EventType string      `json:"event_type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// Publisher is a best-effort kafka emitter. When no brokers are
// configured it is a no-op; engine flow never depends on it.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(brokers, topic string) *Publisher {
	if strings.TrimSpace(brokers) == "" {
		logger.Info("Event publishing disabled (KAFKA_BROKERS is empty)")
		return &Publisher{}
	}

	var addrs []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			addrs = append(addrs, b)
		}
	}

	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(addrs...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: 5 * time.Second,
			Async:        true,
		},
	}
}

func (p *Publisher) Publish(ctx context.Context, eventType, key string, payload interface{}) {
	if p == nil || p.writer == nil {
		return
	}

	envelope := Envelope{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		logger.Errorf("Failed to marshal event %s: %v", eventType, err)
		return
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
	})
	if err != nil {
		logger.Errorf("Failed to publish event %s: %v", eventType, err)
	}
}

func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
