package events

import (
	"context"
	"testing"

	"belta/internal/logger"

	"github.com/stretchr/testify/assert"
)

func TestNewPublisher_DisabledWithoutBrokers(t *testing.T) {
	logger.Init()

	p := NewPublisher("", "belta.billing")
	assert.Nil(t, p.writer)

	// Publishing on a disabled publisher must be a silent no-op.
	p.Publish(context.Background(), TypePurchaseCompleted, "tx-1", map[string]int{"transaction_id": 1})
	assert.NoError(t, p.Close())
}

func TestNewPublisher_ParsesBrokerList(t *testing.T) {
	logger.Init()

	p := NewPublisher("localhost:9092, localhost:9093", "belta.billing")
	assert.NotNil(t, p.writer)
	assert.NoError(t, p.Close())
}
