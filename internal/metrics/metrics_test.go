package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordPurchase(t *testing.T) {
	before := testutil.ToFloat64(PurchasesTotal.WithLabelValues("completed"))

	RecordPurchase("completed")

	after := testutil.ToFloat64(PurchasesTotal.WithLabelValues("completed"))
	assert.Equal(t, before+1, after)
}

func TestRecordWebhookEvent(t *testing.T) {
	before := testutil.ToFloat64(WebhookEventsTotal.WithLabelValues("cardpay", "ignored"))

	RecordWebhookEvent("cardpay", "ignored")

	after := testutil.ToFloat64(WebhookEventsTotal.WithLabelValues("cardpay", "ignored"))
	assert.Equal(t, before+1, after)
}

func TestRecordPayout(t *testing.T) {
	before := testutil.ToFloat64(PayoutsTotal.WithLabelValues("failed"))

	RecordPayout("failed")

	after := testutil.ToFloat64(PayoutsTotal.WithLabelValues("failed"))
	assert.Equal(t, before+1, after)
}
