package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"belta/internal/logger"
	"belta/internal/payment"
	"belta/internal/payout"
	"belta/internal/purchase"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

const (
	testCardPaySecret = "whsec_test"
	testPayMailSecret = "pmsec_test"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.Init()
	os.Exit(m.Run())
}

type MockPurchaseService struct{ mock.Mock }

func (m *MockPurchaseService) InitiatePurchase(ctx context.Context, studentID, courseID int) (*purchase.PurchaseResult, error) {
	args := m.Called(ctx, studentID, courseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*purchase.PurchaseResult), args.Error(1)
}

func (m *MockPurchaseService) CompleteFromWebhook(ctx context.Context, paymentReference string) (*purchase.Transaction, error) {
	args := m.Called(ctx, paymentReference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*purchase.Transaction), args.Error(1)
}

func (m *MockPurchaseService) Cancel(ctx context.Context, paymentReference string) (*purchase.Transaction, error) {
	args := m.Called(ctx, paymentReference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*purchase.Transaction), args.Error(1)
}

func (m *MockPurchaseService) Reject(ctx context.Context, paymentReference string) (*purchase.Transaction, error) {
	args := m.Called(ctx, paymentReference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*purchase.Transaction), args.Error(1)
}

func (m *MockPurchaseService) ListMyPurchases(ctx context.Context, studentID, limit, offset int) ([]purchase.Transaction, error) {
	args := m.Called(ctx, studentID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]purchase.Transaction), args.Error(1)
}

func (m *MockPurchaseService) ListOwned(ctx context.Context, studentID int) ([]purchase.OwnedCourse, error) {
	args := m.Called(ctx, studentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]purchase.OwnedCourse), args.Error(1)
}

type MockPayoutService struct{ mock.Mock }

func (m *MockPayoutService) CreatePayout(ctx context.Context, teacherID int, amount decimal.Decimal) (*payout.Withdraw, error) {
	args := m.Called(ctx, teacherID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payout.Withdraw), args.Error(1)
}

func (m *MockPayoutService) UpdateFromGateway(ctx context.Context, reference, status, note string) (*payout.Withdraw, error) {
	args := m.Called(ctx, reference, status, note)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payout.Withdraw), args.Error(1)
}

func (m *MockPayoutService) SyncFromGateway(ctx context.Context, teacherID, withdrawID int) (*payout.Withdraw, error) {
	args := m.Called(ctx, teacherID, withdrawID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payout.Withdraw), args.Error(1)
}

func (m *MockPayoutService) GetWithdraw(ctx context.Context, teacherID, withdrawID int) (*payout.Withdraw, error) {
	args := m.Called(ctx, teacherID, withdrawID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payout.Withdraw), args.Error(1)
}

func (m *MockPayoutService) ListMyWithdraws(ctx context.Context, teacherID, limit, offset int) ([]payout.Withdraw, error) {
	args := m.Called(ctx, teacherID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]payout.Withdraw), args.Error(1)
}

func newTestRouter(t *testing.T) (*gin.Engine, *MockPurchaseService, *MockPayoutService) {
	t.Helper()
	purchases := new(MockPurchaseService)
	payouts := new(MockPayoutService)

	h := NewHandler(purchases, payouts,
		payment.NewCardPayClient("http://cardpay.test", "sk_test"),
		payment.NewPayMailClient("http://paymail.test", "client", "secret"),
		testCardPaySecret, testPayMailSecret)

	r := gin.New()
	r.POST("/webhooks/cardpay", h.HandleCardPay)
	r.POST("/webhooks/paymail", h.HandlePayMail)
	return r, purchases, payouts
}

func postCardPay(r *gin.Engine, payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/cardpay", bytes.NewReader(payload))
	req.Header.Set(cardPaySignatureHeader, signature)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func postPayMail(r *gin.Engine, payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/paymail", bytes.NewReader(payload))
	req.Header.Set(payMailSignatureHeader, signature)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func plainSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestHandleCardPay_BadSignature(t *testing.T) {
	r, purchases, _ := newTestRouter(t)

	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"id":"cs_1","payment_status":"paid"}}`)
	w := postCardPay(r, payload, "t=123,v1=deadbeef")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	purchases.AssertNotCalled(t, "CompleteFromWebhook", mock.Anything, mock.Anything)
}

func TestHandleCardPay_SessionCompletedPaid(t *testing.T) {
	r, purchases, _ := newTestRouter(t)

	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"id":"cs_1","payment_status":"paid"}}`)
	purchases.On("CompleteFromWebhook", mock.Anything, "cs_1").
		Return(&purchase.Transaction{ID: 7, Status: purchase.StatusCompleted}, nil)

	w := postCardPay(r, payload, payment.SignPayload(payload, testCardPaySecret, time.Now()))

	assert.Equal(t, http.StatusOK, w.Code)
	purchases.AssertExpectations(t)
}

func TestHandleCardPay_SessionCompletedUnpaid(t *testing.T) {
	r, purchases, _ := newTestRouter(t)

	payload := []byte(`{"id":"evt_2","type":"checkout.session.completed","data":{"id":"cs_1","payment_status":"unpaid"}}`)
	purchases.On("Cancel", mock.Anything, "cs_1").
		Return(&purchase.Transaction{ID: 7, Status: purchase.StatusCanceled}, nil)

	w := postCardPay(r, payload, payment.SignPayload(payload, testCardPaySecret, time.Now()))

	assert.Equal(t, http.StatusOK, w.Code)
	purchases.AssertExpectations(t)
	purchases.AssertNotCalled(t, "CompleteFromWebhook", mock.Anything, mock.Anything)
}

func TestHandleCardPay_SessionExpired(t *testing.T) {
	r, purchases, _ := newTestRouter(t)

	payload := []byte(`{"id":"evt_3","type":"checkout.session.expired","data":{"id":"cs_1"}}`)
	purchases.On("Cancel", mock.Anything, "cs_1").
		Return(&purchase.Transaction{ID: 7, Status: purchase.StatusCanceled}, nil)

	w := postCardPay(r, payload, payment.SignPayload(payload, testCardPaySecret, time.Now()))

	assert.Equal(t, http.StatusOK, w.Code)
	purchases.AssertExpectations(t)
}

func TestHandleCardPay_AsyncPaymentFailed(t *testing.T) {
	r, purchases, _ := newTestRouter(t)

	payload := []byte(`{"id":"evt_4","type":"checkout.session.async_payment_failed","data":{"id":"cs_1"}}`)
	purchases.On("Reject", mock.Anything, "cs_1").
		Return(&purchase.Transaction{ID: 7, Status: purchase.StatusRejected}, nil)

	w := postCardPay(r, payload, payment.SignPayload(payload, testCardPaySecret, time.Now()))

	assert.Equal(t, http.StatusOK, w.Code)
	purchases.AssertExpectations(t)
}

func TestHandleCardPay_UnknownEventTypeAcknowledged(t *testing.T) {
	r, purchases, payouts := newTestRouter(t)

	payload := []byte(`{"id":"evt_5","type":"customer.created","data":{}}`)
	w := postCardPay(r, payload, payment.SignPayload(payload, testCardPaySecret, time.Now()))

	assert.Equal(t, http.StatusOK, w.Code)
	purchases.AssertNotCalled(t, "CompleteFromWebhook", mock.Anything, mock.Anything)
	payouts.AssertNotCalled(t, "UpdateFromGateway", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleCardPay_UnknownSessionAcknowledged(t *testing.T) {
	r, purchases, _ := newTestRouter(t)

	payload := []byte(`{"id":"evt_6","type":"checkout.session.completed","data":{"id":"cs_gone","payment_status":"paid"}}`)
	purchases.On("CompleteFromWebhook", mock.Anything, "cs_gone").
		Return(nil, purchase.ErrTransactionNotFound)

	w := postCardPay(r, payload, payment.SignPayload(payload, testCardPaySecret, time.Now()))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleCardPay_TransferReversed(t *testing.T) {
	r, _, payouts := newTestRouter(t)

	payload := []byte(`{"id":"evt_7","type":"transfer.reversed","data":{"id":"tr_1"}}`)
	payouts.On("UpdateFromGateway", mock.Anything, "tr_1", payout.StatusFailed, "transfer.reversed").
		Return(&payout.Withdraw{ID: 12, Status: payout.StatusFailed}, nil)

	w := postCardPay(r, payload, payment.SignPayload(payload, testCardPaySecret, time.Now()))

	assert.Equal(t, http.StatusOK, w.Code)
	payouts.AssertExpectations(t)
}

func TestHandlePayMail_BadSignature(t *testing.T) {
	r, _, payouts := newTestRouter(t)

	payload := []byte(`{"id":"WH-1","event_type":"PAYMENT.PAYOUTS-ITEM.SUCCEEDED","resource":{"payout_item_id":"item_1"}}`)
	w := postPayMail(r, payload, "deadbeef")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	payouts.AssertNotCalled(t, "UpdateFromGateway", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandlePayMail_Succeeded(t *testing.T) {
	r, _, payouts := newTestRouter(t)

	payload := []byte(`{"id":"WH-2","event_type":"PAYMENT.PAYOUTS-ITEM.SUCCEEDED","resource":{"payout_item_id":"item_1"}}`)
	payouts.On("UpdateFromGateway", mock.Anything, "item_1", payout.StatusCompleted, "PAYMENT.PAYOUTS-ITEM.SUCCEEDED").
		Return(&payout.Withdraw{ID: 13, Status: payout.StatusCompleted}, nil)

	w := postPayMail(r, payload, plainSignature(payload, testPayMailSecret))

	assert.Equal(t, http.StatusOK, w.Code)
	payouts.AssertExpectations(t)
}

func TestHandlePayMail_ReturnedMapsToFailed(t *testing.T) {
	r, _, payouts := newTestRouter(t)

	payload := []byte(`{"id":"WH-3","event_type":"PAYMENT.PAYOUTS-ITEM.RETURNED","resource":{"payout_item_id":"item_1","errors":{"message":"Receiver did not claim"}}}`)
	payouts.On("UpdateFromGateway", mock.Anything, "item_1", payout.StatusFailed, "Receiver did not claim").
		Return(&payout.Withdraw{ID: 13, Status: payout.StatusFailed}, nil)

	w := postPayMail(r, payload, plainSignature(payload, testPayMailSecret))

	assert.Equal(t, http.StatusOK, w.Code)
	payouts.AssertExpectations(t)
}

func TestHandlePayMail_UnknownEventAcknowledged(t *testing.T) {
	r, _, payouts := newTestRouter(t)

	payload := []byte(`{"id":"WH-4","event_type":"PAYMENT.PAYOUTSBATCH.PROCESSING","resource":{}}`)
	w := postPayMail(r, payload, plainSignature(payload, testPayMailSecret))

	assert.Equal(t, http.StatusOK, w.Code)
	payouts.AssertNotCalled(t, "UpdateFromGateway", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandlePayMail_UnknownItemAcknowledged(t *testing.T) {
	r, _, payouts := newTestRouter(t)

	payload := []byte(`{"id":"WH-5","event_type":"PAYMENT.PAYOUTS-ITEM.SUCCEEDED","resource":{"payout_item_id":"item_gone"}}`)
	payouts.On("UpdateFromGateway", mock.Anything, "item_gone", payout.StatusCompleted, "PAYMENT.PAYOUTS-ITEM.SUCCEEDED").
		Return(nil, payout.ErrWithdrawNotFound)

	w := postPayMail(r, payload, plainSignature(payload, testPayMailSecret))

	assert.Equal(t, http.StatusOK, w.Code)
}
