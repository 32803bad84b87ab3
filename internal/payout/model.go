package payout

import (
	"time"

	"github.com/shopspring/decimal"
)

// Withdraw statuses. processing may move to completed, unclaimed or
// failed; unclaimed may still fail later when the provider returns the
// funds. failed withdrawals have already been credited back.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusUnclaimed  = "unclaimed"
	StatusFailed     = "failed"
)

// Payout delivery methods.
const (
	MethodTransfer = "transfer"
	MethodEmail    = "email"
)

// Withdraw is a teacher's request to move wallet balance out of the
// platform. The wallet debit happens when the row is created; a failed
// withdraw gets the money credited back.
type Withdraw struct {
	ID        int             `db:"id" json:"id"`
	TeacherID int             `db:"teacher_id" json:"teacher_id"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	Currency  string          `db:"currency" json:"currency"`
	Method    string          `db:"method" json:"method"`
	Status    string          `db:"status" json:"status"`
	// Reference is the provider-side id (transfer id or payout item id)
	// used to correlate asynchronous status callbacks.
	Reference     *string         `db:"reference" json:"reference,omitempty"`
	FailureReason *string         `db:"failure_reason" json:"failure_reason,omitempty"`
	FailedAt      *time.Time      `db:"failed_at" json:"failed_at,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
	Histories     []WithdrawHistory `db:"-" json:"histories,omitempty"`
}

// WithdrawHistory is an append-only trail of status changes.
type WithdrawHistory struct {
	ID         int       `db:"id" json:"id"`
	WithdrawID int       `db:"withdraw_id" json:"withdraw_id"`
	Status     string    `db:"status" json:"status"`
	Note       string    `db:"note" json:"note"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

type CreatePayoutInput struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}
