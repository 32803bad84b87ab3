package wallet

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet holds a teacher's earned balance. Created lazily on first use,
// mutated only through increment/decrement deltas.
type Wallet struct {
	ID        int             `db:"id" json:"id"`
	UserID    int             `db:"user_id" json:"user_id"`
	Balance   decimal.Decimal `db:"balance" json:"balance"`
	Currency  string          `db:"currency" json:"currency"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// Entry kinds.
const (
	KindCourseSale     = "course_sale"
	KindRefundReversal = "refund_reversal"
	KindPayout         = "payout"
	KindPayoutReturn   = "payout_return"
)

type Entry struct {
	ID           int             `db:"id" json:"id"`
	WalletID     int             `db:"wallet_id" json:"wallet_id"`
	Amount       decimal.Decimal `db:"amount" json:"amount"` // signed delta
	Kind         string          `db:"kind" json:"kind"`
	Reference    string          `db:"reference" json:"reference"`
	BalanceAfter decimal.Decimal `db:"balance_after" json:"balance_after"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}
