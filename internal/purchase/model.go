package purchase

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction statuses. pending may move to exactly one of the other
// three; completed/canceled/rejected are terminal.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusCanceled  = "canceled"
	StatusRejected  = "rejected"
)

// Transaction records one course purchase. Prices and the profit split
// are frozen at creation; only the status and updated_at move afterwards.
type Transaction struct {
	ID                   int             `db:"id" json:"id"`
	StudentID            int             `db:"student_id" json:"student_id"`
	TeacherID            int             `db:"teacher_id" json:"teacher_id"`
	CourseID             *int            `db:"course_id" json:"course_id"`
	OriginalPrice        decimal.Decimal `db:"original_price" json:"original_price"`
	FinalPrice           decimal.Decimal `db:"final_price" json:"final_price"`
	PaidPrice            decimal.Decimal `db:"paid_price" json:"paid_price"`
	WalletAmountUsed     decimal.Decimal `db:"wallet_amount_used" json:"wallet_amount_used"`
	TeacherProfitPercent decimal.Decimal `db:"teacher_profit_percent" json:"teacher_profit_percent"`
	TeacherProfit        decimal.Decimal `db:"teacher_profit" json:"teacher_profit"`
	// PaymentReference is the gateway checkout-session id. Present from
	// the moment a session exists; zero-price purchases never get one.
	PaymentReference *string   `db:"payment_reference" json:"payment_reference,omitempty"`
	Status           string    `db:"status" json:"status"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// OwnedCourse grants a student access to a course. Its existence is the
// single source of truth for access; transaction status alone is not.
type OwnedCourse struct {
	ID            int       `db:"id" json:"id"`
	StudentID     int       `db:"student_id" json:"student_id"`
	CourseID      int       `db:"course_id" json:"course_id"`
	TransactionID int       `db:"transaction_id" json:"transaction_id"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// PurchaseResult is returned from purchase initiation. RedirectURL is
// empty when the purchase settled synchronously (zero-price path).
type PurchaseResult struct {
	Transaction      *Transaction    `json:"transaction"`
	RedirectURL      string          `json:"redirect_url,omitempty"`
	WalletAmountUsed decimal.Decimal `json:"wallet_amount_used"`
}
