package refund

import "time"

// Refund statuses. waiting and reviewing are the non-terminal states;
// reviewing marks a refund claimed by an approval in flight, so only
// one reviewer can reach the gateway for it.
const (
	StatusWaiting   = "waiting"
	StatusReviewing = "reviewing"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
)

// Refund is a student's request to undo a completed purchase. One
// refund per transaction, enforced by the database.
type Refund struct {
	ID            int    `db:"id" json:"id"`
	TransactionID int    `db:"transaction_id" json:"transaction_id"`
	StudentID     int    `db:"student_id" json:"student_id"`
	Reason        string `db:"reason" json:"reason"`
	Status        string `db:"status" json:"status"`
	// Response carries the reviewer's explanation. Mandatory on
	// rejection, optional on approval.
	Response *string `db:"response" json:"response,omitempty"`
	// RefundReference is the gateway refund id, set on approval of a
	// paid purchase.
	RefundReference *string    `db:"refund_reference" json:"refund_reference,omitempty"`
	ReviewedBy      *int       `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

type RequestRefundInput struct {
	TransactionID int    `json:"transaction_id" binding:"required"`
	Reason        string `json:"reason" binding:"required,min=10"`
}

type ReviewRefundInput struct {
	Approve  bool   `json:"approve"`
	Response string `json:"response"`
}
