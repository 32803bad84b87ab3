package refund

import (
	"context"

	"belta/internal/purchase"
)

type Repository interface {
	Create(ctx context.Context, transactionID, studentID int, reason string) (*Refund, error)
	GetByID(ctx context.Context, id int) (*Refund, error)
	ListByStudent(ctx context.Context, studentID int) ([]Refund, error)
	ListWaiting(ctx context.Context, limit, offset int) ([]Refund, error)
	// ClaimForReview moves a waiting refund to reviewing; the losing
	// side of a concurrent review gets ErrRefundNotFound.
	ClaimForReview(ctx context.Context, id, reviewerID int) (*Refund, error)
	// ReleaseClaim returns a reviewing refund to waiting after a
	// gateway failure.
	ReleaseClaim(ctx context.Context, id int) error
	// Approve reverses the settlement and marks a claimed (reviewing)
	// refund approved in one database transaction: teacher wallet debit,
	// ownership removal, refund row update.
	Approve(ctx context.Context, r *Refund, t *purchase.Transaction, refundReference string, reviewerID int, response string) (*Refund, error)
	Reject(ctx context.Context, id, reviewerID int, response string) (*Refund, error)
}
