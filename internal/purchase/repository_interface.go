package purchase

import "context"

type Repository interface {
	CreatePending(ctx context.Context, t *Transaction) (*Transaction, error)
	// CreateCompleted inserts an already-settled transaction together with
	// its ownership row and wallet credit in one database transaction.
	CreateCompleted(ctx context.Context, t *Transaction) (*Transaction, error)
	// Complete settles a pending transaction: credits the teacher wallet,
	// grants ownership and flips the status, all-or-nothing.
	Complete(ctx context.Context, t *Transaction) (*Transaction, error)
	// MarkStatusIfPending moves a pending transaction to the given terminal
	// status. Returns (nil, nil) when the transaction exists but is no
	// longer pending, so late gateway notifications stay harmless.
	MarkStatusIfPending(ctx context.Context, paymentReference, status string) (*Transaction, error)
	GetByID(ctx context.Context, id int) (*Transaction, error)
	GetByReference(ctx context.Context, paymentReference string) (*Transaction, error)
	HasPendingForCourse(ctx context.Context, studentID, courseID int) (bool, error)
	IsOwned(ctx context.Context, studentID, courseID int) (bool, error)
	ListByStudent(ctx context.Context, studentID, limit, offset int) ([]Transaction, error)
	ListOwned(ctx context.Context, studentID int) ([]OwnedCourse, error)
}
