package payout

import (
	"context"

	"github.com/shopspring/decimal"
)

type Repository interface {
	// CreateWithdraw debits the teacher wallet and records the withdraw
	// with its first history row in one database transaction. The debit
	// is conditional: an insufficient balance aborts the whole unit.
	CreateWithdraw(ctx context.Context, teacherID int, amount decimal.Decimal, currency, method string) (*Withdraw, error)
	SetReference(ctx context.Context, withdrawID int, reference string) error
	// MarkFailedAndRefund flips the withdraw to failed and credits the
	// amount back to the wallet, atomically. A withdraw already failed
	// is left alone so the credit-back never happens twice.
	MarkFailedAndRefund(ctx context.Context, withdrawID int, reason string) (*Withdraw, error)
	// UpdateStatus moves a non-terminal withdraw to the given status and
	// appends a history row. Returns (nil, nil) when the withdraw exists
	// but is already completed or failed, so out-of-order provider
	// notifications cannot regress it.
	UpdateStatus(ctx context.Context, withdrawID int, status, note string) (*Withdraw, error)
	GetByID(ctx context.Context, id int) (*Withdraw, error)
	GetByReference(ctx context.Context, reference string) (*Withdraw, error)
	ListByTeacher(ctx context.Context, teacherID, limit, offset int) ([]Withdraw, error)
	ListHistory(ctx context.Context, withdrawID int) ([]WithdrawHistory, error)
}
