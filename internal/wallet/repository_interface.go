package wallet

import (
	"context"

	"github.com/shopspring/decimal"
)

type Repository interface {
	GetOrCreateWallet(ctx context.Context, userID int) (*Wallet, error)
	GetByUserID(ctx context.Context, userID int) (*Wallet, error)
	Credit(ctx context.Context, userID int, amount decimal.Decimal, kind, reference string) error
	Debit(ctx context.Context, userID int, amount decimal.Decimal, kind, reference string) error
	DebitIfSufficient(ctx context.Context, userID int, amount decimal.Decimal, kind, reference string) error
	GetEntries(ctx context.Context, userID int, limit, offset int) ([]Entry, error)
}
