package wallet

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrNonPositiveAmount   = errors.New("amount must be positive")
)

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetOrCreateWallet(ctx context.Context, userID int) (*Wallet, error) {
	w := &Wallet{}
	err := r.db.GetContext(ctx, w,
		`SELECT id, user_id, balance, currency, created_at, updated_at
		 FROM wallets WHERE user_id = $1`, userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	err = r.db.QueryRowxContext(ctx,
		`INSERT INTO wallets (user_id)
		 VALUES ($1)
		 ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
		 RETURNING id, user_id, balance, currency, created_at, updated_at`,
		userID,
	).StructScan(w)
	if err != nil {
		return nil, err
	}

	return w, nil
}

func (r *repository) GetByUserID(ctx context.Context, userID int) (*Wallet, error) {
	var w Wallet
	err := r.db.GetContext(ctx, &w,
		`SELECT id, user_id, balance, currency, created_at, updated_at
		 FROM wallets WHERE user_id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}

	return &w, nil
}

func (r *repository) Credit(ctx context.Context, userID int, amount decimal.Decimal, kind, reference string) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrNonPositiveAmount
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := CreditTx(ctx, tx, userID, amount, kind, reference); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *repository) Debit(ctx context.Context, userID int, amount decimal.Decimal, kind, reference string) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrNonPositiveAmount
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := DebitTx(ctx, tx, userID, amount, kind, reference); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *repository) DebitIfSufficient(ctx context.Context, userID int, amount decimal.Decimal, kind, reference string) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrNonPositiveAmount
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := DebitTxIfSufficient(ctx, tx, userID, amount, kind, reference); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *repository) GetEntries(ctx context.Context, userID int, limit, offset int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	var walletID int
	err := r.db.GetContext(ctx, &walletID, `SELECT id FROM wallets WHERE user_id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []Entry{}, nil
		}
		return nil, err
	}

	var entries []Entry
	err = r.db.SelectContext(ctx, &entries, `
		SELECT id, wallet_id, amount, kind, reference, balance_after, created_at
		FROM wallet_entries
		WHERE wallet_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, walletID, limit, offset)
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// CreditTx applies an atomic balance increment inside the caller's
// transaction, creating the wallet row on first use. The engines use
// these helpers so a settlement or refund can mutate the ledger in the
// same atomic unit as its own rows.
func CreditTx(ctx context.Context, tx *sqlx.Tx, userID int, amount decimal.Decimal, kind, reference string) error {
	var w Wallet
	err := tx.QueryRowxContext(ctx, `
		INSERT INTO wallets (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
		RETURNING id, user_id, balance, currency, created_at, updated_at
	`, userID).StructScan(&w)
	if err != nil {
		return err
	}

	var balanceAfter decimal.Decimal
	err = tx.QueryRowxContext(ctx, `
		UPDATE wallets
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING balance
	`, amount, w.ID).Scan(&balanceAfter)
	if err != nil {
		return err
	}

	return insertEntry(ctx, tx, w.ID, amount, kind, reference, balanceAfter)
}

// DebitTx applies an atomic balance decrement with no lower-bound check.
// Callers deduct only amounts previously credited (refund reversals).
func DebitTx(ctx context.Context, tx *sqlx.Tx, userID int, amount decimal.Decimal, kind, reference string) error {
	var w struct {
		ID           int             `db:"id"`
		BalanceAfter decimal.Decimal `db:"balance"`
	}
	err := tx.QueryRowxContext(ctx, `
		UPDATE wallets
		SET balance = balance - $1, updated_at = NOW()
		WHERE user_id = $2
		RETURNING id, balance
	`, amount, userID).StructScan(&w)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrWalletNotFound
		}
		return err
	}

	return insertEntry(ctx, tx, w.ID, amount.Neg(), kind, reference, w.BalanceAfter)
}

// DebitTxIfSufficient is the conditional form used by payouts: the
// decrement only happens when the balance covers it, closing the race
// between concurrent withdrawal requests at the storage boundary.
func DebitTxIfSufficient(ctx context.Context, tx *sqlx.Tx, userID int, amount decimal.Decimal, kind, reference string) error {
	var w struct {
		ID           int             `db:"id"`
		BalanceAfter decimal.Decimal `db:"balance"`
	}
	err := tx.QueryRowxContext(ctx, `
		UPDATE wallets
		SET balance = balance - $1, updated_at = NOW()
		WHERE user_id = $2 AND balance >= $1
		RETURNING id, balance
	`, amount, userID).StructScan(&w)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInsufficientBalance
		}
		return err
	}

	return insertEntry(ctx, tx, w.ID, amount.Neg(), kind, reference, w.BalanceAfter)
}

func insertEntry(ctx context.Context, tx *sqlx.Tx, walletID int, amount decimal.Decimal, kind, reference string, balanceAfter decimal.Decimal) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallet_entries (wallet_id, amount, kind, reference, balance_after)
		VALUES ($1, $2, $3, $4, $5)
	`, walletID, amount, kind, reference, balanceAfter)
	return err
}
