package payout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"belta/internal/wallet"
)

var ErrWithdrawNotFound = errors.New("withdraw not found")

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const withdrawColumns = `id, teacher_id, amount, currency, method, status, reference,
	failure_reason, failed_at, created_at, updated_at`

func (r *repository) CreateWithdraw(ctx context.Context, teacherID int, amount decimal.Decimal, currency, method string) (*Withdraw, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO withdraws (teacher_id, amount, currency, method, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + withdrawColumns

	var created Withdraw
	err = tx.GetContext(ctx, &created, query, teacherID, amount, currency, method, StatusProcessing)
	if err != nil {
		return nil, fmt.Errorf("failed to create withdraw: %w", err)
	}

	reference := fmt.Sprintf("withdraw:%d", created.ID)
	if err := wallet.DebitTxIfSufficient(ctx, tx, teacherID, amount, wallet.KindPayout, reference); err != nil {
		return nil, err
	}

	if err := insertHistory(ctx, tx, created.ID, StatusProcessing, "Withdraw requested"); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &created, nil
}

func (r *repository) SetReference(ctx context.Context, withdrawID int, reference string) error {
	query := `UPDATE withdraws SET reference = $1, updated_at = NOW() WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, reference, withdrawID)
	if err != nil {
		return fmt.Errorf("failed to set withdraw reference: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrWithdrawNotFound
	}
	return nil
}

func (r *repository) MarkFailedAndRefund(ctx context.Context, withdrawID int, reason string) (*Withdraw, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE withdraws
		SET status = $1, failure_reason = $2, failed_at = NOW(), updated_at = NOW()
		WHERE id = $3 AND status <> $1
		RETURNING ` + withdrawColumns

	var updated Withdraw
	err = tx.GetContext(ctx, &updated, query, StatusFailed, reason, withdrawID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWithdrawNotFound
		}
		return nil, fmt.Errorf("failed to mark withdraw failed: %w", err)
	}

	reference := fmt.Sprintf("withdraw:%d", withdrawID)
	if err := wallet.CreditTx(ctx, tx, updated.TeacherID, updated.Amount, wallet.KindPayoutReturn, reference); err != nil {
		return nil, fmt.Errorf("failed to return payout to wallet: %w", err)
	}

	if err := insertHistory(ctx, tx, withdrawID, StatusFailed, reason); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &updated, nil
}

func (r *repository) UpdateStatus(ctx context.Context, withdrawID int, status, note string) (*Withdraw, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Terminal states are never overwritten here; a completed or failed
	// withdraw ignores late out-of-order notifications. The failing path
	// goes through MarkFailedAndRefund instead.
	query := `
		UPDATE withdraws
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status NOT IN ($3, $4)
		RETURNING ` + withdrawColumns

	var updated Withdraw
	err = tx.GetContext(ctx, &updated, query, status, withdrawID, StatusCompleted, StatusFailed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, gerr := r.GetByID(ctx, withdrawID); gerr == nil {
				return nil, nil
			}
			return nil, ErrWithdrawNotFound
		}
		return nil, fmt.Errorf("failed to update withdraw status: %w", err)
	}

	if err := insertHistory(ctx, tx, withdrawID, status, note); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &updated, nil
}

func insertHistory(ctx context.Context, tx *sqlx.Tx, withdrawID int, status, note string) error {
	query := `INSERT INTO withdraw_histories (withdraw_id, status, note) VALUES ($1, $2, $3)`
	if _, err := tx.ExecContext(ctx, query, withdrawID, status, note); err != nil {
		return fmt.Errorf("failed to record withdraw history: %w", err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id int) (*Withdraw, error) {
	var w Withdraw
	query := `SELECT ` + withdrawColumns + ` FROM withdraws WHERE id = $1`
	err := r.db.GetContext(ctx, &w, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWithdrawNotFound
		}
		return nil, fmt.Errorf("failed to get withdraw: %w", err)
	}
	return &w, nil
}

func (r *repository) GetByReference(ctx context.Context, reference string) (*Withdraw, error) {
	var w Withdraw
	query := `SELECT ` + withdrawColumns + ` FROM withdraws WHERE reference = $1`
	err := r.db.GetContext(ctx, &w, query, reference)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWithdrawNotFound
		}
		return nil, fmt.Errorf("failed to get withdraw: %w", err)
	}
	return &w, nil
}

func (r *repository) ListByTeacher(ctx context.Context, teacherID, limit, offset int) ([]Withdraw, error) {
	withdraws := []Withdraw{}
	query := `SELECT ` + withdrawColumns + `
		FROM withdraws
		WHERE teacher_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	err := r.db.SelectContext(ctx, &withdraws, query, teacherID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdraws: %w", err)
	}
	return withdraws, nil
}

func (r *repository) ListHistory(ctx context.Context, withdrawID int) ([]WithdrawHistory, error) {
	histories := []WithdrawHistory{}
	query := `SELECT id, withdraw_id, status, note, created_at
		FROM withdraw_histories
		WHERE withdraw_id = $1
		ORDER BY created_at ASC`
	err := r.db.SelectContext(ctx, &histories, query, withdrawID)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdraw history: %w", err)
	}
	return histories, nil
}
