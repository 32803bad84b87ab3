package purchase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"belta/internal/db"
	"belta/internal/wallet"
)

var ErrTransactionNotFound = errors.New("transaction not found")

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const transactionColumns = `id, student_id, teacher_id, course_id, original_price, final_price,
	paid_price, wallet_amount_used, teacher_profit_percent, teacher_profit,
	payment_reference, status, created_at, updated_at`

func (r *repository) CreatePending(ctx context.Context, t *Transaction) (*Transaction, error) {
	query := `
		INSERT INTO transactions (student_id, teacher_id, course_id, original_price, final_price,
			paid_price, wallet_amount_used, teacher_profit_percent, teacher_profit,
			payment_reference, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + transactionColumns

	var created Transaction
	err := r.db.GetContext(ctx, &created, query,
		t.StudentID, t.TeacherID, t.CourseID, t.OriginalPrice, t.FinalPrice,
		t.PaidPrice, t.WalletAmountUsed, t.TeacherProfitPercent, t.TeacherProfit,
		t.PaymentReference, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return &created, nil
}

func (r *repository) CreateCompleted(ctx context.Context, t *Transaction) (*Transaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO transactions (student_id, teacher_id, course_id, original_price, final_price,
			paid_price, wallet_amount_used, teacher_profit_percent, teacher_profit,
			payment_reference, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + transactionColumns

	var created Transaction
	err = tx.GetContext(ctx, &created, query,
		t.StudentID, t.TeacherID, t.CourseID, t.OriginalPrice, t.FinalPrice,
		t.PaidPrice, t.WalletAmountUsed, t.TeacherProfitPercent, t.TeacherProfit,
		t.PaymentReference, StatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	if err := r.settle(ctx, tx, &created); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &created, nil
}

func (r *repository) Complete(ctx context.Context, t *Transaction) (*Transaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE transactions
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
		RETURNING ` + transactionColumns

	var updated Transaction
	err = tx.GetContext(ctx, &updated, query, StatusCompleted, t.ID, StatusPending)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to complete transaction: %w", err)
	}

	if err := r.settle(ctx, tx, &updated); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &updated, nil
}

// settle performs the settlement side effects inside an open database
// transaction: teacher wallet credit (skipped for a zero profit) and the
// ownership grant.
func (r *repository) settle(ctx context.Context, tx *sqlx.Tx, t *Transaction) error {
	if t.TeacherProfit.IsPositive() {
		reference := fmt.Sprintf("transaction:%d", t.ID)
		if err := wallet.CreditTx(ctx, tx, t.TeacherID, t.TeacherProfit, wallet.KindCourseSale, reference); err != nil {
			return fmt.Errorf("failed to credit teacher wallet: %w", err)
		}
	}
	if t.CourseID == nil {
		return nil
	}

	query := `INSERT INTO owned_courses (student_id, course_id, transaction_id) VALUES ($1, $2, $3)`
	if _, err := tx.ExecContext(ctx, query, t.StudentID, *t.CourseID, t.ID); err != nil {
		return fmt.Errorf("failed to grant course ownership: %w", err)
	}
	return nil
}

func (r *repository) MarkStatusIfPending(ctx context.Context, paymentReference, status string) (*Transaction, error) {
	query := `
		UPDATE transactions
		SET status = $1, updated_at = NOW()
		WHERE payment_reference = $2 AND status = $3
		RETURNING ` + transactionColumns

	var updated Transaction
	err := r.db.GetContext(ctx, &updated, query, status, paymentReference, StatusPending)
	if err == nil {
		return &updated, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to update transaction status: %w", err)
	}

	// Nothing pending under this reference. Distinguish an already
	// resolved transaction from one we never saw.
	if _, err := r.GetByReference(ctx, paymentReference); err != nil {
		return nil, err
	}
	return nil, nil
}

func (r *repository) GetByID(ctx context.Context, id int) (*Transaction, error) {
	var t Transaction
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	err := r.db.GetContext(ctx, &t, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &t, nil
}

func (r *repository) GetByReference(ctx context.Context, paymentReference string) (*Transaction, error) {
	var t Transaction
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE payment_reference = $1`
	err := r.db.GetContext(ctx, &t, query, paymentReference)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &t, nil
}

func (r *repository) HasPendingForCourse(ctx context.Context, studentID, courseID int) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM transactions WHERE student_id = $1 AND course_id = $2 AND status = $3)`
	exists, err := db.Exists(ctx, r.db, query, studentID, courseID, StatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to check pending transactions: %w", err)
	}
	return exists, nil
}

func (r *repository) IsOwned(ctx context.Context, studentID, courseID int) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM owned_courses WHERE student_id = $1 AND course_id = $2)`
	exists, err := db.Exists(ctx, r.db, query, studentID, courseID)
	if err != nil {
		return false, fmt.Errorf("failed to check course ownership: %w", err)
	}
	return exists, nil
}

func (r *repository) ListByStudent(ctx context.Context, studentID, limit, offset int) ([]Transaction, error) {
	transactions := []Transaction{}
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE student_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	err := r.db.SelectContext(ctx, &transactions, query, studentID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return transactions, nil
}

func (r *repository) ListOwned(ctx context.Context, studentID int) ([]OwnedCourse, error) {
	owned := []OwnedCourse{}
	query := `SELECT id, student_id, course_id, transaction_id, created_at
		FROM owned_courses
		WHERE student_id = $1
		ORDER BY created_at DESC`
	err := r.db.SelectContext(ctx, &owned, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list owned courses: %w", err)
	}
	return owned, nil
}
