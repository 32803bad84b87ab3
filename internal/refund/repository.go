package refund

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"belta/internal/purchase"
	"belta/internal/wallet"
)

var (
	ErrRefundNotFound = errors.New("refund not found")
	ErrRefundExists   = errors.New("a refund for this transaction already exists")
)

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const refundColumns = `id, transaction_id, student_id, reason, status, response,
	refund_reference, reviewed_by, reviewed_at, created_at, updated_at`

func (r *repository) Create(ctx context.Context, transactionID, studentID int, reason string) (*Refund, error) {
	query := `
		INSERT INTO refunds (transaction_id, student_id, reason, status)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + refundColumns

	var created Refund
	err := r.db.GetContext(ctx, &created, query, transactionID, studentID, reason, StatusWaiting)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrRefundExists
		}
		return nil, fmt.Errorf("failed to create refund: %w", err)
	}
	return &created, nil
}

func (r *repository) GetByID(ctx context.Context, id int) (*Refund, error) {
	var ref Refund
	query := `SELECT ` + refundColumns + ` FROM refunds WHERE id = $1`
	err := r.db.GetContext(ctx, &ref, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRefundNotFound
		}
		return nil, fmt.Errorf("failed to get refund: %w", err)
	}
	return &ref, nil
}

func (r *repository) ListByStudent(ctx context.Context, studentID int) ([]Refund, error) {
	refunds := []Refund{}
	query := `SELECT ` + refundColumns + ` FROM refunds WHERE student_id = $1 ORDER BY created_at DESC`
	err := r.db.SelectContext(ctx, &refunds, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list refunds: %w", err)
	}
	return refunds, nil
}

func (r *repository) ListWaiting(ctx context.Context, limit, offset int) ([]Refund, error) {
	refunds := []Refund{}
	query := `SELECT ` + refundColumns + `
		FROM refunds
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3`
	err := r.db.SelectContext(ctx, &refunds, query, StatusWaiting, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list waiting refunds: %w", err)
	}
	return refunds, nil
}

// ClaimForReview flips a waiting refund to reviewing so a concurrent
// approval cannot reach the gateway for the same refund. A refund that
// is no longer waiting yields ErrRefundNotFound.
func (r *repository) ClaimForReview(ctx context.Context, id, reviewerID int) (*Refund, error) {
	query := `
		UPDATE refunds
		SET status = $1, reviewed_by = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
		RETURNING ` + refundColumns

	var claimed Refund
	err := r.db.GetContext(ctx, &claimed, query, StatusReviewing, reviewerID, id, StatusWaiting)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRefundNotFound
		}
		return nil, fmt.Errorf("failed to claim refund for review: %w", err)
	}
	return &claimed, nil
}

// ReleaseClaim puts a reviewing refund back to waiting after a gateway
// failure, so the reviewer can retry.
func (r *repository) ReleaseClaim(ctx context.Context, id int) error {
	query := `
		UPDATE refunds
		SET status = $1, reviewed_by = NULL, updated_at = NOW()
		WHERE id = $2 AND status = $3`

	res, err := r.db.ExecContext(ctx, query, StatusWaiting, id, StatusReviewing)
	if err != nil {
		return fmt.Errorf("failed to release refund claim: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRefundNotFound
	}
	return nil
}

func (r *repository) Approve(ctx context.Context, ref *Refund, t *purchase.Transaction, refundReference string, reviewerID int, response string) (*Refund, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Take back exactly what the settlement credited. The balance may
	// go negative when the teacher already withdrew it; that debt is
	// visible in the ledger.
	if t.TeacherProfit.IsPositive() {
		reference := fmt.Sprintf("refund:%d", ref.ID)
		if err := wallet.DebitTx(ctx, tx, t.TeacherID, t.TeacherProfit, wallet.KindRefundReversal, reference); err != nil {
			return nil, fmt.Errorf("failed to debit teacher wallet: %w", err)
		}
	}

	if t.CourseID != nil {
		query := `DELETE FROM owned_courses WHERE student_id = $1 AND course_id = $2`
		if _, err := tx.ExecContext(ctx, query, t.StudentID, *t.CourseID); err != nil {
			return nil, fmt.Errorf("failed to revoke course ownership: %w", err)
		}
	}

	query := `
		UPDATE refunds
		SET status = $1, refund_reference = NULLIF($2, ''), reviewed_by = $3,
			response = NULLIF($4, ''), reviewed_at = NOW(), updated_at = NOW()
		WHERE id = $5 AND status = $6
		RETURNING ` + refundColumns

	var updated Refund
	err = tx.GetContext(ctx, &updated, query, StatusApproved, refundReference, reviewerID, response, ref.ID, StatusReviewing)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRefundNotFound
		}
		return nil, fmt.Errorf("failed to approve refund: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &updated, nil
}

func (r *repository) Reject(ctx context.Context, id, reviewerID int, response string) (*Refund, error) {
	query := `
		UPDATE refunds
		SET status = $1, reviewed_by = $2, response = $3, reviewed_at = NOW(), updated_at = NOW()
		WHERE id = $4 AND status = $5
		RETURNING ` + refundColumns

	var updated Refund
	err := r.db.GetContext(ctx, &updated, query, StatusRejected, reviewerID, response, id, StatusWaiting)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRefundNotFound
		}
		return nil, fmt.Errorf("failed to reject refund: %w", err)
	}
	return &updated, nil
}
