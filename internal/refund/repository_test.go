package refund

import (
	"context"
	"regexp"
	"testing"
	"time"

	"belta/internal/purchase"
	"belta/internal/wallet"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func setupRefundMock(t *testing.T) (Repository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := NewRepository(sqlxDB)

	closer := func() { sqlxDB.Close() }
	return repo, mock, closer
}

func refundRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "transaction_id", "student_id", "reason", "status", "response",
		"refund_reference", "reviewed_by", "reviewed_at", "created_at", "updated_at",
	})
}

func TestCreate_DuplicateTransaction(t *testing.T) {
	repo, mock, close := setupRefundMock(t)
	defer close()

	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO refunds")).
		WithArgs(7, 1, "changed my mind about this", StatusWaiting).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := repo.Create(ctx, 7, 1, "changed my mind about this")
	require.ErrorIs(t, err, ErrRefundExists)
}

func TestApprove_ReversesSettlementAtomically(t *testing.T) {
	repo, mock, close := setupRefundMock(t)
	defer close()

	ctx := context.Background()
	courseID := 10
	tr := &purchase.Transaction{
		ID: 7, StudentID: 1, TeacherID: 2, CourseID: &courseID,
		TeacherProfit: decimal.RequireFromString("79.992"),
	}
	claimed := &Refund{ID: 3, TransactionID: 7, StudentID: 1, Status: StatusReviewing}

	mock.ExpectBegin()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE wallets")).
		WithArgs(decimal.RequireFromString("79.992"), 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "balance"}).AddRow(5, "20.008"))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO wallet_entries")).
		WithArgs(5, decimal.RequireFromString("-79.992"), wallet.KindRefundReversal, "refund:3", decimal.RequireFromString("20.008")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM owned_courses WHERE student_id = $1 AND course_id = $2")).
		WithArgs(1, 10).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE refunds")).
		WithArgs(StatusApproved, "re_789", 9, "ok", 3, StatusReviewing).
		WillReturnRows(refundRows().AddRow(3, 7, 1, "reason", StatusApproved, "ok", "re_789", 9, time.Now(), time.Now(), time.Now()))

	mock.ExpectCommit()

	approved, err := repo.Approve(ctx, claimed, tr, "re_789", 9, "ok")
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApprove_RollsBackWhenRefundRowMoved(t *testing.T) {
	repo, mock, close := setupRefundMock(t)
	defer close()

	ctx := context.Background()
	courseID := 10
	tr := &purchase.Transaction{
		ID: 7, StudentID: 1, TeacherID: 2, CourseID: &courseID,
		TeacherProfit: decimal.RequireFromString("79.992"),
	}
	claimed := &Refund{ID: 3, TransactionID: 7, StudentID: 1, Status: StatusReviewing}

	mock.ExpectBegin()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE wallets")).
		WithArgs(decimal.RequireFromString("79.992"), 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "balance"}).AddRow(5, "20.008"))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO wallet_entries")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM owned_courses")).
		WithArgs(1, 10).
		WillReturnResult(sqlmock.NewResult(0, 1))

	// The claim was lost in the meantime.
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE refunds")).
		WithArgs(StatusApproved, "re_789", 9, "", 3, StatusReviewing).
		WillReturnRows(refundRows())

	mock.ExpectRollback()

	_, err := repo.Approve(ctx, claimed, tr, "re_789", 9, "")
	require.ErrorIs(t, err, ErrRefundNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimForReview_OnlyWaiting(t *testing.T) {
	repo, mock, close := setupRefundMock(t)
	defer close()

	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE refunds")).
		WithArgs(StatusReviewing, 9, 3, StatusWaiting).
		WillReturnRows(refundRows())

	_, err := repo.ClaimForReview(ctx, 3, 9)
	require.ErrorIs(t, err, ErrRefundNotFound)
}

func TestReleaseClaim_ReturnsToWaiting(t *testing.T) {
	repo, mock, close := setupRefundMock(t)
	defer close()

	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE refunds")).
		WithArgs(StatusWaiting, 3, StatusReviewing).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.ReleaseClaim(ctx, 3))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReject_OnlyWaiting(t *testing.T) {
	repo, mock, close := setupRefundMock(t)
	defer close()

	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE refunds")).
		WithArgs(StatusRejected, 9, "no", 3, StatusWaiting).
		WillReturnRows(refundRows())

	_, err := repo.Reject(ctx, 3, 9, "no")
	require.ErrorIs(t, err, ErrRefundNotFound)
}
