package purchase

import (
	"context"
	"regexp"
	"testing"
	"time"

	"belta/internal/wallet"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func setupPurchaseMock(t *testing.T) (Repository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := NewRepository(sqlxDB)

	closer := func() { sqlxDB.Close() }
	return repo, mock, closer
}

func transactionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "student_id", "teacher_id", "course_id", "original_price", "final_price",
		"paid_price", "wallet_amount_used", "teacher_profit_percent", "teacher_profit",
		"payment_reference", "status", "created_at", "updated_at",
	})
}

func pendingRow(id int, ref string) *sqlmock.Rows {
	return transactionRows().AddRow(
		id, 1, 2, 10, "99.99", "99.99", "99.99", "0", "0.8", "79.992",
		ref, StatusPending, time.Now(), time.Now())
}

func TestCreatePending(t *testing.T) {
	repo, mock, close := setupPurchaseMock(t)
	defer close()

	ctx := context.Background()
	ref := "cs_test_123"
	courseID := 10

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO transactions")).
		WithArgs(1, 2, &courseID,
			decimal.RequireFromString("99.99"), decimal.RequireFromString("99.99"),
			decimal.RequireFromString("99.99"), decimal.Decimal{},
			decimal.RequireFromString("0.8"), decimal.RequireFromString("79.992"),
			&ref, StatusPending).
		WillReturnRows(pendingRow(7, ref))

	created, err := repo.CreatePending(ctx, &Transaction{
		StudentID: 1, TeacherID: 2, CourseID: &courseID,
		OriginalPrice:        decimal.RequireFromString("99.99"),
		FinalPrice:           decimal.RequireFromString("99.99"),
		PaidPrice:            decimal.RequireFromString("99.99"),
		TeacherProfitPercent: decimal.RequireFromString("0.8"),
		TeacherProfit:        decimal.RequireFromString("79.992"),
		PaymentReference:     &ref,
	})
	require.NoError(t, err)
	require.Equal(t, 7, created.ID)
	require.Equal(t, StatusPending, created.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestComplete_CreditsWalletAndGrantsOwnership(t *testing.T) {
	repo, mock, close := setupPurchaseMock(t)
	defer close()

	ctx := context.Background()
	ref := "cs_test_123"
	courseID := 10

	mock.ExpectBegin()

	completedRow := transactionRows().AddRow(
		7, 1, 2, 10, "99.99", "99.99", "99.99", "0", "0.8", "79.992",
		ref, StatusCompleted, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE transactions")).
		WithArgs(StatusCompleted, 7, StatusPending).
		WillReturnRows(completedRow)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO wallets (user_id)")).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "balance", "currency", "created_at", "updated_at"}).
			AddRow(5, 2, "0", "USD", time.Now(), time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE wallets SET balance = balance + $1")).
		WithArgs(decimal.RequireFromString("79.992"), 5).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("79.992"))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO wallet_entries")).
		WithArgs(5, decimal.RequireFromString("79.992"), wallet.KindCourseSale, "transaction:7", decimal.RequireFromString("79.992")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO owned_courses (student_id, course_id, transaction_id) VALUES ($1, $2, $3)")).
		WithArgs(1, 10, 7).
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectCommit()

	completed, err := repo.Complete(ctx, &Transaction{ID: 7, StudentID: 1, TeacherID: 2, CourseID: &courseID})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, completed.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestComplete_ZeroProfitSkipsWallet(t *testing.T) {
	repo, mock, close := setupPurchaseMock(t)
	defer close()

	ctx := context.Background()

	mock.ExpectBegin()

	completedRow := transactionRows().AddRow(
		8, 1, 2, 10, "0", "0", "0", "0", "0.8", "0",
		nil, StatusCompleted, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE transactions")).
		WithArgs(StatusCompleted, 8, StatusPending).
		WillReturnRows(completedRow)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO owned_courses")).
		WithArgs(1, 10, 8).
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectCommit()

	courseID := 10
	_, err := repo.Complete(ctx, &Transaction{ID: 8, StudentID: 1, TeacherID: 2, CourseID: &courseID})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestComplete_RollsBackWhenOwnershipInsertFails(t *testing.T) {
	repo, mock, close := setupPurchaseMock(t)
	defer close()

	ctx := context.Background()

	mock.ExpectBegin()

	completedRow := transactionRows().AddRow(
		7, 1, 2, 10, "99.99", "99.99", "99.99", "0", "0.8", "79.992",
		"cs_test_123", StatusCompleted, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE transactions")).
		WithArgs(StatusCompleted, 7, StatusPending).
		WillReturnRows(completedRow)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO wallets (user_id)")).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "balance", "currency", "created_at", "updated_at"}).
			AddRow(5, 2, "0", "USD", time.Now(), time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE wallets SET balance = balance + $1")).
		WithArgs(decimal.RequireFromString("79.992"), 5).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("79.992"))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO wallet_entries")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO owned_courses")).
		WillReturnError(context.DeadlineExceeded)

	mock.ExpectRollback()

	courseID := 10
	_, err := repo.Complete(ctx, &Transaction{ID: 7, StudentID: 1, TeacherID: 2, CourseID: &courseID})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkStatusIfPending_AlreadyResolved(t *testing.T) {
	repo, mock, close := setupPurchaseMock(t)
	defer close()

	ctx := context.Background()
	ref := "cs_test_123"

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE transactions")).
		WithArgs(StatusCanceled, ref, StatusPending).
		WillReturnRows(transactionRows())

	settled := transactionRows().AddRow(
		7, 1, 2, 10, "99.99", "99.99", "99.99", "0", "0.8", "79.992",
		ref, StatusCompleted, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM transactions WHERE payment_reference = $1")).
		WithArgs(ref).
		WillReturnRows(settled)

	got, err := repo.MarkStatusIfPending(ctx, ref, StatusCanceled)
	require.NoError(t, err)
	require.Nil(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkStatusIfPending_UnknownReference(t *testing.T) {
	repo, mock, close := setupPurchaseMock(t)
	defer close()

	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE transactions")).
		WithArgs(StatusCanceled, "cs_unknown", StatusPending).
		WillReturnRows(transactionRows())

	mock.ExpectQuery(regexp.QuoteMeta("FROM transactions WHERE payment_reference = $1")).
		WithArgs("cs_unknown").
		WillReturnRows(transactionRows())

	_, err := repo.MarkStatusIfPending(ctx, "cs_unknown", StatusCanceled)
	require.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestIsOwned(t *testing.T) {
	repo, mock, close := setupPurchaseMock(t)
	defer close()

	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM owned_courses WHERE student_id = $1 AND course_id = $2)")).
		WithArgs(1, 10).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	owned, err := repo.IsOwned(ctx, 1, 10)
	require.NoError(t, err)
	require.True(t, owned)
}
