package settings

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func setupSettingsMock(t *testing.T) (*Repository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := NewRepository(sqlxDB)

	closer := func() { sqlxDB.Close() }
	return repo, mock, closer
}

func TestGetTeacherProfitPercent(t *testing.T) {
	repo, mock, close := setupSettingsMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, currency, teacher_profit_percent, updated_at FROM platform_settings WHERE id = 1")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "currency", "teacher_profit_percent", "updated_at"}).
			AddRow(1, "USD", "0.8", time.Now()))

	percent, err := repo.GetTeacherProfitPercent(context.Background())
	require.NoError(t, err)
	require.True(t, percent.Equal(decimal.RequireFromString("0.8")))
}

func TestUpdate_RejectsPercentOverOne(t *testing.T) {
	repo, _, close := setupSettingsMock(t)
	defer close()

	_, err := repo.Update(context.Background(), "USD", decimal.RequireFromString("1.5"))
	require.ErrorIs(t, err, ErrInvalidProfitPercent)
}
