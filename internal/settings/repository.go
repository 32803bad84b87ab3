package settings

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

var ErrInvalidProfitPercent = errors.New("teacher profit percent must be between 0 and 1")

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Get(ctx context.Context) (*Settings, error) {
	var s Settings
	err := r.db.GetContext(ctx, &s, `
		SELECT id, currency, teacher_profit_percent, updated_at
		FROM platform_settings
		WHERE id = 1
	`)
	if err != nil {
		return nil, err
	}

	return &s, nil
}

func (r *Repository) GetCurrency(ctx context.Context) (string, error) {
	s, err := r.Get(ctx)
	if err != nil {
		return "", err
	}
	return s.Currency, nil
}

func (r *Repository) GetTeacherProfitPercent(ctx context.Context) (decimal.Decimal, error) {
	s, err := r.Get(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return s.TeacherProfitPercent, nil
}

func (r *Repository) Update(ctx context.Context, currency string, profitPercent decimal.Decimal) (*Settings, error) {
	if profitPercent.LessThan(decimal.Zero) || profitPercent.GreaterThan(decimal.NewFromInt(1)) {
		return nil, ErrInvalidProfitPercent
	}

	var s Settings
	err := r.db.GetContext(ctx, &s, `
		UPDATE platform_settings
		SET currency = $1, teacher_profit_percent = $2, updated_at = NOW()
		WHERE id = 1
		RETURNING id, currency, teacher_profit_percent, updated_at
	`, currency, profitPercent)
	if err != nil {
		return nil, err
	}

	return &s, nil
}
