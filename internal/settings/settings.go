package settings

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Settings is the singleton platform configuration row. The profit
// percent is a fraction, e.g. 0.8 means the teacher keeps 80%.
type Settings struct {
	ID                   int             `db:"id" json:"id"`
	Currency             string          `db:"currency" json:"currency"`
	TeacherProfitPercent decimal.Decimal `db:"teacher_profit_percent" json:"teacher_profit_percent"`
	UpdatedAt            time.Time       `db:"updated_at" json:"updated_at"`
}

// Provider is what the billing engines consume. They must not read
// platform configuration from anywhere else.
type Provider interface {
	GetCurrency(ctx context.Context) (string, error)
	GetTeacherProfitPercent(ctx context.Context) (decimal.Decimal, error)
}

type UpdateRequest struct {
	Currency             string          `json:"currency" binding:"required,len=3"`
	TeacherProfitPercent decimal.Decimal `json:"teacher_profit_percent" binding:"required"`
}
