package course

import (
	"context"

	"github.com/shopspring/decimal"
)

type Repository interface {
	Create(ctx context.Context, teacherID int, title, description string, price decimal.Decimal) (*Course, error)
	GetByID(ctx context.Context, id int) (*Course, error)
	ListPublished(ctx context.Context, limit, offset int) ([]Course, error)
	ListByTeacher(ctx context.Context, teacherID int) ([]Course, error)
	SetStatus(ctx context.Context, id int, status string) error
}
