package course

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

type Course struct {
	ID          int             `db:"id" json:"id"`
	TeacherID   int             `db:"teacher_id" json:"teacher_id"`
	Title       string          `db:"title" json:"title"`
	Description string          `db:"description" json:"description"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Status      string          `db:"status" json:"status"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

type CreateCourseRequest struct {
	Title       string          `json:"title" binding:"required,min=3"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price" binding:"required"`
}
