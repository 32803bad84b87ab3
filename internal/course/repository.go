package course

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

var ErrCourseNotFound = errors.New("course not found")

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, teacherID int, title, description string, price decimal.Decimal) (*Course, error) {
	query := `
		INSERT INTO courses (teacher_id, title, description, price, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, teacher_id, title, description, price, status, created_at, updated_at
	`

	var c Course
	err := r.db.GetContext(ctx, &c, query, teacherID, title, description, price, StatusDraft)
	if err != nil {
		return nil, err
	}

	return &c, nil
}

func (r *repository) GetByID(ctx context.Context, id int) (*Course, error) {
	query := `
		SELECT id, teacher_id, title, description, price, status, created_at, updated_at
		FROM courses
		WHERE id = $1
	`

	var c Course
	err := r.db.GetContext(ctx, &c, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}

	return &c, nil
}

func (r *repository) ListPublished(ctx context.Context, limit, offset int) ([]Course, error) {
	if limit <= 0 {
		limit = 20
	}

	var courses []Course
	err := r.db.SelectContext(ctx, &courses, `
		SELECT id, teacher_id, title, description, price, status, created_at, updated_at
		FROM courses
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, StatusPublished, limit, offset)
	if err != nil {
		return nil, err
	}

	return courses, nil
}

func (r *repository) ListByTeacher(ctx context.Context, teacherID int) ([]Course, error) {
	var courses []Course
	err := r.db.SelectContext(ctx, &courses, `
		SELECT id, teacher_id, title, description, price, status, created_at, updated_at
		FROM courses
		WHERE teacher_id = $1
		ORDER BY created_at DESC
	`, teacherID)
	if err != nil {
		return nil, err
	}

	return courses, nil
}

func (r *repository) SetStatus(ctx context.Context, id int, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE courses SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrCourseNotFound
	}

	return nil
}
