package course

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrNotCourseOwner = errors.New("user does not own this course")
	ErrNegativePrice  = errors.New("course price cannot be negative")
)

type Service interface {
	Create(ctx context.Context, teacherID int, req CreateCourseRequest) (*Course, error)
	Get(ctx context.Context, id int) (*Course, error)
	ListPublished(ctx context.Context, limit, offset int) ([]Course, error)
	ListByTeacher(ctx context.Context, teacherID int) ([]Course, error)
	Publish(ctx context.Context, teacherID, courseID int) error
	Archive(ctx context.Context, teacherID, courseID int) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) Create(ctx context.Context, teacherID int, req CreateCourseRequest) (*Course, error) {
	if req.Price.LessThan(decimal.Zero) {
		return nil, ErrNegativePrice
	}
	return s.repo.Create(ctx, teacherID, req.Title, req.Description, req.Price)
}

func (s *service) Get(ctx context.Context, id int) (*Course, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) ListPublished(ctx context.Context, limit, offset int) ([]Course, error) {
	return s.repo.ListPublished(ctx, limit, offset)
}

func (s *service) ListByTeacher(ctx context.Context, teacherID int) ([]Course, error) {
	return s.repo.ListByTeacher(ctx, teacherID)
}

func (s *service) Publish(ctx context.Context, teacherID, courseID int) error {
	return s.setStatusAsOwner(ctx, teacherID, courseID, StatusPublished)
}

func (s *service) Archive(ctx context.Context, teacherID, courseID int) error {
	return s.setStatusAsOwner(ctx, teacherID, courseID, StatusArchived)
}

func (s *service) setStatusAsOwner(ctx context.Context, teacherID, courseID int, status string) error {
	c, err := s.repo.GetByID(ctx, courseID)
	if err != nil {
		return err
	}

	if c.TeacherID != teacherID {
		return ErrNotCourseOwner
	}

	return s.repo.SetStatus(ctx, courseID, status)
}
