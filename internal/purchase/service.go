package purchase

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"belta/internal/course"
	"belta/internal/email"
	"belta/internal/events"
	"belta/internal/logger"
	"belta/internal/metrics"
	"belta/internal/payment"
	"belta/internal/settings"
	"belta/internal/user"
)

var (
	// ErrCourseNotAvailable is returned when a course exists but cannot
	// be bought (not published).
	ErrCourseNotAvailable = errors.New("course is not available for purchase")
	ErrAlreadyOwned       = errors.New("course already owned")
	ErrPendingExists      = errors.New("a pending purchase for this course already exists")
)

type Service interface {
	InitiatePurchase(ctx context.Context, studentID, courseID int) (*PurchaseResult, error)
	// CompleteFromWebhook settles the purchase behind a paid checkout
	// session. Safe to call more than once for the same session.
	CompleteFromWebhook(ctx context.Context, paymentReference string) (*Transaction, error)
	Cancel(ctx context.Context, paymentReference string) (*Transaction, error)
	Reject(ctx context.Context, paymentReference string) (*Transaction, error)
	ListMyPurchases(ctx context.Context, studentID, limit, offset int) ([]Transaction, error)
	ListOwned(ctx context.Context, studentID int) ([]OwnedCourse, error)
}

type service struct {
	repo       Repository
	courseRepo course.Repository
	userRepo   user.Repository
	settings   settings.Provider
	gateway    payment.CheckoutGateway
	email      *email.Service
	events     *events.Publisher
	successURL string
	cancelURL  string
}

func NewService(repo Repository, courseRepo course.Repository, userRepo user.Repository,
	provider settings.Provider, gateway payment.CheckoutGateway, emailSvc *email.Service,
	publisher *events.Publisher, successURL, cancelURL string) Service {
	return &service{
		repo:       repo,
		courseRepo: courseRepo,
		userRepo:   userRepo,
		settings:   provider,
		gateway:    gateway,
		email:      emailSvc,
		events:     publisher,
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

func (s *service) InitiatePurchase(ctx context.Context, studentID, courseID int) (*PurchaseResult, error) {
	c, err := s.courseRepo.GetByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if c.Status != course.StatusPublished {
		return nil, ErrCourseNotAvailable
	}

	owned, err := s.repo.IsOwned(ctx, studentID, courseID)
	if err != nil {
		return nil, err
	}
	if owned {
		return nil, ErrAlreadyOwned
	}

	pending, err := s.repo.HasPendingForCourse(ctx, studentID, courseID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, ErrPendingExists
	}

	student, err := s.userRepo.FindByID(ctx, studentID)
	if err != nil {
		return nil, err
	}

	percent, err := s.settings.GetTeacherProfitPercent(ctx)
	if err != nil {
		return nil, err
	}
	currency, err := s.settings.GetCurrency(ctx)
	if err != nil {
		return nil, err
	}

	// The profit split is snapshotted now so that later settings changes
	// never move money on an in-flight purchase.
	paidPrice := c.Price
	id := courseID
	t := &Transaction{
		StudentID:            studentID,
		TeacherID:            c.TeacherID,
		CourseID:             &id,
		OriginalPrice:        c.Price,
		FinalPrice:           c.Price,
		PaidPrice:            paidPrice,
		TeacherProfitPercent: percent,
		TeacherProfit:        paidPrice.Mul(percent),
	}

	if paidPrice.IsZero() {
		created, err := s.repo.CreateCompleted(ctx, t)
		if err != nil {
			return nil, err
		}
		metrics.RecordPurchase(StatusCompleted)
		s.notifyCompleted(ctx, created, student, c, currency)
		return &PurchaseResult{Transaction: created}, nil
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, payment.CheckoutParams{
		Amount:        paidPrice,
		Currency:      currency,
		SuccessURL:    s.successURL,
		CancelURL:     s.cancelURL,
		CustomerEmail: student.Email,
		Metadata: map[string]string{
			"course_id":  strconv.Itoa(courseID),
			"student_id": strconv.Itoa(studentID),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	t.PaymentReference = &session.ID
	created, err := s.repo.CreatePending(ctx, t)
	if err != nil {
		return nil, err
	}
	metrics.RecordPurchase(StatusPending)

	return &PurchaseResult{Transaction: created, RedirectURL: session.URL}, nil
}

func (s *service) CompleteFromWebhook(ctx context.Context, paymentReference string) (*Transaction, error) {
	t, err := s.repo.GetByReference(ctx, paymentReference)
	if err != nil {
		return nil, err
	}

	if t.CourseID != nil {
		owned, err := s.repo.IsOwned(ctx, t.StudentID, *t.CourseID)
		if err != nil {
			return nil, err
		}
		if owned {
			// Duplicate notification for a settled purchase.
			return t, nil
		}
	} else if t.Status == StatusCompleted {
		return t, nil
	}

	completed, err := s.repo.Complete(ctx, t)
	if err != nil {
		return nil, err
	}
	metrics.RecordPurchase(StatusCompleted)

	student, err := s.userRepo.FindByID(ctx, completed.StudentID)
	if err != nil {
		logger.Errorf("Failed to load student %d for invoice: %v", completed.StudentID, err)
		return completed, nil
	}
	var c *course.Course
	if completed.CourseID != nil {
		if c, err = s.courseRepo.GetByID(ctx, *completed.CourseID); err != nil {
			logger.Errorf("Failed to load course %d for invoice: %v", *completed.CourseID, err)
			c = nil
		}
	}
	currency, err := s.settings.GetCurrency(ctx)
	if err != nil {
		currency = ""
	}
	s.notifyCompleted(ctx, completed, student, c, currency)

	return completed, nil
}

// notifyCompleted sends the invoice email and the domain event. Both are
// best effort; a settled purchase is never rolled back over them.
func (s *service) notifyCompleted(ctx context.Context, t *Transaction, student *user.User, c *course.Course, currency string) {
	title := ""
	if c != nil {
		title = c.Title
	}
	reference := fmt.Sprintf("transaction:%d", t.ID)
	if err := s.email.SendPurchaseInvoice(ctx, student.Email, student.Name, title, reference, t.PaidPrice, currency); err != nil {
		logger.Errorf("Failed to queue purchase invoice for transaction %d: %v", t.ID, err)
	}
	s.events.Publish(ctx, events.TypePurchaseCompleted, reference, t)
}

func (s *service) Cancel(ctx context.Context, paymentReference string) (*Transaction, error) {
	t, err := s.repo.MarkStatusIfPending(ctx, paymentReference, StatusCanceled)
	if err != nil {
		return nil, err
	}
	if t != nil {
		metrics.RecordPurchase(StatusCanceled)
	}
	return t, nil
}

func (s *service) Reject(ctx context.Context, paymentReference string) (*Transaction, error) {
	t, err := s.repo.MarkStatusIfPending(ctx, paymentReference, StatusRejected)
	if err != nil {
		return nil, err
	}
	if t != nil {
		metrics.RecordPurchase(StatusRejected)
	}
	return t, nil
}

func (s *service) ListMyPurchases(ctx context.Context, studentID, limit, offset int) ([]Transaction, error) {
	return s.repo.ListByStudent(ctx, studentID, limit, offset)
}

func (s *service) ListOwned(ctx context.Context, studentID int) ([]OwnedCourse, error) {
	return s.repo.ListOwned(ctx, studentID)
}
