package refund

import (
	"context"
	"errors"
	"fmt"

	"belta/internal/course"
	"belta/internal/email"
	"belta/internal/events"
	"belta/internal/logger"
	"belta/internal/metrics"
	"belta/internal/payment"
	"belta/internal/purchase"
	"belta/internal/settings"
	"belta/internal/user"
)

var (
	// ErrNotRefundable covers both "not your transaction" and "not a
	// completed purchase"; callers get no hint which, on purpose.
	ErrNotRefundable    = errors.New("transaction is not refundable")
	ErrAlreadyReviewed  = errors.New("refund has already been reviewed")
	ErrResponseRequired = errors.New("a response is required when rejecting a refund")
)

type Service interface {
	Request(ctx context.Context, studentID, transactionID int, reason string) (*Refund, error)
	// Review approves or rejects a waiting refund. Approval first claims
	// the refund (waiting -> reviewing), then calls the payment gateway,
	// then reverses the settlement; a gateway failure releases the claim
	// so the reviewer can retry.
	Review(ctx context.Context, reviewerID, refundID int, approve bool, response string) (*Refund, error)
	ListMyRefunds(ctx context.Context, studentID int) ([]Refund, error)
	ListWaiting(ctx context.Context, limit, offset int) ([]Refund, error)
}

type service struct {
	repo         Repository
	purchaseRepo purchase.Repository
	courseRepo   course.Repository
	userRepo     user.Repository
	settings     settings.Provider
	gateway      payment.CheckoutGateway
	email        *email.Service
	events       *events.Publisher
}

func NewService(repo Repository, purchaseRepo purchase.Repository, courseRepo course.Repository,
	userRepo user.Repository, provider settings.Provider, gateway payment.CheckoutGateway,
	emailSvc *email.Service, publisher *events.Publisher) Service {
	return &service{
		repo:         repo,
		purchaseRepo: purchaseRepo,
		courseRepo:   courseRepo,
		userRepo:     userRepo,
		settings:     provider,
		gateway:      gateway,
		email:        emailSvc,
		events:       publisher,
	}
}

func (s *service) Request(ctx context.Context, studentID, transactionID int, reason string) (*Refund, error) {
	t, err := s.purchaseRepo.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if t.StudentID != studentID || t.Status != purchase.StatusCompleted {
		return nil, ErrNotRefundable
	}

	return s.repo.Create(ctx, transactionID, studentID, reason)
}

func (s *service) Review(ctx context.Context, reviewerID, refundID int, approve bool, response string) (*Refund, error) {
	ref, err := s.repo.GetByID(ctx, refundID)
	if err != nil {
		return nil, err
	}
	if ref.Status != StatusWaiting {
		return nil, ErrAlreadyReviewed
	}

	if !approve {
		if response == "" {
			return nil, ErrResponseRequired
		}
		rejected, err := s.repo.Reject(ctx, refundID, reviewerID, response)
		if err != nil {
			return nil, err
		}
		metrics.RecordRefund(StatusRejected)
		return rejected, nil
	}

	t, err := s.purchaseRepo.GetByID(ctx, ref.TransactionID)
	if err != nil {
		return nil, err
	}

	// Claim the refund before touching the gateway so two concurrent
	// approvals cannot both issue an external refund.
	claimed, err := s.repo.ClaimForReview(ctx, refundID, reviewerID)
	if err != nil {
		if errors.Is(err, ErrRefundNotFound) {
			return nil, ErrAlreadyReviewed
		}
		return nil, err
	}

	refundReference := ""
	if t.PaidPrice.IsPositive() {
		paymentRef, err := s.resolvePaymentReference(ctx, t)
		if err != nil {
			s.releaseClaim(ctx, refundID)
			return nil, err
		}
		gatewayRefund, err := s.gateway.CreateRefund(ctx, paymentRef, t.PaidPrice)
		if err != nil {
			s.releaseClaim(ctx, refundID)
			return nil, fmt.Errorf("failed to refund payment: %w", err)
		}
		refundReference = gatewayRefund.ID
	}

	approved, err := s.repo.Approve(ctx, claimed, t, refundReference, reviewerID, response)
	if err != nil {
		// Money has already left the platform; this needs an operator.
		logger.Errorf("Refund %d: gateway refund %s succeeded but local reversal failed: %v", refundID, refundReference, err)
		return nil, err
	}
	metrics.RecordRefund(StatusApproved)

	s.notifyApproved(ctx, approved, t)
	return approved, nil
}

// releaseClaim puts the refund back to waiting so the reviewer can
// retry. A failure here leaves it stuck in reviewing for an operator.
func (s *service) releaseClaim(ctx context.Context, refundID int) {
	if err := s.repo.ReleaseClaim(ctx, refundID); err != nil {
		logger.Errorf("Refund %d: failed to release review claim: %v", refundID, err)
	}
}

// notifyApproved sends the refund invoice and the domain event, both
// best effort.
func (s *service) notifyApproved(ctx context.Context, ref *Refund, t *purchase.Transaction) {
	reference := fmt.Sprintf("refund:%d", ref.ID)
	s.events.Publish(ctx, events.TypeRefundApproved, reference, ref)

	student, err := s.userRepo.FindByID(ctx, ref.StudentID)
	if err != nil {
		logger.Errorf("Failed to load student %d for refund invoice: %v", ref.StudentID, err)
		return
	}
	title := ""
	if t.CourseID != nil {
		if c, err := s.courseRepo.GetByID(ctx, *t.CourseID); err == nil {
			title = c.Title
		}
	}
	currency, err := s.settings.GetCurrency(ctx)
	if err != nil {
		currency = ""
	}
	if err := s.email.SendRefundInvoice(ctx, student.Email, student.Name, title, reference, t.PaidPrice, currency); err != nil {
		logger.Errorf("Failed to queue refund invoice for refund %d: %v", ref.ID, err)
	}
}

// resolvePaymentReference turns the stored checkout-session id into the
// charge reference the gateway refunds against.
func (s *service) resolvePaymentReference(ctx context.Context, t *purchase.Transaction) (string, error) {
	if t.PaymentReference == nil {
		return "", ErrNotRefundable
	}
	details, err := s.gateway.RetrieveCheckoutSession(ctx, *t.PaymentReference)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve checkout session: %w", err)
	}
	if details.PaymentReference == "" {
		return "", ErrNotRefundable
	}
	return details.PaymentReference, nil
}

func (s *service) ListMyRefunds(ctx context.Context, studentID int) ([]Refund, error) {
	return s.repo.ListByStudent(ctx, studentID)
}

func (s *service) ListWaiting(ctx context.Context, limit, offset int) ([]Refund, error) {
	return s.repo.ListWaiting(ctx, limit, offset)
}
