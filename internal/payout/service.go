package payout

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"belta/internal/auth"
	"belta/internal/email"
	"belta/internal/events"
	"belta/internal/logger"
	"belta/internal/metrics"
	"belta/internal/payment"
	"belta/internal/settings"
	"belta/internal/user"
	"belta/internal/wallet"
)

var ErrNotOwnWithdraw = errors.New("withdraw belongs to another teacher")

type Service interface {
	// CreatePayout debits the wallet, then submits the payout to the
	// provider. A provider failure credits the money back immediately.
	CreatePayout(ctx context.Context, teacherID int, amount decimal.Decimal) (*Withdraw, error)
	// UpdateFromGateway applies an asynchronous provider status change,
	// identified by the provider-side reference. Repeated and
	// out-of-order notifications are no-ops: a failed withdraw stays
	// failed, and a completed one can only still move to failed when the
	// provider returns the funds.
	UpdateFromGateway(ctx context.Context, reference, status, note string) (*Withdraw, error)
	// SyncFromGateway polls the payout provider for the current state of
	// an email withdraw and applies it under the same transition rules
	// as webhook updates. A fallback for missed callbacks.
	SyncFromGateway(ctx context.Context, teacherID, withdrawID int) (*Withdraw, error)
	GetWithdraw(ctx context.Context, teacherID, withdrawID int) (*Withdraw, error)
	ListMyWithdraws(ctx context.Context, teacherID, limit, offset int) ([]Withdraw, error)
}

type service struct {
	repo       Repository
	walletRepo wallet.Repository
	userRepo   user.Repository
	settings   settings.Provider
	checkout   payment.CheckoutGateway
	payouts    payment.PayoutGateway
	email      *email.Service
	events     *events.Publisher
}

func NewService(repo Repository, walletRepo wallet.Repository, userRepo user.Repository,
	provider settings.Provider, checkout payment.CheckoutGateway, payouts payment.PayoutGateway,
	emailSvc *email.Service, publisher *events.Publisher) Service {
	return &service{
		repo:       repo,
		walletRepo: walletRepo,
		userRepo:   userRepo,
		settings:   provider,
		checkout:   checkout,
		payouts:    payouts,
		email:      emailSvc,
		events:     publisher,
	}
}

func (s *service) CreatePayout(ctx context.Context, teacherID int, amount decimal.Decimal) (*Withdraw, error) {
	if !amount.IsPositive() {
		return nil, wallet.ErrNonPositiveAmount
	}

	u, err := s.userRepo.FindByID(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	if u.Role != auth.RoleTeacher {
		return nil, wallet.ErrNotTeacher
	}

	// Cheap rejection before anything is written. The conditional debit
	// inside CreateWithdraw remains the authoritative check.
	w, err := s.walletRepo.GetByUserID(ctx, teacherID)
	if err != nil {
		if errors.Is(err, wallet.ErrWalletNotFound) {
			return nil, wallet.ErrInsufficientBalance
		}
		return nil, err
	}
	if w.Balance.LessThan(amount) {
		return nil, wallet.ErrInsufficientBalance
	}

	currency, err := s.settings.GetCurrency(ctx)
	if err != nil {
		return nil, err
	}

	method := MethodTransfer
	if u.PayoutEmail != nil && *u.PayoutEmail != "" {
		method = MethodEmail
	}

	wd, err := s.repo.CreateWithdraw(ctx, teacherID, amount, currency, method)
	if err != nil {
		return nil, err
	}
	metrics.RecordPayout(StatusProcessing)
	s.events.Publish(ctx, events.TypePayoutRequested, fmt.Sprintf("withdraw:%d", wd.ID), wd)

	reference, err := s.submit(ctx, u, wd)
	if err != nil {
		failed, ferr := s.repo.MarkFailedAndRefund(ctx, wd.ID, err.Error())
		if ferr != nil {
			// The debit stands with no payout behind it; an operator
			// has to reconcile from the ledger.
			logger.Errorf("Withdraw %d: payout submission and refund both failed: %v (refund: %v)", wd.ID, err, ferr)
			return nil, ferr
		}
		metrics.RecordPayout(StatusFailed)
		s.events.Publish(ctx, events.TypePayoutFailed, fmt.Sprintf("withdraw:%d", wd.ID), failed)
		s.notify(ctx, u, failed)
		return nil, fmt.Errorf("failed to submit payout: %w", err)
	}

	if err := s.repo.SetReference(ctx, wd.ID, reference); err != nil {
		logger.Errorf("Withdraw %d: failed to store provider reference %s: %v", wd.ID, reference, err)
	} else {
		wd.Reference = &reference
	}

	s.notify(ctx, u, wd)
	return wd, nil
}

// submit hands the withdraw to the matching provider and returns the
// provider-side reference.
func (s *service) submit(ctx context.Context, u *user.User, wd *Withdraw) (string, error) {
	batchID := fmt.Sprintf("withdraw:%d", wd.ID)

	if wd.Method == MethodEmail {
		batch, err := s.payouts.CreatePayout(ctx, *u.PayoutEmail, wd.Amount, wd.Currency, batchID, "Course earnings payout")
		if err != nil {
			return "", err
		}
		return batch.ItemID, nil
	}

	accountID := ""
	if u.PayeeAccountID != nil {
		accountID = *u.PayeeAccountID
	}
	if accountID == "" {
		account, err := s.checkout.CreateConnectAccount(ctx, u.Email)
		if err != nil {
			return "", err
		}
		accountID = account.ID
		if err := s.userRepo.SetPayeeAccountID(ctx, u.ID, accountID); err != nil {
			return "", err
		}
	}

	transfer, err := s.checkout.CreateTransfer(ctx, wd.Amount, wd.Currency, accountID, map[string]string{
		"withdraw_id": batchID,
	})
	if err != nil {
		return "", err
	}
	return transfer.ID, nil
}

func (s *service) UpdateFromGateway(ctx context.Context, reference, status, note string) (*Withdraw, error) {
	wd, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	return s.applyStatus(ctx, wd, status, note)
}

// applyStatus moves a withdraw to the provider-reported status. A
// failed withdraw was already credited back and never transitions
// again; a completed one only still accepts failed, for payouts the
// provider returns after settling.
func (s *service) applyStatus(ctx context.Context, wd *Withdraw, status, note string) (*Withdraw, error) {
	if wd.Status == status {
		return wd, nil
	}
	if wd.Status == StatusFailed || (wd.Status == StatusCompleted && status != StatusFailed) {
		logger.Infof("Withdraw %d: ignoring %s notification, already %s", wd.ID, status, wd.Status)
		return wd, nil
	}

	var updated *Withdraw
	var err error
	if status == StatusFailed {
		updated, err = s.repo.MarkFailedAndRefund(ctx, wd.ID, note)
		if err != nil {
			return nil, err
		}
		s.events.Publish(ctx, events.TypePayoutFailed, fmt.Sprintf("withdraw:%d", wd.ID), updated)
	} else {
		updated, err = s.repo.UpdateStatus(ctx, wd.ID, status, note)
		if err != nil {
			return nil, err
		}
		if updated == nil {
			// Lost a race against a terminal transition.
			return s.repo.GetByID(ctx, wd.ID)
		}
		if status == StatusCompleted {
			s.events.Publish(ctx, events.TypePayoutSettled, fmt.Sprintf("withdraw:%d", wd.ID), updated)
		}
	}
	metrics.RecordPayout(status)

	if u, err := s.userRepo.FindByID(ctx, updated.TeacherID); err == nil {
		s.notify(ctx, u, updated)
	}
	return updated, nil
}

// withdrawStatusByPayoutItem maps the provider's payout-item states to
// withdraw statuses, matching the webhook event mapping.
var withdrawStatusByPayoutItem = map[string]string{
	"SUCCESS":   StatusCompleted,
	"UNCLAIMED": StatusUnclaimed,
	"NEW":       StatusProcessing,
	"PENDING":   StatusProcessing,
	"ONHOLD":    StatusProcessing,
	"FAILED":    StatusFailed,
	"RETURNED":  StatusFailed,
	"BLOCKED":   StatusFailed,
	"REFUNDED":  StatusFailed,
	"CANCELED":  StatusFailed,
	"DENIED":    StatusFailed,
}

func (s *service) SyncFromGateway(ctx context.Context, teacherID, withdrawID int) (*Withdraw, error) {
	wd, err := s.repo.GetByID(ctx, withdrawID)
	if err != nil {
		return nil, err
	}
	if wd.TeacherID != teacherID {
		return nil, ErrNotOwnWithdraw
	}
	// Only email payouts have a pollable batch; transfers rely on
	// webhooks alone.
	if wd.Method != MethodEmail || wd.Reference == nil {
		return wd, nil
	}

	batch, err := s.payouts.GetPayoutStatus(ctx, fmt.Sprintf("withdraw:%d", wd.ID))
	if err != nil {
		return nil, fmt.Errorf("failed to poll payout status: %w", err)
	}

	for _, item := range batch.Items {
		if item.ItemID != *wd.Reference {
			continue
		}
		status, ok := withdrawStatusByPayoutItem[item.Status]
		if !ok {
			logger.Infof("Withdraw %d: unknown payout item state %s", wd.ID, item.Status)
			return wd, nil
		}
		note := item.Error
		if note == "" {
			note = "Provider reports " + item.Status
		}
		return s.applyStatus(ctx, wd, status, note)
	}
	return wd, nil
}

// notify emails the teacher about the withdraw state, best effort.
func (s *service) notify(ctx context.Context, u *user.User, wd *Withdraw) {
	if err := s.email.SendPayoutUpdate(ctx, u.Email, u.Name, wd.Amount, wd.Currency, wd.Status); err != nil {
		logger.Errorf("Failed to queue payout update for withdraw %d: %v", wd.ID, err)
	}
}

func (s *service) GetWithdraw(ctx context.Context, teacherID, withdrawID int) (*Withdraw, error) {
	wd, err := s.repo.GetByID(ctx, withdrawID)
	if err != nil {
		return nil, err
	}
	if wd.TeacherID != teacherID {
		return nil, ErrNotOwnWithdraw
	}

	histories, err := s.repo.ListHistory(ctx, withdrawID)
	if err != nil {
		return nil, err
	}
	wd.Histories = histories
	return wd, nil
}

func (s *service) ListMyWithdraws(ctx context.Context, teacherID, limit, offset int) ([]Withdraw, error) {
	return s.repo.ListByTeacher(ctx, teacherID, limit, offset)
}
