package wallet

import (
	"context"
	"errors"

	"belta/internal/auth"
	"belta/internal/user"
)

// ErrNotTeacher is returned when a non-teacher asks for a wallet.
// Only teachers accrue balances.
var ErrNotTeacher = errors.New("only teachers have wallets")

type Service interface {
	GetOrCreate(ctx context.Context, userID int) (*Wallet, error)
	GetEntries(ctx context.Context, userID int, limit, offset int) ([]Entry, error)
}

type service struct {
	repo     Repository
	userRepo user.Repository
}

func NewService(repo Repository, userRepo user.Repository) Service {
	return &service{
		repo:     repo,
		userRepo: userRepo,
	}
}

func (s *service) GetOrCreate(ctx context.Context, userID int) (*Wallet, error) {
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if u.Role != auth.RoleTeacher {
		return nil, ErrNotTeacher
	}

	return s.repo.GetOrCreateWallet(ctx, userID)
}

func (s *service) GetEntries(ctx context.Context, userID int, limit, offset int) ([]Entry, error) {
	return s.repo.GetEntries(ctx, userID, limit, offset)
}
