package user

import (
	"context"
	"errors"

	"github.com/abhisamaya/therapy-bro/internal/auth"
	"github.com/abhisamaya/therapy-bro/internal/logger"
	"github.com/abhisamaya/therapy-bro/internal/metrics"
	"github.com/abhisamaya/therapy-bro/internal/wallet"
)

var (
	ErrUserExists         = errors.New("login_id already taken")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type Service interface {
	Register(ctx context.Context, loginID, displayName, password string) (*User, string, error)
	Login(ctx context.Context, loginID, password string) (*User, string, error)
	Get(ctx context.Context, id int) (*User, error)
}

type service struct {
	users     Repository
	wallets   wallet.Repository
	jwtSecret string
}

func NewService(users Repository, wallets wallet.Repository, jwtSecret string) Service {
	return &service{users: users, wallets: wallets, jwtSecret: jwtSecret}
}

// Register creates the account and bootstraps its wallet with the signup
// bonus. Wallet creation failure is not fatal for signup: a later balance
// read recreates it on demand.
func (s *service) Register(ctx context.Context, loginID, displayName, password string) (*User, string, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, "", err
	}

	u, err := s.users.Create(ctx, loginID, displayName, hash)
	if err != nil {
		return nil, "", err
	}

	if _, err := s.wallets.CreateWithBonus(ctx, u.ID); err != nil {
		logger.WithError(err).Warn("wallet bootstrap failed at signup", "user_id", u.ID)
	} else {
		metrics.RecordWalletCreated()
	}

	token, err := auth.GenerateToken(u.ID, u.LoginID, s.jwtSecret)
	if err != nil {
		return nil, "", err
	}

	logger.Info("user registered", "user_id", u.ID, "login_id", u.LoginID)
	return u, token, nil
}

func (s *service) Login(ctx context.Context, loginID, password string) (*User, string, error) {
	u, err := s.users.FindByLoginID(ctx, loginID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(u.ID, u.LoginID, s.jwtSecret)
	if err != nil {
		return nil, "", err
	}

	return u, token, nil
}

func (s *service) Get(ctx context.Context, id int) (*User, error) {
	return s.users.FindByID(ctx, id)
}
