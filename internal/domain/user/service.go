package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"balancebook/internal/shared/auth"
)

// CacheInvalidator drops cached per-user views after a profile change.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, userID int64) error
}

// Service contains the business logic for user accounts and password auth
type Service struct {
	repo      Repository
	cache     CacheInvalidator
	passwords *auth.Passwords
}

// NewService wires the user service. A nil passwords hashes at bcrypt's
// default cost.
func NewService(repo Repository, cache CacheInvalidator, passwords *auth.Passwords) *Service {
	if passwords == nil {
		passwords = auth.NewPasswords(0)
	}
	return &Service{repo: repo, cache: cache, passwords: passwords}
}

// Register creates a password user. The email must not be in use.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*User, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	existing, err := s.repo.GetByEmail(ctx, params.Email)
	switch {
	case err == nil && existing != nil:
		return nil, ErrEmailTaken
	case err != nil && !errors.Is(err, ErrUserNotFound):
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hash, err := s.passwords.Hash(params.Password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	return s.repo.Create(ctx, CreateUserParams{
		Email:        params.Email,
		Name:         params.Name,
		PasswordHash: hash,
		BaseCurrency: params.BaseCurrency,
	})
}

// Authenticate checks an email/password pair. A hash made at an outdated cost
// is replaced on success.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	u, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if u.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if !s.passwords.Verify(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if s.passwords.NeedsRehash(u.PasswordHash) {
		s.rehash(ctx, u, password)
	}
	return u, nil
}

func (s *Service) rehash(ctx context.Context, u *User, password string) {
	hash, err := s.passwords.Hash(password)
	if err == nil {
		err = s.repo.UpdatePasswordHash(ctx, u.ID, hash)
	}
	if err != nil {
		slog.WarnContext(ctx, "failed to rehash password", slog.Int64("user_id", u.ID), slog.Any("error", err))
		return
	}
	u.PasswordHash = hash
}

func (s *Service) Get(ctx context.Context, userID int64) (*User, error) {
	return s.repo.GetByID(ctx, userID)
}

// Update changes profile fields. A base currency change drops cached dashboards.
func (s *Service) Update(ctx context.Context, userID int64, params UpdateUserParams) (*User, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	u, err := s.repo.Update(ctx, userID, params)
	if err != nil {
		return nil, err
	}

	if params.BaseCurrency != nil && s.cache != nil {
		if err := s.cache.Invalidate(ctx, userID); err != nil {
			slog.WarnContext(ctx, "failed to invalidate dashboard cache", slog.Int64("user_id", userID), slog.Any("error", err))
		}
	}
	return u, nil
}
