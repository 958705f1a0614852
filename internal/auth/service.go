package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"land-registry/registry-backend/internal/errs"
)

type Service struct {
	repo   Repository
	tokens *TokenIssuer
	logger *zap.Logger
}

func NewService(repo Repository, tokens *TokenIssuer, logger *zap.Logger) *Service {
	return &Service{repo: repo, tokens: tokens, logger: logger}
}

// Register creates a pending account.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	const op = "auth.Register"

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)
	if req.FullName == "" || req.Email == "" || req.Password == "" {
		return nil, errs.E(errs.KindValidation, op, "full name, email and password are required")
	}
	role, ok := ParseRole(req.Role)
	if !ok {
		return nil, errs.E(errs.KindValidation, op, "unknown role %q", req.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &User{
		FullName:     req.FullName,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         role,
		Status:       UserPending,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, errs.E(errs.KindConflict, op, "email %s already registered", req.Email)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User registered", zap.String("email", user.Email), zap.String("role", string(role)))
	return user, nil
}

// Login checks credentials and issues a bearer token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	const op = "auth.Login"

	user, err := s.repo.GetByEmail(ctx, strings.TrimSpace(strings.ToLower(req.Email)))
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return nil, errs.E(errs.KindUnauthorized, op, "invalid email or password")
	}
	if user.Status == UserSuspended {
		return nil, errs.E(errs.KindForbidden, op, "account is suspended")
	}

	token, expires, err := s.tokens.Issue(Actor{Role: user.Role, Email: user.Email})
	if err != nil {
		return nil, err
	}
	return &LoginResponse{Token: token, ExpiresAt: expires, User: user}, nil
}

// Profile returns the account for an email.
func (s *Service) Profile(ctx context.Context, email string) (*User, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, errs.E(errs.KindNotFound, "auth.Profile", "user %s not found", email)
	}
	return user, nil
}

func (s *Service) UpdateBio(ctx context.Context, email, bio string) (*User, error) {
	n, err := s.repo.UpdateBio(ctx, email, bio)
	if err != nil {
		return nil, fmt.Errorf("failed to update bio: %w", err)
	}
	if n == 0 {
		return nil, errs.E(errs.KindNotFound, "auth.UpdateBio", "user %s not found", email)
	}
	return s.Profile(ctx, email)
}

func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// UpdateStatus sets the verification status of an account.
func (s *Service) UpdateStatus(ctx context.Context, id uint, status UserStatus) (*User, error) {
	const op = "auth.UpdateStatus"

	if !status.Valid() {
		return nil, errs.E(errs.KindValidation, op, "invalid status %q", status)
	}
	n, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, fmt.Errorf("failed to update user status: %w", err)
	}
	if n == 0 {
		return nil, errs.E(errs.KindNotFound, op, "user %d not found", id)
	}

	s.logger.Info("User status updated", zap.Uint("user_id", id), zap.String("status", string(status)))
	return s.repo.GetByID(ctx, id)
}

// CountByRole returns the number of accounts per role.
func (s *Service) CountByRole(ctx context.Context) (map[Role]int64, error) {
	return s.repo.CountByRole(ctx)
}
