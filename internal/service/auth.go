package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"lpg-service/internal/auth"
	"lpg-service/internal/models"
	"lpg-service/internal/repository"
)

// Session is what the client keeps after signing in. The JSON names are
// the keys the app stores it under.
type Session struct {
	Token     string       `json:"auth_token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user_data"`
}

type AuthService struct {
	users      repository.UserRepository
	admins     repository.AdminRepository
	tokens     *auth.Tokens
	bcryptCost int
	logger     *zap.Logger
}

func NewAuthService(users repository.UserRepository, admins repository.AdminRepository, tokens *auth.Tokens, bcryptCost int, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:      users,
		admins:     admins,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// SignIn accepts an admin username or a customer email. Both kinds of
// account are checked against their bcrypt hash.
func (s *AuthService) SignIn(ctx context.Context, identifier, secret string) (*Session, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || secret == "" {
		return nil, fmt.Errorf("%w: identifier and password are required", ErrAuth)
	}

	admin, err := s.admins.GetByUsername(ctx, identifier)
	switch {
	case err == nil:
		if err := auth.CheckPassword(admin.PasswordHash, secret); err != nil {
			return nil, s.authFailure(identifier, err)
		}
		return s.session(&models.User{
			ID:        admin.ID,
			FullName:  admin.Username,
			Role:      models.RoleAdmin,
			CreatedAt: admin.CreatedAt,
			UpdatedAt: admin.CreatedAt,
		})
	case !errors.Is(err, repository.ErrNotFound):
		return nil, s.lookupFailure(err)
	}

	user, err := s.users.GetByEmail(ctx, strings.ToLower(identifier))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrInvalidInput) {
			return nil, s.authFailure(identifier, err)
		}
		return nil, s.lookupFailure(err)
	}

	if err := auth.CheckPassword(user.PasswordHash, secret); err != nil {
		return nil, s.authFailure(identifier, err)
	}

	return s.session(user)
}

func (s *AuthService) authFailure(identifier string, err error) error {
	s.logger.Info("sign in rejected", zap.String("identifier", identifier), zap.Error(err))
	return fmt.Errorf("%w: invalid credentials", ErrAuth)
}

func (s *AuthService) lookupFailure(err error) error {
	if t := translate(err); errors.Is(t, ErrBackendUnavailable) {
		return t
	}
	s.logger.Error("sign in lookup failed", zap.Error(err))
	return fmt.Errorf("%w: %w", ErrAuth, err)
}

func (s *AuthService) session(u *models.User) (*Session, error) {
	token, expires, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: expires, User: u}, nil
}

type signUpInput struct {
	Email  string `validate:"required,email,max=255"`
	Secret string `validate:"required,min=6,max=72"`
}

// SignUp creates a customer account and signs it in.
func (s *AuthService) SignUp(ctx context.Context, email, secret string, profile models.Profile) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if err := checkStruct(signUpInput{Email: email, Secret: secret}); err != nil {
		return nil, err
	}
	profile.FullName = strings.TrimSpace(profile.FullName)
	profile.Phone = strings.TrimSpace(profile.Phone)
	profile.Address = strings.TrimSpace(profile.Address)
	if err := checkStruct(profile); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(secret, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        email,
		FullName:     profile.FullName,
		Phone:        profile.Phone,
		Address:      profile.Address,
		Role:         models.RoleCustomer,
		PasswordHash: hash,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, invalid("email is already registered")
		}
		return nil, translate(err)
	}

	s.logger.Info("customer registered", zap.String("user_id", user.ID.String()))

	return s.session(user)
}

// SignOut revokes the token until it would have expired.
func (s *AuthService) SignOut(ctx context.Context, token string) error {
	if err := s.tokens.Revoke(ctx, token); err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			return fmt.Errorf("%w: %w", ErrAuth, err)
		}
		return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	return nil
}

// Authenticate resolves a bearer token to its principal.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*auth.Principal, error) {
	p, err := s.tokens.Verify(ctx, token)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrRevokedToken) {
			return nil, fmt.Errorf("%w: %w", ErrAuth, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	return p, nil
}

func (s *AuthService) Me(ctx context.Context, actor auth.Principal) (*models.User, error) {
	if actor.IsAdmin() {
		return &models.User{ID: actor.UserID, Role: models.RoleAdmin}, nil
	}

	u, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, translate(err)
	}
	return u, nil
}
