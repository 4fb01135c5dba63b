package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/Myahse/Intranet-Djogana-sub000/internal/domain"
	"github.com/Myahse/Intranet-Djogana-sub000/internal/repository"
	"github.com/Myahse/Intranet-Djogana-sub000/pkg/config"
	"github.com/Myahse/Intranet-Djogana-sub000/pkg/crypto"
	jwtpkg "github.com/Myahse/Intranet-Djogana-sub000/pkg/jwt"
)

// ErrInvalidCredentials covers both unknown identifier and password mismatch.
// The two cases are indistinguishable to callers so login responses cannot be
// used to enumerate accounts.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// dummyHash keeps the unknown-identifier path on the same bcrypt cost as a
// real compare so response timing does not reveal whether an account exists.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// Service handles credential verification and token issuance.
type Service struct {
	users  repository.UserRepository
	logger *slog.Logger
	cfg    config.APIConfig
}

// New constructs a Service.
func New(users repository.UserRepository, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{users: users, logger: logger, cfg: cfg}
}

// TokenPair contains access and refresh tokens.
type TokenPair struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresIn    time.Duration `json:"expires_in"`
}

// Verify checks identifier and password against the stored hash. The lookup
// and the compare collapse into the same error.
func (s Service) Verify(ctx context.Context, identifier, password string) (*domain.User, error) {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.users.GetUserByIdentifier(ctx, trimmed)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = crypto.ComparePassword(dummyHash, password)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := crypto.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates a user and returns tokens for the dashboard session.
func (s Service) Login(ctx context.Context, identifier, password string) (*domain.User, TokenPair, error) {
	user, err := s.Verify(ctx, identifier, password)
	if err != nil {
		return nil, TokenPair{}, err
	}
	tokens, err := s.IssueTokens(user)
	if err != nil {
		return nil, TokenPair{}, err
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	return user, tokens, nil
}

// Authorize validates a bearer token and returns the associated user and claims.
func (s Service) Authorize(ctx context.Context, token string) (*domain.User, *jwtpkg.Claims, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, nil, errors.New("token required")
	}
	claims, err := jwtpkg.Parse(trimmed, s.cfg.JWTSecret)
	if err != nil {
		return nil, nil, err
	}
	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, nil, err
	}
	return user, claims, nil
}

// IssueTokens mints an access/refresh pair for the user.
func (s Service) IssueTokens(user *domain.User) (TokenPair, error) {
	access, err := jwtpkg.GenerateToken(user.ID, user.Role, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := jwtpkg.GenerateToken(user.ID, user.Role, s.cfg.JWTSecret, s.cfg.RefreshTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: s.cfg.AccessTokenTTL}, nil
}
