package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/Myahse/Intranet-Djogana-sub000/internal/domain"
	"github.com/Myahse/Intranet-Djogana-sub000/internal/repository"
	"github.com/Myahse/Intranet-Djogana-sub000/pkg/crypto"
)

var (
	ErrIdentifierRequired = errors.New("user: identifier is required")
	ErrPasswordTooShort   = errors.New("user: password must be at least 8 characters")
	ErrInvalidRole        = errors.New("user: role must be admin or member")
)

// Service handles account administration.
type Service struct {
	users  repository.UserRepository
	logger *slog.Logger
}

// New constructs a Service.
func New(users repository.UserRepository, logger *slog.Logger) Service {
	return Service{users: users, logger: logger}
}

// CreateInput describes a new account.
type CreateInput struct {
	Identifier  string  `json:"identifier"`
	DisplayName string  `json:"display_name"`
	Password    string  `json:"password"`
	Role        string  `json:"role"`
	DirectionID *string `json:"direction_id"`
}

// Create registers an account with a bcrypt-hashed password.
func (s Service) Create(ctx context.Context, input CreateInput) (*domain.User, error) {
	identifier := strings.TrimSpace(input.Identifier)
	if identifier == "" {
		return nil, ErrIdentifierRequired
	}
	if len(input.Password) < 8 {
		return nil, ErrPasswordTooShort
	}
	role := strings.TrimSpace(input.Role)
	if role == "" {
		role = domain.RoleMember
	}
	if role != domain.RoleAdmin && role != domain.RoleMember {
		return nil, ErrInvalidRole
	}
	hash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	account := &domain.User{
		ID:           uuid.NewString(),
		Identifier:   identifier,
		DisplayName:  strings.TrimSpace(input.DisplayName),
		Role:         role,
		DirectionID:  input.DirectionID,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, account); err != nil {
		return nil, err
	}
	s.logger.Info("user created", "user_id", account.ID, "role", role)
	return account, nil
}

// List returns all accounts.
func (s Service) List(ctx context.Context) ([]domain.User, error) {
	return s.users.ListUsers(ctx)
}
