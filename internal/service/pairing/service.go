package pairing

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/Myahse/Intranet-Djogana-sub000/internal/domain"
	"github.com/Myahse/Intranet-Djogana-sub000/internal/repository"
	"github.com/Myahse/Intranet-Djogana-sub000/internal/service/auth"
	"github.com/Myahse/Intranet-Djogana-sub000/internal/ws"
	"github.com/Myahse/Intranet-Djogana-sub000/pkg/config"
)

var (
	// ErrNotFound indicates the request id does not exist.
	ErrNotFound = errors.New("pairing: request not found")
	// ErrForbidden indicates the acting user does not own the request.
	ErrForbidden = errors.New("pairing: request owned by another user")
	// ErrAlreadyResolved indicates the request reached a terminal state
	// before this caller's transition could apply.
	ErrAlreadyResolved = errors.New("pairing: request already resolved")
)

const codeDigits = 6

// Notifier delivers a push notification for a freshly created request.
// Delivery is fire-and-forget; failures never fail request creation.
type Notifier interface {
	LoginRequested(ctx context.Context, req domain.DeviceLoginRequest) error
}

// TokenIssuer mints the session tokens handed to the web client on approval.
type TokenIssuer interface {
	IssueTokens(user *domain.User) (auth.TokenPair, error)
}

// Service implements the device login state machine.
type Service struct {
	requests repository.DeviceLoginRepository
	users    repository.UserRepository
	notifier Notifier
	tokens   TokenIssuer
	hub      *ws.Hub
	logger   *slog.Logger
	cfg      config.APIConfig
}

// New constructs a Service.
func New(requests repository.DeviceLoginRepository, users repository.UserRepository, notifier Notifier, tokens TokenIssuer, hub *ws.Hub, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{requests: requests, users: users, notifier: notifier, tokens: tokens, hub: hub, logger: logger, cfg: cfg}
}

// PollResult captures the outcome of a poll attempt. Tokens are present only
// on the first poll that observes the approved state.
type PollResult struct {
	Status string
	User   *domain.User
	Tokens *auth.TokenPair
}

// Create opens a new login request for an already-verified user. Any request
// still pending for that user is superseded in the same transaction, so at
// most one pending request per user exists at any observation point.
func (s Service) Create(ctx context.Context, userID string) (*domain.DeviceLoginRequest, error) {
	validity := s.cfg.PairingValidity
	if validity <= 0 {
		validity = 15 * time.Second
	}
	code, err := randomCode(codeDigits)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	req := domain.DeviceLoginRequest{
		ID:        uuid.NewString(),
		UserID:    userID,
		Code:      code,
		Status:    domain.DeviceLoginStatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(validity),
	}
	if err := s.requests.CreateDeviceLogin(ctx, &req); err != nil {
		return nil, err
	}
	s.logger.Info("device login requested", "request_id", req.ID, "user_id", userID)
	s.dispatch(req)
	return &req, nil
}

// Approve transitions a pending request to approved on behalf of its owner.
func (s Service) Approve(ctx context.Context, requestID, actingUserID, actedDevice string) (*domain.DeviceLoginRequest, error) {
	return s.resolve(ctx, requestID, actingUserID, actedDevice, domain.DeviceLoginStatusApproved)
}

// Deny transitions a pending request to denied on behalf of its owner.
func (s Service) Deny(ctx context.Context, requestID, actingUserID, actedDevice string) (*domain.DeviceLoginRequest, error) {
	return s.resolve(ctx, requestID, actingUserID, actedDevice, domain.DeviceLoginStatusDenied)
}

func (s Service) resolve(ctx context.Context, requestID, actingUserID, actedDevice, status string) (*domain.DeviceLoginRequest, error) {
	req, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.UserID != actingUserID {
		return nil, ErrForbidden
	}
	now := time.Now().UTC()
	if req.Status == domain.DeviceLoginStatusPending && req.Expired(now) {
		if err := s.requests.MarkDeviceLoginExpired(ctx, requestID); err != nil {
			return nil, err
		}
		req.Status = domain.DeviceLoginStatusExpired
		return req, ErrAlreadyResolved
	}
	if req.Terminal() {
		return req, ErrAlreadyResolved
	}
	updated, err := s.requests.ResolveDeviceLogin(ctx, requestID, status, actedDevice)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidArgument) {
			// Guard failed: a concurrent approve/deny/expiry won the race.
			current, loadErr := s.load(ctx, requestID)
			if loadErr != nil {
				return nil, loadErr
			}
			return current, ErrAlreadyResolved
		}
		return nil, err
	}
	s.logger.Info("device login resolved", "request_id", requestID, "status", status, "user_id", actingUserID)
	s.broadcast(*updated)
	return updated, nil
}

// Poll reports the current state of a request, materializing lazy expiry
// first. Terminal statuses are returned idempotently; the session token pair
// is delivered exactly once, to the first poll observing the approval.
func (s Service) Poll(ctx context.Context, requestID string) (PollResult, error) {
	req, err := s.load(ctx, requestID)
	if err != nil {
		return PollResult{}, err
	}
	now := time.Now().UTC()
	if req.Status == domain.DeviceLoginStatusPending && req.Expired(now) {
		if err := s.requests.MarkDeviceLoginExpired(ctx, requestID); err != nil {
			return PollResult{}, err
		}
		return PollResult{Status: domain.DeviceLoginStatusExpired}, nil
	}
	if req.Status != domain.DeviceLoginStatusApproved {
		return PollResult{Status: req.Status}, nil
	}
	user, err := s.users.GetUserByID(ctx, req.UserID)
	if err != nil {
		return PollResult{}, err
	}
	result := PollResult{Status: domain.DeviceLoginStatusApproved, User: user}
	// Issue before claiming: a failed issuance after a won claim would burn
	// the one-shot delivery with no tokens ever handed out.
	tokens, err := s.tokens.IssueTokens(user)
	if err != nil {
		return PollResult{}, err
	}
	won, err := s.requests.ClaimDeviceLogin(ctx, requestID, now)
	if err != nil {
		return PollResult{}, err
	}
	if won {
		result.Tokens = &tokens
	}
	return result, nil
}

// Lookup returns the current state of a request with lazy expiry applied.
// Unlike Poll it never claims the one-shot token delivery.
func (s Service) Lookup(ctx context.Context, requestID string) (*domain.DeviceLoginRequest, error) {
	req, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status == domain.DeviceLoginStatusPending && req.Expired(time.Now().UTC()) {
		if err := s.requests.MarkDeviceLoginExpired(ctx, requestID); err != nil {
			return nil, err
		}
		req.Status = domain.DeviceLoginStatusExpired
	}
	return req, nil
}

// ListPending returns the user's pending requests with lazy expiry applied,
// so stale rows never surface in the mobile approval list.
func (s Service) ListPending(ctx context.Context, userID string) ([]domain.DeviceLoginRequest, error) {
	requests, err := s.requests.ListPendingDeviceLogins(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	live := make([]domain.DeviceLoginRequest, 0, len(requests))
	for _, req := range requests {
		if req.Expired(now) {
			if err := s.requests.MarkDeviceLoginExpired(ctx, req.ID); err != nil {
				s.logger.Warn("failed to expire stale request", "request_id", req.ID, "error", err)
			}
			continue
		}
		live = append(live, req)
	}
	return live, nil
}

// History returns resolved requests for audit display, newest first.
func (s Service) History(ctx context.Context, userID string) ([]domain.DeviceLoginRequest, error) {
	limit := s.cfg.PairingHistoryLimit
	if limit <= 0 {
		limit = 50
	}
	return s.requests.ListResolvedDeviceLogins(ctx, userID, limit)
}

func (s Service) load(ctx context.Context, requestID string) (*domain.DeviceLoginRequest, error) {
	trimmed := strings.TrimSpace(requestID)
	if trimmed == "" {
		return nil, ErrNotFound
	}
	req, err := s.requests.GetDeviceLogin(ctx, trimmed)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return req, nil
}

// dispatch notifies the owner's devices about the new request. Failures are
// logged and dropped.
func (s Service) dispatch(req domain.DeviceLoginRequest) {
	s.broadcast(req)
	if s.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.notifier.LoginRequested(ctx, req); err != nil {
			s.logger.Warn("push dispatch failed", "request_id", req.ID, "error", err)
		}
	}()
}

func (s Service) broadcast(req domain.DeviceLoginRequest) {
	if s.hub == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"type":       "device_login",
		"request_id": req.ID,
		"code":       req.Code,
		"status":     req.Status,
		"created_at": req.CreatedAt.Format(time.RFC3339Nano),
		"expires_at": req.ExpiresAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		s.logger.Warn("failed to marshal nudge payload", "error", err)
		return
	}
	s.hub.Broadcast(req.UserID, payload)
}

func randomCode(length int) (string, error) {
	if length <= 0 {
		length = codeDigits
	}
	const digits = "0123456789"
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate display code: %w", err)
	}
	for i := 0; i < length; i++ {
		buf[i] = digits[int(buf[i])%len(digits)]
	}
	return string(buf), nil
}
