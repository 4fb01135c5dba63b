package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Myahse/Intranet-Djogana-sub000/internal/domain"
	"github.com/Myahse/Intranet-Djogana-sub000/internal/repository"
	"github.com/Myahse/Intranet-Djogana-sub000/internal/service/auth"
	"github.com/Myahse/Intranet-Djogana-sub000/internal/service/document"
	"github.com/Myahse/Intranet-Djogana-sub000/internal/service/pairing"
	"github.com/Myahse/Intranet-Djogana-sub000/internal/service/user"
	"github.com/Myahse/Intranet-Djogana-sub000/internal/ws"
	"github.com/Myahse/Intranet-Djogana-sub000/pkg/config"
	"github.com/Myahse/Intranet-Djogana-sub000/pkg/crypto"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*domain.User)}
}

func (r *memUserRepo) CreateUser(_ context.Context, account *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Identifier == account.Identifier {
			return repository.ErrConflict
		}
	}
	copied := *account
	r.users[account.ID] = &copied
	return nil
}

func (r *memUserRepo) GetUserByIdentifier(_ context.Context, identifier string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, account := range r.users {
		if account.Identifier == identifier {
			copied := *account
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memUserRepo) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *account
	return &copied, nil
}

func (r *memUserRepo) ListUsers(context.Context) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.User, 0, len(r.users))
	for _, account := range r.users {
		out = append(out, *account)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out, nil
}

type memDeviceLoginRepo struct {
	mu       sync.Mutex
	requests map[string]*domain.DeviceLoginRequest
}

func newMemDeviceLoginRepo() *memDeviceLoginRepo {
	return &memDeviceLoginRepo{requests: make(map[string]*domain.DeviceLoginRequest)}
}

func (r *memDeviceLoginRepo) CreateDeviceLogin(_ context.Context, req *domain.DeviceLoginRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	for _, existing := range r.requests {
		if existing.UserID == req.UserID && existing.Status == domain.DeviceLoginStatusPending {
			existing.Status = domain.DeviceLoginStatusSuperseded
			existing.ResolvedAt = &now
		}
	}
	copied := *req
	r.requests[req.ID] = &copied
	return nil
}

func (r *memDeviceLoginRepo) GetDeviceLogin(_ context.Context, id string) (*domain.DeviceLoginRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *req
	return &copied, nil
}

func (r *memDeviceLoginRepo) ResolveDeviceLogin(_ context.Context, id, status, actedDevice string) (*domain.DeviceLoginRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	now := time.Now().UTC()
	if req.Status != domain.DeviceLoginStatusPending || now.After(req.ExpiresAt) {
		return nil, repository.ErrInvalidArgument
	}
	req.Status = status
	req.ResolvedAt = &now
	if actedDevice != "" {
		req.ActedDevice = actedDevice
	}
	copied := *req
	return &copied, nil
}

func (r *memDeviceLoginRepo) MarkDeviceLoginExpired(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return repository.ErrNotFound
	}
	if req.Status == domain.DeviceLoginStatusPending {
		now := time.Now().UTC()
		req.Status = domain.DeviceLoginStatusExpired
		req.ResolvedAt = &now
	}
	return nil
}

func (r *memDeviceLoginRepo) ClaimDeviceLogin(_ context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if req.Status != domain.DeviceLoginStatusApproved || req.ClaimedAt != nil {
		return false, nil
	}
	claimed := at
	req.ClaimedAt = &claimed
	return true, nil
}

func (r *memDeviceLoginRepo) ListPendingDeviceLogins(_ context.Context, userID string) ([]domain.DeviceLoginRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.DeviceLoginRequest, 0)
	for _, req := range r.requests {
		if req.UserID == userID && req.Status == domain.DeviceLoginStatusPending {
			out = append(out, *req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memDeviceLoginRepo) ListResolvedDeviceLogins(_ context.Context, userID string, limit int) ([]domain.DeviceLoginRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.DeviceLoginRequest, 0)
	for _, req := range r.requests {
		if req.UserID == userID && req.Status != domain.DeviceLoginStatusPending {
			out = append(out, *req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type stubDirectionRepo struct{}

func (stubDirectionRepo) CreateDirection(context.Context, *domain.Direction) error { return nil }
func (stubDirectionRepo) GetDirectionByID(context.Context, string) (*domain.Direction, error) {
	return nil, repository.ErrNotFound
}
func (stubDirectionRepo) ListDirections(context.Context) ([]domain.Direction, error) {
	return nil, nil
}
func (stubDirectionRepo) CreateFolder(context.Context, *domain.Folder) error { return nil }
func (stubDirectionRepo) GetFolderByID(context.Context, string) (*domain.Folder, error) {
	return nil, repository.ErrNotFound
}
func (stubDirectionRepo) ListFoldersByDirection(context.Context, string) ([]domain.Folder, error) {
	return nil, nil
}

type stubDocumentRepo struct{}

func (stubDocumentRepo) CreateDocument(context.Context, *domain.Document) error { return nil }
func (stubDocumentRepo) GetDocumentByID(context.Context, string) (*domain.Document, error) {
	return nil, repository.ErrNotFound
}
func (stubDocumentRepo) ListDocumentsByFolder(context.Context, string) ([]domain.Document, error) {
	return nil, nil
}
func (stubDocumentRepo) DeleteDocument(context.Context, string) error { return nil }

type stubPushDeviceRepo struct{}

func (stubPushDeviceRepo) UpsertPushDevice(context.Context, *domain.PushDevice) error { return nil }
func (stubPushDeviceRepo) DeletePushDevice(context.Context, string, string) error     { return nil }
func (stubPushDeviceRepo) ListPushDevicesByUser(context.Context, string) ([]domain.PushDevice, error) {
	return nil, nil
}

type testEnv struct {
	router   *Router
	users    *memUserRepo
	requests *memDeviceLoginRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.APIConfig{
		JWTSecret:           "router-test-secret",
		AccessTokenTTL:      time.Minute,
		RefreshTokenTTL:     time.Hour,
		PairingValidity:     15 * time.Second,
		PairingPollInterval: 2500 * time.Millisecond,
		PairingCooldown:     20 * time.Second,
		PairingHistoryLimit: 50,
	}
	log := newLogger()
	users := newMemUserRepo()
	requests := newMemDeviceLoginRepo()
	seedUser(t, users, "amadou", "Testing123!", domain.RoleMember)
	seedUser(t, users, "fatou", "Testing123!", domain.RoleAdmin)

	hub := ws.NewHub()
	authSvc := auth.New(users, log, cfg)
	userSvc := user.New(users, log)
	pairingSvc := pairing.New(requests, users, nil, authSvc, hub, log, cfg)
	documentSvc := document.New(stubDirectionRepo{}, stubDocumentRepo{}, log)

	router := NewRouter(log, cfg, authSvc, userSvc, pairingSvc, documentSvc, stubPushDeviceRepo{}, hub, NewMemoryRateLimiter(), nil)
	t.Cleanup(router.Close)
	return &testEnv{router: router, users: users, requests: requests}
}

func seedUser(t *testing.T, users *memUserRepo, identifier, password, role string) {
	t.Helper()
	hash, err := crypto.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	err = users.CreateUser(context.Background(), &domain.User{
		ID:           "user-" + identifier,
		Identifier:   identifier,
		DisplayName:  strings.ToUpper(identifier[:1]) + identifier[1:],
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func (e *testEnv) doJSON(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	decoded := map[string]any{}
	if rec.Body.Len() > 0 && strings.Contains(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, decoded
}

func (e *testEnv) loginToken(t *testing.T, identifier, password string) string {
	t.Helper()
	rec, body := e.doJSON(t, http.MethodPost, "/auth/login", "", map[string]string{
		"identifier": identifier,
		"password":   password,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed with status %d: %s", rec.Code, rec.Body.String())
	}
	tokens, ok := body["tokens"].(map[string]any)
	if !ok {
		t.Fatalf("missing tokens in login response: %v", body)
	}
	token, _ := tokens["access_token"].(string)
	if token == "" {
		t.Fatal("empty access token")
	}
	return token
}

func TestDeviceLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)
	rec, _ := env.doJSON(t, http.MethodPost, "/device-login", "", map[string]string{
		"identifier": "amadou",
		"password":   "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestDeviceLoginApprovalFlow(t *testing.T) {
	env := newTestEnv(t)

	rec, created := env.doJSON(t, http.MethodPost, "/device-login", "", map[string]string{
		"identifier": "amadou",
		"password":   "Testing123!",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	requestID, _ := created["request_id"].(string)
	code, _ := created["code"].(string)
	if requestID == "" || len(code) != 6 {
		t.Fatalf("unexpected create payload: %v", created)
	}
	if created["poll_interval_ms"].(float64) != 2500 {
		t.Fatalf("unexpected poll interval: %v", created["poll_interval_ms"])
	}

	rec, poll := env.doJSON(t, http.MethodGet, "/device-login/"+requestID, "", nil)
	if rec.Code != http.StatusOK || poll["status"] != "pending" {
		t.Fatalf("expected pending poll, got %d %v", rec.Code, poll)
	}

	rec, _ = env.doJSON(t, http.MethodPost, "/device-login/"+requestID+"/approve", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unauthenticated approve, got %d", rec.Code)
	}

	mobileToken := env.loginToken(t, "amadou", "Testing123!")
	rec, resolved := env.doJSON(t, http.MethodPost, "/device-login/"+requestID+"/approve", mobileToken, map[string]string{
		"device_name": "pixel-7",
	})
	if rec.Code != http.StatusOK || resolved["status"] != "approved" {
		t.Fatalf("expected approved, got %d %v", rec.Code, resolved)
	}

	rec, poll = env.doJSON(t, http.MethodGet, "/device-login/"+requestID, "", nil)
	if rec.Code != http.StatusOK || poll["status"] != "approved" {
		t.Fatalf("expected approved poll, got %d %v", rec.Code, poll)
	}
	tokens, ok := poll["tokens"].(map[string]any)
	if !ok || tokens["access_token"] == "" {
		t.Fatalf("first poll after approval must carry tokens: %v", poll)
	}

	rec, poll = env.doJSON(t, http.MethodGet, "/device-login/"+requestID, "", nil)
	if rec.Code != http.StatusOK || poll["status"] != "approved" {
		t.Fatalf("expected idempotent approved poll, got %d %v", rec.Code, poll)
	}
	if _, ok := poll["tokens"]; ok {
		t.Fatalf("second poll must not carry tokens: %v", poll)
	}
	summary, ok := poll["user"].(map[string]any)
	if !ok || summary["identifier"] != "amadou" {
		t.Fatalf("every approved poll must carry the user summary: %v", poll)
	}

	rec, conflict := env.doJSON(t, http.MethodPost, "/device-login/"+requestID+"/deny", mobileToken, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for deny after approve, got %d", rec.Code)
	}
	if conflict["status"] != "approved" {
		t.Fatalf("conflict must report winning state, got %v", conflict)
	}
}

func TestDeviceLoginForeignApproverLooksLikeNotFound(t *testing.T) {
	env := newTestEnv(t)
	rec, created := env.doJSON(t, http.MethodPost, "/device-login", "", map[string]string{
		"identifier": "amadou",
		"password":   "Testing123!",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	requestID := created["request_id"].(string)

	foreignToken := env.loginToken(t, "fatou", "Testing123!")
	rec, _ = env.doJSON(t, http.MethodPost, "/device-login/"+requestID+"/approve", foreignToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign approver, got %d", rec.Code)
	}
}

func TestDeviceLoginSupersession(t *testing.T) {
	env := newTestEnv(t)
	credentials := map[string]string{"identifier": "amadou", "password": "Testing123!"}

	rec, first := env.doJSON(t, http.MethodPost, "/device-login", "", credentials)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	rec, second := env.doJSON(t, http.MethodPost, "/device-login", "", credentials)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for second request, got %d", rec.Code)
	}

	rec, poll := env.doJSON(t, http.MethodGet, "/device-login/"+first["request_id"].(string), "", nil)
	if rec.Code != http.StatusOK || poll["status"] != "superseded" {
		t.Fatalf("expected first request superseded, got %d %v", rec.Code, poll)
	}
	rec, poll = env.doJSON(t, http.MethodGet, "/device-login/"+second["request_id"].(string), "", nil)
	if rec.Code != http.StatusOK || poll["status"] != "pending" {
		t.Fatalf("expected second request pending, got %d %v", rec.Code, poll)
	}
}

func TestDeviceLoginUnknownRequest(t *testing.T) {
	env := newTestEnv(t)
	rec, _ := env.doJSON(t, http.MethodGet, "/device-login/no-such-request", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestDeviceLoginPendingListRequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	rec, _ := env.doJSON(t, http.MethodGet, "/device-login/pending", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	token := env.loginToken(t, "amadou", "Testing123!")
	rec, created := env.doJSON(t, http.MethodPost, "/device-login", "", map[string]string{
		"identifier": "amadou",
		"password":   "Testing123!",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	rec, body := env.doJSON(t, http.MethodGet, "/device-login/pending", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	entries, ok := body["requests"].([]any)
	if !ok || len(entries) != 1 {
		t.Fatalf("expected one pending entry, got %v", body)
	}
	entry := entries[0].(map[string]any)
	if entry["request_id"] != created["request_id"] {
		t.Fatalf("unexpected pending entry: %v", entry)
	}
}

func TestDeviceLoginHistoryAfterDenial(t *testing.T) {
	env := newTestEnv(t)
	rec, created := env.doJSON(t, http.MethodPost, "/device-login", "", map[string]string{
		"identifier": "amadou",
		"password":   "Testing123!",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	requestID := created["request_id"].(string)

	token := env.loginToken(t, "amadou", "Testing123!")
	rec, _ = env.doJSON(t, http.MethodPost, "/device-login/"+requestID+"/deny", token, map[string]string{
		"device_name": "pixel-7",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec, poll := env.doJSON(t, http.MethodGet, "/device-login/"+requestID, "", nil)
	if rec.Code != http.StatusOK || poll["status"] != "denied" {
		t.Fatalf("expected denied poll, got %d %v", rec.Code, poll)
	}
	if _, ok := poll["tokens"]; ok {
		t.Fatal("denied poll must not carry tokens")
	}

	rec, body := env.doJSON(t, http.MethodGet, "/device-login/history", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	entries, ok := body["requests"].([]any)
	if !ok || len(entries) != 1 {
		t.Fatalf("expected one history entry, got %v", body)
	}
	entry := entries[0].(map[string]any)
	if entry["status"] != "denied" || entry["acted_device"] != "pixel-7" {
		t.Fatalf("unexpected history entry: %v", entry)
	}
}

func TestDeviceLoginStreamSnapshotForResolvedRequest(t *testing.T) {
	env := newTestEnv(t)
	rec, created := env.doJSON(t, http.MethodPost, "/device-login", "", map[string]string{
		"identifier": "amadou",
		"password":   "Testing123!",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	requestID := created["request_id"].(string)
	token := env.loginToken(t, "amadou", "Testing123!")
	rec, _ = env.doJSON(t, http.MethodPost, "/device-login/"+requestID+"/deny", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/device-login/"+requestID+"/stream", nil)
	stream := httptest.NewRecorder()
	env.router.ServeHTTP(stream, req)
	if stream.Code != http.StatusOK {
		t.Fatalf("expected 200 stream, got %d", stream.Code)
	}
	if ct := stream.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type: %q", ct)
	}
	body := stream.Body.String()
	if !strings.Contains(body, "data: ") || !strings.Contains(body, `"status":"denied"`) {
		t.Fatalf("expected denied snapshot event, got %q", body)
	}
}

func TestUserAdminEndpoints(t *testing.T) {
	env := newTestEnv(t)
	memberToken := env.loginToken(t, "amadou", "Testing123!")
	adminToken := env.loginToken(t, "fatou", "Testing123!")

	newUser := map[string]any{
		"identifier": "moussa",
		"password":   "Testing123!",
		"role":       "member",
	}
	rec, _ := env.doJSON(t, http.MethodPost, "/users", memberToken, newUser)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for member, got %d", rec.Code)
	}
	rec, createdUser := env.doJSON(t, http.MethodPost, "/users", adminToken, newUser)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if createdUser["identifier"] != "moussa" {
		t.Fatalf("unexpected created user: %v", createdUser)
	}
	rec, _ = env.doJSON(t, http.MethodPost, "/users", adminToken, newUser)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate identifier, got %d", rec.Code)
	}

	rec, list := env.doJSON(t, http.MethodGet, "/users", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	accounts, ok := list["users"].([]any)
	if !ok || len(accounts) != 3 {
		t.Fatalf("expected three users, got %v", list)
	}
	for _, raw := range accounts {
		account := raw.(map[string]any)
		if _, leaked := account["PasswordHash"]; leaked {
			t.Fatal("password hash must not be serialized")
		}
	}
}

func TestHealthzReportsDatabaseState(t *testing.T) {
	env := newTestEnv(t)
	rec, body := env.doJSON(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected health payload: %v", body)
	}
}

func TestCreateRateLimitedPerIP(t *testing.T) {
	env := newTestEnv(t)
	credentials := map[string]string{"identifier": "amadou", "password": "Testing123!"}
	var last *httptest.ResponseRecorder
	for i := 0; i < rateLimitDeviceLogin+1; i++ {
		last, _ = env.doJSON(t, http.MethodPost, "/device-login", "", credentials)
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after %d creates, got %d", rateLimitDeviceLogin+1, last.Code)
	}
	if last.Header().Get("X-RateLimit-Limit") == "" {
		t.Fatal("expected rate limit headers")
	}
}
