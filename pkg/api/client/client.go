package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client provides typed access to the djogana API for interactive tools.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = "http://localhost:4000"
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// APIError represents an error response from the API.
type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body any, token string, v any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := c.baseURL + path
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg := extractError(resp.Body)
		return APIError{Status: resp.StatusCode, Message: msg}
	}

	if v == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractError(body io.Reader) string {
	if body == nil {
		return ""
	}
	var payload struct {
		Error string `json:"error"`
	}
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return ""
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}
	return strings.TrimSpace(payload.Error)
}

// User reflects API user payloads.
type User struct {
	ID          string `json:"id"`
	Identifier  string `json:"identifier"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	DirectionID string `json:"direction_id"`
}

// TokenPair includes access and refresh tokens.
type TokenPair struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresIn    time.Duration `json:"expires_in"`
}

// LoginResponse captures the token payload emitted by the API.
type LoginResponse struct {
	User   User      `json:"user"`
	Tokens TokenPair `json:"tokens"`
}

// Login exchanges credentials for a token pair directly.
func (c *Client) Login(ctx context.Context, identifier, password string) (LoginResponse, error) {
	body := map[string]string{
		"identifier": identifier,
		"password":   password,
	}
	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, "", &resp); err != nil {
		return LoginResponse{}, err
	}
	return resp, nil
}

// DeviceLoginStart is the server's answer to a new login request.
type DeviceLoginStart struct {
	RequestID       string    `json:"request_id"`
	Code            string    `json:"code"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `json:"expires_at"`
	PollIntervalMS  int64     `json:"poll_interval_ms"`
	CooldownSeconds int       `json:"cooldown_seconds"`
}

// PollInterval returns the server-suggested polling cadence.
func (s DeviceLoginStart) PollInterval() time.Duration {
	if s.PollIntervalMS <= 0 {
		return 2500 * time.Millisecond
	}
	return time.Duration(s.PollIntervalMS) * time.Millisecond
}

// Cooldown returns the wait the client should observe before retrying after a
// failed attempt.
func (s DeviceLoginStart) Cooldown() time.Duration {
	if s.CooldownSeconds <= 0 {
		return 20 * time.Second
	}
	return time.Duration(s.CooldownSeconds) * time.Second
}

// StartDeviceLogin opens a mobile-approved login request.
func (c *Client) StartDeviceLogin(ctx context.Context, identifier, password string) (DeviceLoginStart, error) {
	body := map[string]string{
		"identifier": identifier,
		"password":   password,
	}
	var resp DeviceLoginStart
	if err := c.do(ctx, http.MethodPost, "/device-login", body, "", &resp); err != nil {
		return DeviceLoginStart{}, err
	}
	return resp, nil
}

// DeviceLoginPoll reflects one poll of a login request. Tokens appear on the
// first poll that observes the approval and never again.
type DeviceLoginPoll struct {
	Status string     `json:"status"`
	User   *User      `json:"user"`
	Tokens *TokenPair `json:"tokens"`
}

// PollDeviceLogin fetches the current state of a login request.
func (c *Client) PollDeviceLogin(ctx context.Context, requestID string) (DeviceLoginPoll, error) {
	path := fmt.Sprintf("/device-login/%s", url.PathEscape(requestID))
	var resp DeviceLoginPoll
	if err := c.do(ctx, http.MethodGet, path, nil, "", &resp); err != nil {
		return DeviceLoginPoll{}, err
	}
	return resp, nil
}

// ErrLoginDenied reports a request resolved against the caller.
var ErrLoginDenied = errors.New("login request denied")

// ErrLoginExpired reports a request that ran out its validity window.
var ErrLoginExpired = errors.New("login request expired")

// ErrLoginSuperseded reports a request replaced by a newer one.
var ErrLoginSuperseded = errors.New("login request superseded")

// WaitForApproval polls the request at the server-suggested interval until a
// terminal state is reached. An approved request yields the token pair; other
// terminal states map to sentinel errors.
func (c *Client) WaitForApproval(ctx context.Context, start DeviceLoginStart) (DeviceLoginPoll, error) {
	interval := start.PollInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		pollCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		resp, err := c.PollDeviceLogin(pollCtx, start.RequestID)
		cancel()
		if err != nil {
			return DeviceLoginPoll{}, err
		}
		switch resp.Status {
		case "approved":
			return resp, nil
		case "denied":
			return resp, ErrLoginDenied
		case "expired":
			return resp, ErrLoginExpired
		case "superseded":
			return resp, ErrLoginSuperseded
		case "pending":
		default:
			return resp, fmt.Errorf("unexpected login status: %s", resp.Status)
		}
		select {
		case <-ctx.Done():
			return DeviceLoginPoll{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// DeviceLoginEntry models a request in pending or history listings.
type DeviceLoginEntry struct {
	RequestID   string     `json:"request_id"`
	Code        string     `json:"code"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	ResolvedAt  *time.Time `json:"resolved_at"`
	ActedDevice string     `json:"acted_device"`
}

type deviceLoginList struct {
	Requests []DeviceLoginEntry `json:"requests"`
}

// ListPendingLogins returns the caller's live pending requests.
func (c *Client) ListPendingLogins(ctx context.Context, token string) ([]DeviceLoginEntry, error) {
	var resp deviceLoginList
	if err := c.do(ctx, http.MethodGet, "/device-login/pending", nil, token, &resp); err != nil {
		return nil, err
	}
	return resp.Requests, nil
}

// LoginHistory returns the caller's resolved requests, newest first.
func (c *Client) LoginHistory(ctx context.Context, token string) ([]DeviceLoginEntry, error) {
	var resp deviceLoginList
	if err := c.do(ctx, http.MethodGet, "/device-login/history", nil, token, &resp); err != nil {
		return nil, err
	}
	return resp.Requests, nil
}

// ResolveResponse reflects the outcome of an approve or deny call.
type ResolveResponse struct {
	RequestID  string     `json:"request_id"`
	Status     string     `json:"status"`
	ResolvedAt *time.Time `json:"resolved_at"`
}

// ApproveLogin approves a pending request on behalf of its owner.
func (c *Client) ApproveLogin(ctx context.Context, token, requestID, deviceName string) (ResolveResponse, error) {
	return c.resolveLogin(ctx, token, requestID, "approve", deviceName)
}

// DenyLogin denies a pending request on behalf of its owner.
func (c *Client) DenyLogin(ctx context.Context, token, requestID, deviceName string) (ResolveResponse, error) {
	return c.resolveLogin(ctx, token, requestID, "deny", deviceName)
}

func (c *Client) resolveLogin(ctx context.Context, token, requestID, action, deviceName string) (ResolveResponse, error) {
	path := fmt.Sprintf("/device-login/%s/%s", url.PathEscape(requestID), action)
	body := map[string]string{}
	if strings.TrimSpace(deviceName) != "" {
		body["device_name"] = deviceName
	}
	var resp ResolveResponse
	if err := c.do(ctx, http.MethodPost, path, body, token, &resp); err != nil {
		return ResolveResponse{}, err
	}
	return resp, nil
}

// Direction models an organizational unit.
type Direction struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ListDirections returns all directions visible to the caller.
func (c *Client) ListDirections(ctx context.Context, token string) ([]Direction, error) {
	var resp struct {
		Directions []Direction `json:"directions"`
	}
	if err := c.do(ctx, http.MethodGet, "/directions", nil, token, &resp); err != nil {
		return nil, err
	}
	return resp.Directions, nil
}

// RegisterPushDevice records a mobile push token for the caller.
func (c *Client) RegisterPushDevice(ctx context.Context, token, pushToken, platform string) error {
	body := map[string]string{
		"token":    pushToken,
		"platform": platform,
	}
	return c.do(ctx, http.MethodPost, "/push-devices", body, token, nil)
}
