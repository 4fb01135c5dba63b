package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestStartDeviceLoginDecodesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/device-login" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["identifier"] != "amadou" {
			t.Errorf("unexpected identifier: %q", body["identifier"])
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"request_id":       "req-1",
			"code":             "482913",
			"status":           "pending",
			"created_at":       time.Now().UTC().Format(time.RFC3339Nano),
			"expires_at":       time.Now().UTC().Add(15 * time.Second).Format(time.RFC3339Nano),
			"poll_interval_ms": 50,
			"cooldown_seconds": 20,
		})
	}))
	defer server.Close()

	cli, err := New(server.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	start, err := cli.StartDeviceLogin(context.Background(), "amadou", "Testing123!")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start.RequestID != "req-1" || start.Code != "482913" {
		t.Fatalf("unexpected start payload: %+v", start)
	}
	if start.PollInterval() != 50*time.Millisecond {
		t.Fatalf("unexpected poll interval: %s", start.PollInterval())
	}
	if start.Cooldown() != 20*time.Second {
		t.Fatalf("unexpected cooldown: %s", start.Cooldown())
	}
}

func TestWaitForApprovalReturnsTokens(t *testing.T) {
	polls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		polls++
		w.Header().Set("Content-Type", "application/json")
		if polls < 3 {
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "pending"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "approved",
			"user":   map[string]any{"id": "user-1", "identifier": "amadou"},
			"tokens": map[string]any{"access_token": "access", "refresh_token": "refresh"},
		})
	}))
	defer server.Close()

	cli, err := New(server.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	start := DeviceLoginStart{RequestID: "req-1", PollIntervalMS: 10}
	resp, err := cli.WaitForApproval(context.Background(), start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Tokens == nil || resp.Tokens.AccessToken != "access" {
		t.Fatalf("expected tokens, got %+v", resp)
	}
	if polls != 3 {
		t.Fatalf("expected three polls, got %d", polls)
	}
}

func TestWaitForApprovalMapsTerminalStates(t *testing.T) {
	cases := []struct {
		status string
		want   error
	}{
		{"denied", ErrLoginDenied},
		{"expired", ErrLoginExpired},
		{"superseded", ErrLoginSuperseded},
	}
	for _, tc := range cases {
		t.Run(tc.status, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(map[string]any{"status": tc.status})
			}))
			defer server.Close()

			cli, err := New(server.URL)
			if err != nil {
				t.Fatalf("new client: %v", err)
			}
			start := DeviceLoginStart{RequestID: "req-1", PollIntervalMS: 10}
			if _, err := cli.WaitForApproval(context.Background(), start); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestAPIErrorIncludesServerMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid credentials"})
	}))
	defer server.Close()

	cli, err := New(server.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = cli.Login(context.Background(), "amadou", "wrong")
	var apiErr APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnauthorized || apiErr.Message != "invalid credentials" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}
