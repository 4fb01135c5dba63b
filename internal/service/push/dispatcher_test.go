package push

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Myahse/Intranet-Djogana-sub000/internal/domain"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type pushDeviceRepoMock struct {
	devices []domain.PushDevice
	listErr error
}

func (m pushDeviceRepoMock) UpsertPushDevice(context.Context, *domain.PushDevice) error { return nil }

func (m pushDeviceRepoMock) DeletePushDevice(context.Context, string, string) error { return nil }

func (m pushDeviceRepoMock) ListPushDevicesByUser(context.Context, string) ([]domain.PushDevice, error) {
	return m.devices, m.listErr
}

func testRequest() domain.DeviceLoginRequest {
	now := time.Now().UTC()
	return domain.DeviceLoginRequest{
		ID:        "req-1",
		UserID:    "user-1",
		Code:      "482913",
		Status:    domain.DeviceLoginStatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(15 * time.Second),
	}
}

func TestLoginRequestedDeliversToAllDevices(t *testing.T) {
	var captured map[string]any
	var authHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	devices := pushDeviceRepoMock{devices: []domain.PushDevice{
		{UserID: "user-1", Token: "ExponentPushToken[aaa]", Platform: "android"},
		{UserID: "user-1", Token: "ExponentPushToken[bbb]", Platform: "ios"},
	}}
	dispatcher := NewGatewayDispatcher(devices, newLogger(), server.URL, "gw-secret")

	if err := dispatcher.LoginRequested(context.Background(), testRequest()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if authHeader != "Bearer gw-secret" {
		t.Fatalf("unexpected auth header: %q", authHeader)
	}
	tokens, ok := captured["to"].([]any)
	if !ok || len(tokens) != 2 {
		t.Fatalf("expected two recipient tokens, got %v", captured["to"])
	}
	data, ok := captured["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data payload, got %v", captured["data"])
	}
	if data["request_id"] != "req-1" || data["code"] != "482913" {
		t.Fatalf("unexpected data payload: %v", data)
	}
}

func TestLoginRequestedNoDevices(t *testing.T) {
	dispatcher := NewGatewayDispatcher(pushDeviceRepoMock{}, newLogger(), "http://unreachable.invalid", "")
	err := dispatcher.LoginRequested(context.Background(), testRequest())
	if !errors.Is(err, ErrNoDevices) {
		t.Fatalf("expected ErrNoDevices, got %v", err)
	}
}

func TestLoginRequestedGatewayFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	devices := pushDeviceRepoMock{devices: []domain.PushDevice{{UserID: "user-1", Token: "tok"}}}
	dispatcher := NewGatewayDispatcher(devices, newLogger(), server.URL, "")
	if err := dispatcher.LoginRequested(context.Background(), testRequest()); err == nil {
		t.Fatal("expected error for gateway failure status")
	}
}
