package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/Myahse/Intranet-Djogana-sub000/internal/domain"
	"github.com/Myahse/Intranet-Djogana-sub000/internal/repository"
)

// ErrNoDevices indicates the user has no registered push tokens.
var ErrNoDevices = errors.New("push: no registered devices")

// GatewayDispatcher delivers login-request notifications to the owner's
// registered mobile devices through an Expo-compatible HTTP push gateway.
type GatewayDispatcher struct {
	devices    repository.PushDeviceRepository
	httpClient *http.Client
	logger     *slog.Logger
	url        string
	token      string
}

// NewGatewayDispatcher constructs a dispatcher for the given gateway URL.
func NewGatewayDispatcher(devices repository.PushDeviceRepository, logger *slog.Logger, url, token string) *GatewayDispatcher {
	return &GatewayDispatcher{
		devices:    devices,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		logger:     logger,
		url:        strings.TrimSpace(url),
		token:      strings.TrimSpace(token),
	}
}

// LoginRequested fans a notification out to every registered device of the
// request owner.
func (d *GatewayDispatcher) LoginRequested(ctx context.Context, req domain.DeviceLoginRequest) error {
	devices, err := d.devices.ListPushDevicesByUser(ctx, req.UserID)
	if err != nil {
		return fmt.Errorf("list push devices: %w", err)
	}
	if len(devices) == 0 {
		return ErrNoDevices
	}
	tokens := make([]string, 0, len(devices))
	for _, device := range devices {
		tokens = append(tokens, device.Token)
	}
	payload := map[string]any{
		"to":    tokens,
		"title": "Connexion en attente",
		"body":  fmt.Sprintf("Code %s - approuvez la connexion depuis votre mobile", req.Code),
		"data": map[string]any{
			"type":       "device_login",
			"request_id": req.ID,
			"code":       req.Code,
			"expires_at": req.ExpiresAt.Format(time.RFC3339Nano),
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode push payload: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create push request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if d.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+d.token)
	}
	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("deliver push: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("push gateway responded %d", resp.StatusCode)
	}
	d.logger.Info("push dispatched", "request_id", req.ID, "devices", len(tokens))
	return nil
}

// NopDispatcher drops notifications. Used when no gateway is configured.
type NopDispatcher struct{}

// LoginRequested implements the notifier contract without side effects.
func (NopDispatcher) LoginRequested(context.Context, domain.DeviceLoginRequest) error {
	return nil
}
