package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Myahse/Intranet-Djogana-sub000/internal/domain"
	"github.com/Myahse/Intranet-Djogana-sub000/internal/service/auth"
	"github.com/Myahse/Intranet-Djogana-sub000/internal/service/pairing"
	"github.com/Myahse/Intranet-Djogana-sub000/internal/ws"
)

// handleDeviceLoginCreate opens a login request for a credential-verified user.
// The web client receives the display code and polling parameters; session
// tokens come later through polling once the mobile approves.
func (r *Router) handleDeviceLoginCreate(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	account, err := r.auth.Verify(req.Context(), payload.Identifier, payload.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not verify credentials")
		return
	}
	request, err := r.pairing.Create(req.Context(), account.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not create login request")
		return
	}
	r.recordLoginOutcome("created")
	writeJSON(w, http.StatusCreated, map[string]any{
		"request_id":       request.ID,
		"code":             request.Code,
		"status":           request.Status,
		"created_at":       request.CreatedAt.Format(time.RFC3339Nano),
		"expires_at":       request.ExpiresAt.Format(time.RFC3339Nano),
		"poll_interval_ms": r.cfg.PairingPollInterval.Milliseconds(),
		"cooldown_seconds": int(r.cfg.PairingCooldown.Seconds()),
	})
}

func (r *Router) handleDeviceLoginSubroutes(w http.ResponseWriter, req *http.Request) {
	trimmed := strings.TrimPrefix(req.URL.Path, "/device-login/")
	parts := strings.Split(trimmed, "/")
	requestID := parts[0]
	if requestID == "" {
		r.notFound(w)
		return
	}
	switch {
	case len(parts) == 1:
		r.withRateLimit("device-login-poll", rateLimitPoll, rateWindowDefault, rateLimitKeyIP, func(w http.ResponseWriter, req *http.Request) {
			r.handleDeviceLoginPoll(w, req, requestID)
		})(w, req)
	case len(parts) == 2 && parts[1] == "approve":
		r.handlerAuthRate("device-login-resolve", rateLimitUserWrite, rateWindowDefault, func(w http.ResponseWriter, req *http.Request) {
			r.handleDeviceLoginResolve(w, req, requestID, domain.DeviceLoginStatusApproved)
		})(w, req)
	case len(parts) == 2 && parts[1] == "deny":
		r.handlerAuthRate("device-login-resolve", rateLimitUserWrite, rateWindowDefault, func(w http.ResponseWriter, req *http.Request) {
			r.handleDeviceLoginResolve(w, req, requestID, domain.DeviceLoginStatusDenied)
		})(w, req)
	case len(parts) == 2 && parts[1] == "stream":
		r.withRateLimit("device-login-stream", rateLimitWebsocket, rateWindowRealtime, rateLimitKeyIP, func(w http.ResponseWriter, req *http.Request) {
			r.handleDeviceLoginStream(w, req, requestID)
		})(w, req)
	default:
		r.notFound(w)
	}
}

// handleDeviceLoginPoll reports request state to the waiting web client. The
// response carries the session tokens exactly once, on the first poll that
// observes the approval.
func (r *Router) handleDeviceLoginPoll(w http.ResponseWriter, req *http.Request, requestID string) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	result, err := r.pairing.Poll(req.Context(), requestID)
	if err != nil {
		if errors.Is(err, pairing.ErrNotFound) {
			r.notFound(w)
			return
		}
		writeError(w, http.StatusInternalServerError, "could not poll login request")
		return
	}
	payload := map[string]any{"status": result.Status}
	if result.User != nil {
		payload["user"] = userPayload(result.User)
	}
	if result.Tokens != nil {
		payload["tokens"] = result.Tokens
	}
	writeJSON(w, http.StatusOK, payload)
}

// handleDeviceLoginResolve applies an approve or deny decision from the
// owner's mobile session. Requests owned by other users are indistinguishable
// from unknown ids.
func (r *Router) handleDeviceLoginResolve(w http.ResponseWriter, req *http.Request, requestID, status string) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for device login resolve", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	var payload struct {
		DeviceName string `json:"device_name"`
	}
	if req.Body != nil {
		_ = json.NewDecoder(req.Body).Decode(&payload)
	}
	actedDevice := strings.TrimSpace(payload.DeviceName)
	if actedDevice == "" {
		actedDevice = strings.TrimSpace(req.Header.Get("X-Device-Name"))
	}

	var (
		updated *domain.DeviceLoginRequest
		err     error
	)
	if status == domain.DeviceLoginStatusApproved {
		updated, err = r.pairing.Approve(req.Context(), requestID, info.UserID, actedDevice)
	} else {
		updated, err = r.pairing.Deny(req.Context(), requestID, info.UserID, actedDevice)
	}
	if err != nil {
		switch {
		case errors.Is(err, pairing.ErrNotFound), errors.Is(err, pairing.ErrForbidden):
			r.notFound(w)
		case errors.Is(err, pairing.ErrAlreadyResolved):
			writeJSON(w, http.StatusConflict, map[string]string{
				"error":  "request already resolved",
				"status": updated.Status,
			})
		default:
			writeError(w, http.StatusInternalServerError, "could not resolve login request")
		}
		return
	}
	r.recordLoginOutcome(updated.Status)
	response := map[string]any{
		"request_id": updated.ID,
		"status":     updated.Status,
	}
	if updated.ResolvedAt != nil {
		response["resolved_at"] = updated.ResolvedAt.Format(time.RFC3339Nano)
	}
	writeJSON(w, http.StatusOK, response)
}

// handleDeviceLoginStream pushes state changes for one request over SSE so
// the web dialog can react without waiting for the next poll tick. Tokens are
// never delivered on this channel; the client still claims them via polling.
func (r *Router) handleDeviceLoginStream(w http.ResponseWriter, req *http.Request, requestID string) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	request, err := r.pairing.Lookup(req.Context(), requestID)
	if err != nil {
		if errors.Is(err, pairing.ErrNotFound) {
			r.notFound(w)
			return
		}
		writeError(w, http.StatusInternalServerError, "could not open stream")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	client := ws.NewSSEClient(w, flusher, r.logger)
	snapshot, _ := json.Marshal(map[string]any{
		"type":       "device_login",
		"request_id": request.ID,
		"code":       request.Code,
		"status":     request.Status,
		"created_at": request.CreatedAt.Format(time.RFC3339Nano),
		"expires_at": request.ExpiresAt.Format(time.RFC3339Nano),
	})
	if err := client.Send(snapshot); err != nil {
		return
	}
	if request.Terminal() {
		return
	}

	r.hub.Register(request.UserID, client)
	defer func() {
		r.hub.Unregister(request.UserID, client)
		client.Close()
	}()

	heartbeat := time.NewTicker(streamHeartbeatPeriod)
	defer heartbeat.Stop()
	deadline := time.NewTimer(streamMaxDuration)
	defer deadline.Stop()
	for {
		select {
		case <-req.Context().Done():
			return
		case <-deadline.C:
			return
		case <-heartbeat.C:
			if err := client.Heartbeat(); err != nil {
				return
			}
		}
	}
}

// handleDeviceLoginPending lists the caller's live pending requests for the
// mobile approval screen.
func (r *Router) handleDeviceLoginPending(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for pending list", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	requests, err := r.pairing.ListPending(req.Context(), info.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not list pending requests")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": deviceLoginPayloads(requests)})
}

// handleDeviceLoginHistory lists the caller's resolved requests, newest first.
func (r *Router) handleDeviceLoginHistory(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for history list", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	requests, err := r.pairing.History(req.Context(), info.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not list request history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": deviceLoginPayloads(requests)})
}

func deviceLoginPayloads(requests []domain.DeviceLoginRequest) []map[string]any {
	out := make([]map[string]any, 0, len(requests))
	for _, request := range requests {
		entry := map[string]any{
			"request_id": request.ID,
			"code":       request.Code,
			"status":     request.Status,
			"created_at": request.CreatedAt.Format(time.RFC3339Nano),
			"expires_at": request.ExpiresAt.Format(time.RFC3339Nano),
		}
		if request.ResolvedAt != nil {
			entry["resolved_at"] = request.ResolvedAt.Format(time.RFC3339Nano)
		}
		if request.ActedDevice != "" {
			entry["acted_device"] = request.ActedDevice
		}
		out = append(out, entry)
	}
	return out
}

func userPayload(account *domain.User) map[string]any {
	payload := map[string]any{
		"id":           account.ID,
		"identifier":   account.Identifier,
		"display_name": account.DisplayName,
		"role":         account.Role,
	}
	if account.DirectionID != nil {
		payload["direction_id"] = *account.DirectionID
	}
	return payload
}
