package httpx

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Myahse/Intranet-Djogana-sub000/internal/repository"
	"github.com/Myahse/Intranet-Djogana-sub000/internal/service/auth"
	"github.com/Myahse/Intranet-Djogana-sub000/internal/service/document"
	"github.com/Myahse/Intranet-Djogana-sub000/internal/service/pairing"
	"github.com/Myahse/Intranet-Djogana-sub000/internal/service/user"
	"github.com/Myahse/Intranet-Djogana-sub000/internal/ws"
	"github.com/Myahse/Intranet-Djogana-sub000/pkg/config"
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux         *http.ServeMux
	logger      *slog.Logger
	cfg         config.APIConfig
	auth        auth.Service
	users       user.Service
	pairing     pairing.Service
	documents   document.Service
	pushDevices repository.PushDeviceRepository
	hub         *ws.Hub
	upgrader    websocket.Upgrader
	limiter     RateLimiter
	dbHealth    func(context.Context) error

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
	loginOutcomes      *prometheus.CounterVec
}

const (
	rateWindowDefault     = time.Minute
	rateWindowRealtime    = 30 * time.Second
	rateLimitLogin        = 12
	rateLimitDeviceLogin  = 10
	rateLimitPoll         = 240
	rateLimitUserWrite    = 60
	rateLimitUserRead     = 120
	rateLimitWebsocket    = 30
	healthCheckTimeout    = 2 * time.Second
	streamHeartbeatPeriod = 10 * time.Second
	streamMaxDuration     = 2 * time.Minute
)

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, cfg config.APIConfig, authSvc auth.Service, userSvc user.Service, pairingSvc pairing.Service, documentSvc document.Service, pushDevices repository.PushDeviceRepository, hub *ws.Hub, limiter RateLimiter, dbHealth func(context.Context) error) *Router {
	r := &Router{
		mux:         http.NewServeMux(),
		logger:      logger,
		cfg:         cfg,
		auth:        authSvc,
		users:       userSvc,
		pairing:     pairingSvc,
		documents:   documentSvc,
		pushDevices: pushDevices,
		hub:         hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:  limiter,
		dbHealth: dbHealth,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit("healthz", r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/auth/login", r.audit("auth-login", r.withRateLimit("auth-login", rateLimitLogin, rateWindowDefault, rateLimitKeyIP, r.handleLogin)))
	r.mux.HandleFunc("/device-login", r.audit("device-login-create", r.withRateLimit("device-login-create", rateLimitDeviceLogin, rateWindowDefault, rateLimitKeyIP, r.handleDeviceLoginCreate)))
	r.mux.HandleFunc("/device-login/pending", r.audit("device-login-pending", r.handlerAuthRate("device-login-pending", rateLimitUserRead, rateWindowDefault, r.handleDeviceLoginPending)))
	r.mux.HandleFunc("/device-login/history", r.audit("device-login-history", r.handlerAuthRate("device-login-history", rateLimitUserRead, rateWindowDefault, r.handleDeviceLoginHistory)))
	r.mux.HandleFunc("/device-login/", r.audit("device-login", r.handleDeviceLoginSubroutes))
	r.mux.HandleFunc("/users", r.audit("users", r.handleUsers))
	r.mux.HandleFunc("/directions", r.audit("directions", r.handleDirections))
	r.mux.HandleFunc("/directions/", r.audit("direction-folders", r.handlerAuthRate("direction-folders", rateLimitUserWrite, rateWindowDefault, r.handleDirectionSubroutes)))
	r.mux.HandleFunc("/folders/", r.audit("folder-documents", r.handlerAuthRate("folder-documents", rateLimitUserWrite, rateWindowDefault, r.handleFolderSubroutes)))
	r.mux.HandleFunc("/documents/", r.audit("documents", r.handlerAuthRate("documents", rateLimitUserWrite, rateWindowDefault, r.handleDocumentSubroutes)))
	r.mux.HandleFunc("/push-devices", r.audit("push-devices", r.handlerAuthRate("push-devices", rateLimitUserWrite, rateWindowDefault, r.handlePushDevices)))
	r.mux.HandleFunc("/ws/pairing", r.audit("ws-pairing", r.handlerAuthRate("ws-pairing", rateLimitWebsocket, rateWindowRealtime, r.handlePairingWS)))
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
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
	account, tokens, err := r.auth.Login(req.Context(), payload.Identifier, payload.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":   userPayload(account),
		"tokens": tokens,
	})
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

func (r *Router) handlePairingWS(w http.ResponseWriter, req *http.Request) {
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for pairing websocket", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	r.hub.Register(info.UserID, client)
	go func() {
		defer func() {
			r.hub.Unregister(info.UserID, client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, route, status, duration)
		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if info, ok := authInfoFromContext(ctx); ok {
			actor = "user"
			fields = append(fields, "user_id", info.UserID)
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func (sr *statusRecorder) Push(target string, opts *http.PushOptions) error {
	if p, ok := sr.ResponseWriter.(http.Pusher); ok {
		return p.Push(target, opts)
	}
	return http.ErrNotSupported
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) applyRateHeaders(w http.ResponseWriter, limit int, decision rateDecision) {
	if limit <= 0 {
		return
	}
	remaining := limit - decision.count
	if remaining < 0 {
		remaining = 0
	}
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !decision.windowEnd.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.windowEnd.Unix(), 10))
	}
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
