package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Myahse/Intranet-Djogana-sub000/internal/app/migrate"
	httpx "github.com/Myahse/Intranet-Djogana-sub000/internal/http"
	"github.com/Myahse/Intranet-Djogana-sub000/internal/repository/postgres"
	"github.com/Myahse/Intranet-Djogana-sub000/internal/service/auth"
	"github.com/Myahse/Intranet-Djogana-sub000/internal/service/document"
	"github.com/Myahse/Intranet-Djogana-sub000/internal/service/pairing"
	"github.com/Myahse/Intranet-Djogana-sub000/internal/service/push"
	"github.com/Myahse/Intranet-Djogana-sub000/internal/service/user"
	"github.com/Myahse/Intranet-Djogana-sub000/internal/ws"
	"github.com/Myahse/Intranet-Djogana-sub000/pkg/config"
	"github.com/Myahse/Intranet-Djogana-sub000/pkg/logger"
)

func main() {
	cfg := config.LoadAPIConfig()
	log := logger.New("api", slog.LevelInfo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	defer runner.Close()
	if err := runner.Ping(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	if err := runner.Ensure(ctx); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	repo := postgres.New(pool)
	hub := ws.NewHub()

	var notifier pairing.Notifier = push.NopDispatcher{}
	if strings.TrimSpace(cfg.PushGatewayURL) != "" {
		notifier = push.NewGatewayDispatcher(repo, log, cfg.PushGatewayURL, cfg.PushGatewayToken)
	}

	authSvc := auth.New(repo, log, cfg)
	userSvc := user.New(repo, log)
	pairingSvc := pairing.New(repo, repo, notifier, authSvc, hub, log, cfg)
	documentSvc := document.New(repo, repo, log)

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter = redisLimiter
		}
	}

	router := httpx.NewRouter(log, cfg, authSvc, userSvc, pairingSvc, documentSvc, repo, hub, limiter, pool.Ping)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
