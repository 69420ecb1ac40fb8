// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/signin-gateway/internal/auth"
	"github.com/yourusername/signin-gateway/internal/config"
	"github.com/yourusername/signin-gateway/internal/logging"
)

const devSecret = "signin-gateway-dev-secret-change-me"

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gin.SetMode(cfg.GinMode)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	repo, closeRepo, err := setupAccounts(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	notifier, shutdownJobs, err := setupResetNotifier(cfg, logger)
	if err != nil {
		return err
	}
	defer shutdownJobs()

	issuer, err := auth.NewJWTIssuer([]byte(secretOrDev(cfg.JWTSecret, "JWT_SECRET", logger)), cfg.JWTExpiration)
	if err != nil {
		return err
	}

	svc, err := auth.NewService(auth.Options{
		Accounts:  repo,
		Tokens:    issuer,
		Passwords: auth.BcryptHasher{},
		Notifier:  notifier,
		Redirect: &auth.RedirectConfig{
			AutoRedirect:  cfg.RedirectAuto,
			RedirectURL:   cfg.RedirectURL,
			RedirectDelay: cfg.RedirectDelayMS,
		},
		Logger:  logger,
		Metrics: auth.NewMetrics(registry),
	})
	if err != nil {
		return err
	}

	router := gin.New()
	router.Use(gin.Recovery(), logging.GinLogger(logger))

	// セッションストアの設定（Bearer を送れないクライアント向けにトークンをクッキーにも保持）
	store := cookie.NewStore([]byte(secretOrDev(cfg.SessionSecret, "SESSION_SECRET", logger)))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.JWTExpiration.Seconds()),
		HttpOnly: true,
		Secure:   cfg.GinMode == gin.ReleaseMode,
		SameSite: http.SameSiteStrictMode,
	})
	router.Use(sessions.Sessions(auth.SessionCookieName, store))

	// CORSミドルウェアの設定
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
		"Authorization",
	}
	router.Use(cors.New(corsConfig))

	setupRoutes(router, cfg, auth.NewHandler(svc, logger), registry)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Starting API server on %s (mode: %s, store: %s)", srv.Addr, cfg.GinMode, cfg.AccountStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// secretOrDev はローカル開発時のみ固定の開発用秘密鍵で補います（release では Validate が弾く）。
func secretOrDev(value, name string, logger logrus.FieldLogger) string {
	if value != "" {
		return value
	}
	logger.Warnf("%s is not set; using an insecure development value", name)
	return devSecret
}
