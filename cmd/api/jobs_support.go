package main

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/signin-gateway/internal/auth"
	"github.com/yourusername/signin-gateway/internal/config"
	"github.com/yourusername/signin-gateway/internal/jobs"
)

// setupResetNotifier はリセット要求の配送経路を組み立てます。
// QUEUE_REDIS_URL が無い場合は同期配送（InlineNotifier）になります。
func setupResetNotifier(cfg *config.Config, logger *logrus.Logger) (auth.ResetNotifier, func(), error) {
	mailer := jobs.LogMailer{Logger: logger.WithField("component", "mailer")}
	if cfg.QueueRedisURL == "" {
		logger.Info("QUEUE_REDIS_URL is not set; password reset emails are delivered inline")
		return jobs.InlineNotifier{Mailer: mailer, TTL: cfg.ResetTTL()}, func() {}, nil
	}

	opt, err := redis.ParseURL(cfg.QueueRedisURL)
	if err != nil {
		return nil, nil, err
	}
	redisClient := redis.NewClient(opt)
	store := jobs.NewStore(redisClient, cfg.ResetTTL())

	manager, err := jobs.NewManager(cfg.QueueRedisURL, store, mailer, logger)
	if err != nil {
		_ = redisClient.Close()
		return nil, nil, err
	}
	manager.StartWorkers()

	shutdown := func() {
		if err := manager.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Warn("failed to shut down job manager")
		}
		_ = redisClient.Close()
	}
	return manager, shutdown, nil
}
