package main

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/signin-gateway/internal/accounts"
	"github.com/yourusername/signin-gateway/internal/config"
)

// setupAccounts は ACCOUNT_STORE に応じたアカウントストアを組み立て、LRU キャッシュで包みます。
func setupAccounts(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (accounts.Repository, func(), error) {
	var (
		base    accounts.Repository
		closeFn = func() {}
	)

	switch cfg.AccountStore {
	case config.StoreMemory:
		logger.Warn("using in-memory account store; accounts are lost on restart")
		base = accounts.NewMemoryRepository()
	case config.StoreRedis:
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opt)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		base = accounts.NewRedisRepository(rdb)
		closeFn = func() { _ = rdb.Close() }
	case config.StoreSQLite:
		repo, err := accounts.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		base = repo
		closeFn = func() { _ = repo.Close() }
	case config.StorePostgres:
		repo, err := accounts.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		base = repo
		closeFn = func() { _ = repo.Close() }
	default:
		return nil, nil, fmt.Errorf("unsupported account store %q", cfg.AccountStore)
	}

	return accounts.NewCachedRepository(base, cfg.AccountCacheSize, cfg.AccountCacheTTL), closeFn, nil
}
