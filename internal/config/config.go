// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// アカウントストアの種類。
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port        string `env:"PORT" envDefault:"8080"`
	GinMode     string `env:"GIN_MODE" envDefault:"debug"`
	APIBasePath string `env:"API_BASE_PATH" envDefault:"/api/auth"`

	// CORS設定（カンマ区切り）
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`

	// セッション・トークン設定
	SessionSecret string        `env:"SESSION_SECRET"`
	JWTSecret     string        `env:"JWT_SECRET"`
	JWTExpiration time.Duration `env:"JWT_EXPIRATION" envDefault:"168h"`

	// アカウントストア設定
	AccountStore     string        `env:"ACCOUNT_STORE" envDefault:"memory"`
	RedisURL         string        `env:"REDIS_URL" envDefault:"redis://127.0.0.1:6379/0"`
	DatabaseURL      string        `env:"DATABASE_URL"`
	SQLitePath       string        `env:"SQLITE_PATH" envDefault:"signin.db"`
	AccountCacheSize int           `env:"ACCOUNT_CACHE_SIZE" envDefault:"1024"`
	AccountCacheTTL  time.Duration `env:"ACCOUNT_CACHE_TTL" envDefault:"5m"`

	// リセット配送キュー設定（空ならキューを使わず同期配送）
	QueueRedisURL      string `env:"QUEUE_REDIS_URL"`
	ResetExpireMinutes int    `env:"RESET_EXPIRE_MINUTES" envDefault:"30"`

	// ログイン後のリダイレクト設定
	RedirectAuto    bool   `env:"REDIRECT_AUTO" envDefault:"true"`
	RedirectURL     string `env:"REDIRECT_URL" envDefault:"https://example.com/"`
	RedirectDelayMS int    `env:"REDIRECT_DELAY_MS" envDefault:"500"`

	// ログ設定
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	loadEnvFile()
	return Parse()
}

// Parse は現在の環境変数だけから設定を組み立てて検証します。
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.AccountStore = strings.ToLower(strings.TrimSpace(cfg.AccountStore))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	switch c.AccountStore {
	case StoreMemory, StoreRedis, StoreSQLite:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when ACCOUNT_STORE=postgres")
		}
	default:
		return fmt.Errorf("unsupported ACCOUNT_STORE %q", c.AccountStore)
	}
	if c.JWTExpiration <= 0 {
		return fmt.Errorf("JWT_EXPIRATION must be positive")
	}
	if c.RedirectDelayMS < 0 {
		return fmt.Errorf("REDIRECT_DELAY_MS must not be negative")
	}
	if c.RedirectAuto && strings.TrimSpace(c.RedirectURL) == "" {
		return fmt.Errorf("REDIRECT_URL is required when REDIRECT_AUTO=true")
	}

	// ローカル開発では秘密鍵は任意（起動時に警告付きで開発用の値を使う）
	if c.GinMode == "release" {
		if c.SessionSecret == "" {
			return fmt.Errorf("SESSION_SECRET is required in release mode")
		}
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in release mode")
		}
		if c.AccountStore == StoreMemory {
			return fmt.Errorf("ACCOUNT_STORE=memory is not allowed in release mode")
		}
	}

	return nil
}

// ResetTTL はリセット要求の有効期限を返します。
func (c *Config) ResetTTL() time.Duration {
	if c.ResetExpireMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.ResetExpireMinutes) * time.Minute
}
