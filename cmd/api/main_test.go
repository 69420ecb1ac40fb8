package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/signin-gateway/internal/accounts"
	"github.com/yourusername/signin-gateway/internal/auth"
	"github.com/yourusername/signin-gateway/internal/config"
	"github.com/yourusername/signin-gateway/internal/jobs"
)

func TestSetupAccountsBackends(t *testing.T) {
	logger, _ := test.NewNullLogger()
	ctx := context.Background()
	mr := miniredis.RunT(t)

	cases := []*config.Config{
		{AccountStore: config.StoreMemory},
		{AccountStore: config.StoreRedis, RedisURL: "redis://" + mr.Addr() + "/0"},
		{AccountStore: config.StoreSQLite, SQLitePath: ":memory:"},
	}
	for _, cfg := range cases {
		t.Run(cfg.AccountStore, func(t *testing.T) {
			repo, closeFn, err := setupAccounts(ctx, cfg, logger)
			require.NoError(t, err)
			defer closeFn()

			_, ok := repo.(*accounts.CachedRepository)
			assert.True(t, ok)

			require.NoError(t, repo.Insert(ctx, &accounts.Account{ID: "acc-1", Email: "A@x.com", Name: "A"}))
			got, err := repo.FindByEmail(ctx, "a@X.com")
			require.NoError(t, err)
			assert.Equal(t, "acc-1", got.ID)
		})
	}

	_, _, err := setupAccounts(ctx, &config.Config{AccountStore: "mongo"}, logger)
	assert.Error(t, err)
}

func TestSetupResetNotifierInline(t *testing.T) {
	logger, _ := test.NewNullLogger()
	notifier, shutdown, err := setupResetNotifier(&config.Config{ResetExpireMinutes: 5}, logger)
	require.NoError(t, err)
	defer shutdown()

	inline, ok := notifier.(jobs.InlineNotifier)
	require.True(t, ok)
	assert.Equal(t, 5*time.Minute, inline.TTL)
}

func TestRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger, _ := test.NewNullLogger()
	registry := prometheus.NewRegistry()

	issuer, err := auth.NewJWTIssuer([]byte("secret"), time.Hour)
	require.NoError(t, err)
	svc, err := auth.NewService(auth.Options{
		Accounts: accounts.NewMemoryRepository(),
		Tokens:   issuer,
		Logger:   logger,
		Metrics:  auth.NewMetrics(registry),
	})
	require.NoError(t, err)

	router := gin.New()
	setupRoutes(router, &config.Config{APIBasePath: "/api/auth"}, auth.NewHandler(svc, logger), registry)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/config", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "signin_auth_requests_total"), rec.Body.String())
}
