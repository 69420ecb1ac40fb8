package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb, ttl), mr
}

func TestStoreUpsertAndGet(t *testing.T) {
	store, mr := newTestStore(t, 30*time.Minute)
	ctx := context.Background()

	created := time.Date(2024, 2, 20, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.Upsert(ctx, &Record{
		RequestID: "req-1",
		AccountID: "acc-1",
		Email:     "a@x.com",
		Status:    StatusQueued,
		CreatedAt: created,
	}))

	got, err := store.Get(ctx, "req-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, StatusQueued, got.Status)
	assert.True(t, created.Add(30*time.Minute).Equal(got.ExpiresAt), "expiresAt = %v", got.ExpiresAt)
	assert.Equal(t, 30*time.Minute, mr.TTL("reset:req-1"))
}

func TestStoreGetMissing(t *testing.T) {
	store, _ := newTestStore(t, time.Minute)

	got, err := store.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = store.Get(context.Background(), "")
	assert.Error(t, err)
}

func TestStoreMarkSentKeepsTTL(t *testing.T) {
	store, mr := newTestStore(t, 10*time.Minute)
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, &Record{RequestID: "req-1", Status: StatusQueued}))

	mr.FastForward(4 * time.Minute)
	require.NoError(t, store.MarkSent(ctx, "req-1"))

	got, err := store.Get(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, StatusSent, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, 6*time.Minute, mr.TTL("reset:req-1"))
}

func TestStoreMarkFailed(t *testing.T) {
	store, _ := newTestStore(t, time.Minute)
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, &Record{RequestID: "req-1", Status: StatusQueued}))

	require.NoError(t, store.MarkFailed(ctx, "req-1", &ErrorInfo{Code: "DELIVERY_FAILED", Message: "smtp down"}))

	got, err := store.Get(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	require.NotNil(t, got.Error)
	assert.Equal(t, "smtp down", got.Error.Message)
}

func TestStoreUpdateMissing(t *testing.T) {
	store, _ := newTestStore(t, time.Minute)
	err := store.MarkSent(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestStoreUpsertValidation(t *testing.T) {
	store, _ := newTestStore(t, time.Minute)
	assert.Error(t, store.Upsert(context.Background(), nil))
	assert.Error(t, store.Upsert(context.Background(), &Record{}))
}
