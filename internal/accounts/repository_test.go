package accounts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runRepositoryContract は全実装が満たすべき振る舞いを検証します。
func runRepositoryContract(t *testing.T, repo Repository) {
	t.Helper()
	ctx := context.Background()
	created := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)

	t.Run("insert and find by email ignoring case", func(t *testing.T) {
		err := repo.Insert(ctx, &Account{
			ID:           "acc-1",
			Email:        "  Sarah.Johnson@TechCorp.com ",
			Name:         "Sarah Johnson",
			PasswordHash: "hash-1",
			CreatedAt:    created,
		})
		require.NoError(t, err)

		got, err := repo.FindByEmail(ctx, "SARAH.JOHNSON@techcorp.com")
		require.NoError(t, err)
		assert.Equal(t, "acc-1", got.ID)
		assert.Equal(t, "sarah.johnson@techcorp.com", got.Email)
		assert.Equal(t, "Sarah Johnson", got.Name)
		assert.Equal(t, "hash-1", got.PasswordHash)
		assert.True(t, created.Equal(got.CreatedAt), "createdAt = %v", got.CreatedAt)
	})

	t.Run("find by id", func(t *testing.T) {
		got, err := repo.FindByID(ctx, "acc-1")
		require.NoError(t, err)
		assert.Equal(t, "sarah.johnson@techcorp.com", got.Email)
	})

	t.Run("duplicate email with different casing is rejected", func(t *testing.T) {
		err := repo.Insert(ctx, &Account{
			ID:           "acc-2",
			Email:        "sarah.johnson@TECHCORP.com",
			Name:         "Impostor",
			PasswordHash: "hash-2",
			CreatedAt:    created,
		})
		assert.ErrorIs(t, err, ErrEmailTaken)

		_, err = repo.FindByID(ctx, "acc-2")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unknown lookups", func(t *testing.T) {
		_, err := repo.FindByEmail(ctx, "nobody@nowhere.com")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = repo.FindByID(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("missing fields", func(t *testing.T) {
		assert.Error(t, repo.Insert(ctx, nil))
		assert.Error(t, repo.Insert(ctx, &Account{Email: "x@y.z"}))
		assert.Error(t, repo.Insert(ctx, &Account{ID: "acc-3", Email: "  "}))
	})
}

func TestMemoryRepository(t *testing.T) {
	runRepositoryContract(t, NewMemoryRepository())
}

func TestMemoryRepositoryConcurrentInsertKeepsEmailUnique(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := repo.Insert(ctx, &Account{
				ID:    "acc-" + string(rune('a'+i)),
				Email: "race@example.com",
			})
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			} else if !errors.Is(err, ErrEmailTaken) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, success)
}

func TestMemoryRepositoryReturnsCopies(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, &Account{ID: "acc-1", Email: "a@x.com", Name: "A"}))

	got, err := repo.FindByID(ctx, "acc-1")
	require.NoError(t, err)
	got.Name = "mutated"

	again, err := repo.FindByID(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "A", again.Name)
}

func TestRedisRepository(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	repo := NewRedisRepository(rdb)
	runRepositoryContract(t, repo)

	assert.True(t, mr.Exists("account:acc-1"))
	id, err := mr.Get("account:email:sarah.johnson@techcorp.com")
	require.NoError(t, err)
	assert.Equal(t, "acc-1", id)
}

func TestRedisRepositoryDuplicateLeavesNoBody(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	repo := NewRedisRepository(rdb)
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, &Account{ID: "acc-1", Email: "a@x.com", Name: "A"}))
	err := repo.Insert(ctx, &Account{ID: "acc-2", Email: "A@X.COM", Name: "B"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	assert.True(t, mr.Exists("account:acc-1"))
	assert.False(t, mr.Exists("account:acc-2"))
	id, err := mr.Get("account:email:a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "acc-1", id)
}

func TestRedisRepositoryCorruptPayload(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	require.NoError(t, mr.Set("account:broken", "{not-json"))
	_, err := NewRedisRepository(rdb).FindByID(context.Background(), "broken")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestSQLiteRepository(t *testing.T) {
	repo, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	runRepositoryContract(t, repo)
}

func TestSQLiteRepositoryDuplicateIDIsNotEmailTaken(t *testing.T) {
	repo, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, &Account{ID: "acc-1", Email: "a@x.com", Name: "A"}))
	err = repo.Insert(ctx, &Account{ID: "acc-1", Email: "b@x.com", Name: "B"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmailTaken)

	err = repo.Insert(ctx, &Account{ID: "acc-2", Email: "A@x.com", Name: "B"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestCachedRepository(t *testing.T) {
	inner := NewMemoryRepository()
	cached := NewCachedRepository(inner, 8, time.Minute)
	runRepositoryContract(t, cached)
	assert.Equal(t, 1, cached.Len())
}

func TestCachedRepositoryServesFromCache(t *testing.T) {
	inner := &countingRepository{Repository: NewMemoryRepository()}
	cached := NewCachedRepository(inner, 8, time.Minute)
	ctx := context.Background()

	require.NoError(t, cached.Insert(ctx, &Account{ID: "acc-1", Email: "a@x.com"}))
	for i := 0; i < 3; i++ {
		got, err := cached.FindByID(ctx, "acc-1")
		require.NoError(t, err)
		assert.Equal(t, "a@x.com", got.Email)
	}
	assert.Equal(t, 0, inner.findByID)

	_, err := cached.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, inner.findByID)
}

type countingRepository struct {
	Repository
	findByID int
}

func (r *countingRepository) FindByID(ctx context.Context, id string) (*Account, error) {
	r.findByID++
	return r.Repository.FindByID(ctx, id)
}
