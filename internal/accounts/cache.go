package accounts

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedRepository は FindByID の結果を LRU キャッシュする Repository デコレーターです。
// アカウントは作成後に変更されないため、キャッシュの無効化は不要です。
type CachedRepository struct {
	next  Repository
	cache *lru.LRU[string, *Account]
}

// NewCachedRepository は CachedRepository を作成します。size<=0 のときは 1024 を使います。
func NewCachedRepository(next Repository, size int, ttl time.Duration) *CachedRepository {
	if size <= 0 {
		size = 1024
	}
	return &CachedRepository{
		next:  next,
		cache: lru.NewLRU[string, *Account](size, nil, ttl),
	}
}

// FindByEmail は下位のリポジトリにそのまま委譲し、結果をIDキャッシュにも載せます。
func (r *CachedRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	account, err := r.next.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	r.cache.Add(account.ID, cloneAccount(account))
	return account, nil
}

// FindByID はキャッシュを優先して参照します。
func (r *CachedRepository) FindByID(ctx context.Context, id string) (*Account, error) {
	if cached, ok := r.cache.Get(id); ok {
		return cloneAccount(cached), nil
	}
	account, err := r.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.cache.Add(id, cloneAccount(account))
	return account, nil
}

// Insert は下位のリポジトリに委譲します。
func (r *CachedRepository) Insert(ctx context.Context, account *Account) error {
	if err := r.next.Insert(ctx, account); err != nil {
		return err
	}
	r.cache.Add(account.ID, cloneAccount(account))
	return nil
}

// Len はキャッシュ済みのエントリ数を返します。
func (r *CachedRepository) Len() int {
	return r.cache.Len()
}
