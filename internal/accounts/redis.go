package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	accountKeyPrefix = "account:"
	emailKeyPrefix   = "account:email:"
)

// insertScript はメールインデックスと本体を 1 回の呼び出しで書き込みます。
// KEYS[1]=メールインデックス, KEYS[2]=本体, ARGV[1]=ID, ARGV[2]=本体 JSON
var insertScript = redis.NewScript(`
if redis.call("SETNX", KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call("SET", KEYS[2], ARGV[2])
return 1
`)

// RedisRepository はアカウントを Redis に保存します。
// メールアドレスのインデックスは SETNX で確保するため、一意性は Redis 側で保証されます。
type RedisRepository struct {
	rdb *redis.Client
}

// NewRedisRepository は RedisRepository を作成します。
func NewRedisRepository(rdb *redis.Client) *RedisRepository {
	return &RedisRepository{rdb: rdb}
}

// FindByEmail はメールインデックス経由でアカウントを取得します。
func (r *RedisRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return nil, ErrNotFound
	}
	id, err := r.rdb.Get(ctx, emailKey(normalized)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis error: %w", err)
	}
	return r.FindByID(ctx, id)
}

// FindByID はアカウント本体を取得します。
func (r *RedisRepository) FindByID(ctx context.Context, id string) (*Account, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	data, err := r.rdb.Get(ctx, accountKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis error: %w", err)
	}
	var account Account
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, fmt.Errorf("decode account %s: %w", id, err)
	}
	return &account, nil
}

// Insert はメールインデックスと本体をスクリプトでまとめて書き込みます。
func (r *RedisRepository) Insert(ctx context.Context, account *Account) error {
	if err := validateForInsert(account); err != nil {
		return err
	}
	account.Email = NormalizeEmail(account.Email)

	payload, err := json.Marshal(account)
	if err != nil {
		return err
	}

	keys := []string{emailKey(account.Email), accountKey(account.ID)}
	inserted, err := insertScript.Run(ctx, r.rdb, keys, account.ID, payload).Int()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	if inserted == 0 {
		return ErrEmailTaken
	}
	return nil
}

func accountKey(id string) string {
	return accountKeyPrefix + id
}

func emailKey(email string) string {
	return emailKeyPrefix + email
}
