package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	resetKeyPrefix = "reset:"
	maxTxRetries   = 5
)

// ErrRecordNotFound は期限切れ等でレコードが存在しない場合に返されます。
var ErrRecordNotFound = errors.New("reset request not found")

// Store はリセット要求の状態を Redis に保存します。
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStore は Store を作成します。
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{
		rdb: rdb,
		ttl: ttl,
	}
}

// Get はレコードを取得します。存在しない場合は (nil, nil) を返します。
func (s *Store) Get(ctx context.Context, requestID string) (*Record, error) {
	if requestID == "" {
		return nil, fmt.Errorf("requestID is required")
	}
	data, err := s.rdb.Get(ctx, resetKey(requestID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Upsert はレコードを保存します（存在しない場合は作成）。
func (s *Store) Upsert(ctx context.Context, record *Record) error {
	if record == nil {
		return fmt.Errorf("record is nil")
	}
	if record.RequestID == "" {
		return fmt.Errorf("record.RequestID is required")
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	if record.ExpiresAt.IsZero() && s.ttl > 0 {
		record.ExpiresAt = record.CreatedAt.Add(s.ttl)
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, resetKey(record.RequestID), payload, s.ttl).Err()
}

// MarkSent は配送完了を記録します。
func (s *Store) MarkSent(ctx context.Context, requestID string) error {
	return s.updatePartial(ctx, requestID, func(record *Record) {
		record.Status = StatusSent
		record.Attempts++
		record.Error = nil
	})
}

// MarkFailed は配送失敗を記録します。
func (s *Store) MarkFailed(ctx context.Context, requestID string, errInfo *ErrorInfo) error {
	return s.updatePartial(ctx, requestID, func(record *Record) {
		record.Status = StatusFailed
		record.Attempts++
		if errInfo != nil {
			record.Error = errInfo
		}
	})
}

// updatePartial は WATCH による楽観ロックでレコードを書き換えます。残りTTLは維持します。
func (s *Store) updatePartial(ctx context.Context, requestID string, mutate func(*Record)) error {
	key := resetKey(requestID)
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return fmt.Errorf("%w: %s", ErrRecordNotFound, requestID)
			}
			return err
		}
		var record Record
		if err := json.Unmarshal(data, &record); err != nil {
			return err
		}
		mutate(&record)
		record.UpdatedAt = time.Now().UTC()
		payload, err := json.Marshal(&record)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetArgs(ctx, key, payload, redis.SetArgs{KeepTTL: true})
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return redis.TxFailedErr
}

func resetKey(id string) string {
	return resetKeyPrefix + id
}
