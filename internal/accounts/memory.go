package accounts

import (
	"context"
	"sync"
)

// MemoryRepository はプロセス内でアカウントを保持する実装です（開発・テスト用）。
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]*Account
	byEmail map[string]string
}

// NewMemoryRepository は空の MemoryRepository を作成します。
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[string]*Account),
		byEmail: make(map[string]string),
	}
}

// FindByEmail はメールアドレス（大文字小文字を区別しない）でアカウントを検索します。
func (r *MemoryRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneAccount(r.byID[id]), nil
}

// FindByID はIDでアカウントを検索します。
func (r *MemoryRepository) FindByID(ctx context.Context, id string) (*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneAccount(account), nil
}

// Insert はアカウントを追加します。
func (r *MemoryRepository) Insert(ctx context.Context, account *Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateForInsert(account); err != nil {
		return err
	}
	account.Email = NormalizeEmail(account.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[account.Email]; exists {
		return ErrEmailTaken
	}
	r.byID[account.ID] = cloneAccount(account)
	r.byEmail[account.Email] = account.ID
	return nil
}

func cloneAccount(a *Account) *Account {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}
