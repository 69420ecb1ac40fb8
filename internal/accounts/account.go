// Package accounts はアカウントのモデルと永続化レイヤーを提供します。
package accounts

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound は該当するアカウントが存在しない場合に返されます。
	ErrNotFound = errors.New("account not found")
	// ErrEmailTaken は同じメールアドレスのアカウントが既に存在する場合に返されます。
	ErrEmailTaken = errors.New("email already registered")
)

// Account は登録済みアカウントを表します。Email は常に正規化済みの値です。
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PublicAccount はパスワードハッシュを含まないレスポンス用の表現です。
type PublicAccount struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Public は秘密情報を取り除いたコピーを返します。
func (a *Account) Public() *PublicAccount {
	if a == nil {
		return nil
	}
	return &PublicAccount{
		ID:        a.ID,
		Email:     a.Email,
		Name:      a.Name,
		CreatedAt: a.CreatedAt,
	}
}

// Repository はアカウントストアの抽象です。
// どの実装も Insert 時に正規化済みメールアドレスの一意性を保証します。
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
	Insert(ctx context.Context, account *Account) error
}

// NormalizeEmail は比較・保存に使うメールアドレスの正規形を返します。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateForInsert(account *Account) error {
	if account == nil {
		return errors.New("account is nil")
	}
	if account.ID == "" {
		return errors.New("account.ID is required")
	}
	if NormalizeEmail(account.Email) == "" {
		return errors.New("account.Email is required")
	}
	return nil
}
