package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/yourusername/signin-gateway/internal/accounts"
)

// セッション情報を保存する固定キー。
const (
	KeyAuthToken = "authToken"
	KeyUser      = "user"
)

// Storage はセッション情報を保持するキー・バリューストアです。
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Remove(key string) error
}

// Session はトークンとアカウント情報の組を明示的に管理します。
// 2つのキーは常に同時に書き込まれ、同時に消去されます。
type Session struct {
	storage Storage
}

// NewSession は Session を作成します。storage が nil の場合はメモリ上に保持します。
func NewSession(storage Storage) *Session {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	return &Session{storage: storage}
}

// Store はトークンとアカウントを保存します。
func (s *Session) Store(token string, user *accounts.PublicAccount) error {
	if token == "" {
		return errors.New("token is empty")
	}
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := s.storage.Set(KeyAuthToken, token); err != nil {
		return err
	}
	if err := s.storage.Set(KeyUser, string(data)); err != nil {
		_ = s.storage.Remove(KeyAuthToken)
		return err
	}
	return nil
}

// Clear はトークンとアカウントの両方を消去します。
func (s *Session) Clear() error {
	return errors.Join(
		s.storage.Remove(KeyAuthToken),
		s.storage.Remove(KeyUser),
	)
}

// Token は保存済みのトークンを返します。
func (s *Session) Token() (string, bool) {
	token, ok := s.storage.Get(KeyAuthToken)
	return token, ok && token != ""
}

// User は保存済みのアカウント情報を返します。
func (s *Session) User() (*accounts.PublicAccount, bool) {
	raw, ok := s.storage.Get(KeyUser)
	if !ok || raw == "" {
		return nil, false
	}
	var user accounts.PublicAccount
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, false
	}
	return &user, true
}

// IsAuthenticated はトークンを保持しているかを返します。
func (s *Session) IsAuthenticated() bool {
	_, ok := s.Token()
	return ok
}

// MemoryStorage はプロセス内の Storage 実装です。
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStorage は空の MemoryStorage を作成します。
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

func (m *MemoryStorage) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *MemoryStorage) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStorage) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// FileStorage は JSON ファイルに値を保存する Storage 実装です（CLI 向け）。
type FileStorage struct {
	mu   sync.Mutex
	path string
}

// NewFileStorage は FileStorage を作成します。ファイルは最初の書き込み時に作られます。
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

func (f *FileStorage) Get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.load()
	if err != nil {
		return "", false
	}
	v, ok := values[key]
	return v, ok
}

func (f *FileStorage) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.load()
	if err != nil {
		return err
	}
	values[key] = value
	return f.save(values)
}

func (f *FileStorage) Remove(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return f.save(values)
}

func (f *FileStorage) load() (map[string]string, error) {
	values := make(map[string]string)
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return values, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.path, err)
	}
	return values, nil
}

func (f *FileStorage) save(values map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	data, err := json.Marshal(values)
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}
