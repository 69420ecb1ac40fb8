package client

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/signin-gateway/internal/accounts"
)

func TestSessionLifecycle(t *testing.T) {
	storage := NewMemoryStorage()
	session := NewSession(storage)
	assert.False(t, session.IsAuthenticated())

	user := &accounts.PublicAccount{ID: "acc-1", Email: "a@x.com", Name: "A"}
	require.NoError(t, session.Store("token-1", user))

	token, ok := session.Token()
	require.True(t, ok)
	assert.Equal(t, "token-1", token)
	got, ok := session.User()
	require.True(t, ok)
	assert.Equal(t, user.ID, got.ID)

	raw, ok := storage.Get(KeyAuthToken)
	require.True(t, ok)
	assert.Equal(t, "token-1", raw)
	_, ok = storage.Get(KeyUser)
	assert.True(t, ok)

	require.NoError(t, session.Clear())
	assert.False(t, session.IsAuthenticated())
	_, ok = storage.Get(KeyUser)
	assert.False(t, ok)
}

func TestSessionRejectsEmptyToken(t *testing.T) {
	session := NewSession(nil)
	assert.Error(t, session.Store("", &accounts.PublicAccount{ID: "acc-1"}))
	assert.False(t, session.IsAuthenticated())
}

func TestSessionIgnoresCorruptUser(t *testing.T) {
	storage := NewMemoryStorage()
	require.NoError(t, storage.Set(KeyUser, "{broken"))
	_, ok := NewSession(storage).User()
	assert.False(t, ok)
}

func TestFileStoragePersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")

	first := NewSession(NewFileStorage(path))
	require.NoError(t, first.Store("token-1", &accounts.PublicAccount{ID: "acc-1"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second := NewSession(NewFileStorage(path))
	token, ok := second.Token()
	require.True(t, ok)
	assert.Equal(t, "token-1", token)

	require.NoError(t, second.Clear())
	assert.False(t, NewSession(NewFileStorage(path)).IsAuthenticated())
}

func TestFileStorageCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	storage := NewFileStorage(path)
	_, ok := storage.Get(KeyAuthToken)
	assert.False(t, ok)
	assert.Error(t, storage.Set(KeyAuthToken, "x"))
}
