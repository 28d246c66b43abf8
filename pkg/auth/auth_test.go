package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "********", MaskKey(""))
	assert.Equal(t, "********", MaskKey("short"))
	assert.Equal(t, "sk-a...wxyz", MaskKey("sk-abcdefghijklmnopqrstuvwxyz"))
}

func TestEnvironmentStore(t *testing.T) {
	store := NewEnvironmentStore("NOTEX_TEST_KEY")

	t.Run("Missing", func(t *testing.T) {
		_, err := store.Retrieve("openrouter")
		assert.ErrorIs(t, err, ErrKeyNotFound)
		assert.False(t, store.Exists("openrouter"))
	})

	t.Run("Present", func(t *testing.T) {
		t.Setenv("NOTEX_TEST_KEY", "sk-from-env")

		cred, err := store.Retrieve("openrouter")
		require.NoError(t, err)
		assert.Equal(t, "sk-from-env", cred.APIKey)
		assert.Equal(t, "openrouter", cred.Provider)
		assert.True(t, store.Exists("openrouter"))
	})

	t.Run("ReadOnly", func(t *testing.T) {
		assert.ErrorIs(t, store.Store(&Credential{Provider: "x", APIKey: "y"}), ErrStoreUnavailable)
		assert.ErrorIs(t, store.Delete("x"), ErrStoreUnavailable)
	})
}

func newTestEncryptedStore(t *testing.T) *EncryptedFileStore {
	t.Helper()
	t.Setenv("NOTEX_PASSPHRASE", "test-passphrase")

	store, err := NewEncryptedFileStore(filepath.Join(t.TempDir(), "keys.enc"))
	require.NoError(t, err)
	return store
}

func TestEncryptedFileStoreRoundTrip(t *testing.T) {
	store := newTestEncryptedStore(t)

	cred := &Credential{
		Provider:     "openrouter",
		APIKey:       "sk-secret-value",
		LastModified: time.Now(),
	}
	require.NoError(t, store.Store(cred))
	assert.True(t, store.Exists("openrouter"))

	got, err := store.Retrieve("openrouter")
	require.NoError(t, err)
	assert.Equal(t, "sk-secret-value", got.APIKey)
}

func TestEncryptedFileStoreCiphertextHidesKey(t *testing.T) {
	t.Setenv("NOTEX_PASSPHRASE", "test-passphrase")
	path := filepath.Join(t.TempDir(), "keys.enc")

	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Store(&Credential{Provider: "openrouter", APIKey: "sk-plaintext-never"}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "sk-plaintext-never")
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.enc")

	t.Setenv("NOTEX_PASSPHRASE", "first")
	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Store(&Credential{Provider: "openrouter", APIKey: "sk-x"}))

	t.Setenv("NOTEX_PASSPHRASE", "second")
	reopened, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	_, err = reopened.Retrieve("openrouter")
	assert.Error(t, err)
}

func TestEncryptedFileStoreDelete(t *testing.T) {
	store := newTestEncryptedStore(t)

	require.NoError(t, store.Store(&Credential{Provider: "a", APIKey: "sk-a"}))
	require.NoError(t, store.Store(&Credential{Provider: "b", APIKey: "sk-b"}))

	require.NoError(t, store.Delete("a"))
	assert.False(t, store.Exists("a"))
	assert.True(t, store.Exists("b"))

	assert.ErrorIs(t, store.Delete("a"), ErrKeyNotFound)
}

func TestEncryptedFileStoreRejectsInvalid(t *testing.T) {
	store := newTestEncryptedStore(t)

	assert.ErrorIs(t, store.Store(nil), ErrInvalidKey)
	assert.ErrorIs(t, store.Store(&Credential{APIKey: "sk-x"}), ErrInvalidKey)
	_, err := store.Retrieve("")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestManagerFallsBackToEnvironment(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("NOTEX_PASSPHRASE", "test-passphrase")
	t.Setenv("NOTEX_API_KEY", "sk-env-fallback")

	mgr, err := NewManager("NOTEX_API_KEY")
	require.NoError(t, err)

	cred, err := mgr.Retrieve("openrouter")
	require.NoError(t, err)
	assert.Equal(t, "sk-env-fallback", cred.APIKey)
}

func TestManagerRejectsInvalidCredential(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("NOTEX_PASSPHRASE", "test-passphrase")

	mgr, err := NewManager("")
	require.NoError(t, err)

	assert.ErrorIs(t, mgr.Store(nil), ErrInvalidKey)
	assert.ErrorIs(t, mgr.Store(&Credential{Provider: "p"}), ErrInvalidKey)
	assert.ErrorIs(t, mgr.Store(&Credential{APIKey: "k"}), ErrInvalidKey)
}
