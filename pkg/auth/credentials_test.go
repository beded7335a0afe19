package auth

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestCredentialManager(t *testing.T) {
	manager, mockStore := NewMockManager()

	account := &Account{
		Email:    "bookkeeper@example.dk",
		Password: "correct horse battery",
	}

	if err := manager.Store(account); err != nil {
		t.Fatalf("Failed to store account: %v", err)
	}
	if account.LastModified.IsZero() {
		t.Error("Store should stamp LastModified")
	}

	retrieved, err := manager.Retrieve("Bookkeeper@example.dk")
	if err != nil {
		t.Fatalf("Failed to retrieve account: %v", err)
	}
	if retrieved.Password != account.Password {
		t.Errorf("Password mismatch: got %s, want %s", retrieved.Password, account.Password)
	}

	accounts, err := manager.List()
	require.NoError(t, err)
	assert.Len(t, accounts, 1)

	sanitized := SanitizeAccount(account)
	if sanitized.Password == account.Password {
		t.Error("Password should be masked")
	}
	if sanitized.Email != account.Email {
		t.Error("Email should not be masked")
	}

	require.NoError(t, manager.Delete("bookkeeper@example.dk"))
	_, err = manager.Retrieve("bookkeeper@example.dk")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.Equal(t, 0, mockStore.Count())
}

func TestManagerStoreValidation(t *testing.T) {
	manager, _ := NewMockManager()

	assert.Error(t, manager.Store(&Account{Password: "x"}))
	assert.Error(t, manager.Store(&Account{Email: "a@b.dk"}))
	assert.Error(t, manager.Store(nil))
}

func TestManagerFallsBackToNextStore(t *testing.T) {
	failing := NewMockStore()
	failing.StoreError = errors.New("keychain locked")
	working := NewMockStore()

	manager := NewManagerWithStores(failing, working)
	require.NoError(t, manager.Store(&Account{Email: "a@b.dk", Password: "pw"}))

	assert.Equal(t, 0, failing.Count())
	assert.Equal(t, 1, working.Count())
}

func TestManagerRetrieveDefault(t *testing.T) {
	t.Setenv("EMAIL", "")
	t.Setenv("PASSWORD", "")
	t.Setenv("BILAG_EMAIL", "")
	t.Setenv("BILAG_PASSWORD", "")

	store := NewMockStore()
	manager := NewManagerWithStores(store, NewEnvironmentStore())

	_, err := manager.RetrieveDefault()
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	older := &Account{Email: "old@example.dk", Password: "pw", LastModified: time.Now().Add(-time.Hour)}
	newer := &Account{Email: "new@example.dk", Password: "pw", LastModified: time.Now()}
	require.NoError(t, store.Store(older))
	require.NoError(t, store.Store(newer))

	account, err := manager.RetrieveDefault()
	require.NoError(t, err)
	assert.Equal(t, "new@example.dk", account.Email)

	t.Setenv("EMAIL", "env@example.dk")
	t.Setenv("PASSWORD", "from-env")

	account, err = manager.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "env@example.dk", account.Email, "environment wins for the default account")

	account, err = manager.Resolve("old@example.dk")
	require.NoError(t, err)
	assert.Equal(t, "old@example.dk", account.Email)
}

func TestManagerListSortedAndDeduplicated(t *testing.T) {
	a := NewMockStore()
	b := NewMockStore()
	now := time.Now()

	require.NoError(t, a.Store(&Account{Email: "zed@example.dk", Password: "1", LastModified: now}))
	require.NoError(t, a.Store(&Account{Email: "amy@example.dk", Password: "stale", LastModified: now.Add(-time.Minute)}))
	require.NoError(t, b.Store(&Account{Email: "AMY@example.dk", Password: "fresh", LastModified: now}))

	accounts, err := NewManagerWithStores(a, b).List()
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "fresh", accounts[0].Password)
	assert.Equal(t, "zed@example.dk", accounts[1].Email)
}

func TestManagerDeleteMissing(t *testing.T) {
	manager, _ := NewMockManager()
	err := manager.Delete("nobody@example.dk")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestEncryptedFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.enc")
	t.Setenv("BILAG_PASSPHRASE", "test_passphrase_123")

	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	account := &Account{Email: "vault@example.dk", Password: "s3cret-password"}
	require.NoError(t, store.Store(account))

	retrieved, err := store.Retrieve("VAULT@example.dk")
	require.NoError(t, err)
	assert.Equal(t, account.Password, retrieved.Password)
	assert.True(t, store.Exists("vault@example.dk"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	if bytes.Contains(content, []byte("s3cret-password")) {
		t.Error("File contains plaintext password")
	}
	if bytes.Contains(content, []byte("vault@example.dk")) {
		t.Error("File contains plaintext email")
	}

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	require.NoError(t, store.Delete("vault@example.dk"))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "file should be removed with its last account")
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.enc")

	t.Setenv("BILAG_PASSPHRASE", "first")
	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Store(&Account{Email: "a@b.dk", Password: "pw"}))

	t.Setenv("BILAG_PASSPHRASE", "second")
	other, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	_, err = other.Retrieve("a@b.dk")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCredentialsNotFound)
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv("BILAG_EMAIL", "")
	t.Setenv("BILAG_PASSWORD", "")
	t.Setenv("EMAIL", "env@example.dk")
	t.Setenv("PASSWORD", "env-password")

	store := NewEnvironmentStore()

	account, err := store.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, "env@example.dk", account.Email)
	assert.Equal(t, "env-password", account.Password)

	_, err = store.Retrieve("someone-else@example.dk")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	t.Setenv("BILAG_EMAIL", "prefixed@example.dk")
	account, err = store.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, "prefixed@example.dk", account.Email)

	if err := store.Store(&Account{}); err != ErrStoreUnavailable {
		t.Error("Expected ErrStoreUnavailable for environment store")
	}
}

func TestEnvironmentStoreRequiresBoth(t *testing.T) {
	t.Setenv("BILAG_EMAIL", "")
	t.Setenv("BILAG_PASSWORD", "")
	t.Setenv("EMAIL", "env@example.dk")
	t.Setenv("PASSWORD", "")

	store := NewEnvironmentStore()
	_, err := store.Retrieve("")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	accounts, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	require.NoError(t, err)

	require.NoError(t, store.Store(&Account{Email: "one@example.dk", Password: "1"}))
	require.NoError(t, store.Store(&Account{Email: "two@example.dk", Password: "2"}))
	require.NoError(t, store.Store(&Account{Email: "one@example.dk", Password: "1b"}))

	accounts, err := store.List()
	require.NoError(t, err)
	assert.Len(t, accounts, 2)

	account, err := store.Retrieve("one@example.dk")
	require.NoError(t, err)
	assert.Equal(t, "1b", account.Password)

	require.NoError(t, store.Delete("one@example.dk"))
	assert.False(t, store.Exists("one@example.dk"))
	assert.ErrorIs(t, store.Delete("one@example.dk"), ErrCredentialsNotFound)

	accounts, err = store.List()
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "two@example.dk", accounts[0].Email)
}

func TestMockStore(t *testing.T) {
	store := NewMockStore()

	accounts, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, accounts)

	require.NoError(t, store.Store(&Account{Email: "mock@example.dk", Password: "pw"}))
	assert.Equal(t, 1, store.Count())
	assert.True(t, store.Exists("MOCK@example.dk"))

	store.ListError = fmt.Errorf("injected error")
	_, err = store.List()
	if err == nil || err.Error() != "injected error" {
		t.Error("Expected injected error")
	}
}

func TestAccountComplete(t *testing.T) {
	var nilAccount *Account
	assert.False(t, nilAccount.Complete())
	assert.False(t, (&Account{Email: "a@b.dk"}).Complete())
	assert.True(t, (&Account{Email: "a@b.dk", Password: "pw"}).Complete())
}

func TestManagerBackends(t *testing.T) {
	m := NewManagerWithStores(&KeyringStore{}, NewEnvironmentStore(), NewMockStore())
	assert.Equal(t, []string{"system keychain", "environment", "*auth.MockStore"}, m.Backends())
}
