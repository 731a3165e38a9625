package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimogit/beacon/pkg/errors"
)

// Tests run against the encrypted-file fallback so they do not depend on a
// desktop keyring being present.
func newTestStore(t *testing.T) *CredentialStore {
	t.Helper()

	t.Setenv("BEACON_STATE_DIR", t.TempDir())
	t.Setenv("BEACON_USE_KEYRING", "false")

	cs, err := NewCredentialStore()
	require.NoError(t, err)
	require.False(t, cs.useKeyring)
	return cs
}

func TestStoreAndLoadAppKey(t *testing.T) {
	cs := newTestStore(t)

	require.NoError(t, cs.StoreAppKey("super-secret-app-key"))

	got, err := cs.LoadAppKey()
	require.NoError(t, err)
	assert.Equal(t, "super-secret-app-key", got)
}

func TestLoadMissingAppKey(t *testing.T) {
	cs := newTestStore(t)

	_, err := cs.LoadAppKey()
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeCredentialNotFound, errors.GetErrorCode(err))
}

func TestDeleteAppKey(t *testing.T) {
	cs := newTestStore(t)

	require.NoError(t, cs.StoreAppKey("k"))
	require.NoError(t, cs.DeleteAppKey())

	_, err := cs.LoadAppKey()
	assert.Error(t, err)
}

func TestEncryptedValueIsNotPlaintext(t *testing.T) {
	cs := newTestStore(t)

	encrypted, err := cs.encrypt("plaintext-key")
	require.NoError(t, err)
	assert.NotContains(t, encrypted, "plaintext-key")

	decrypted, err := cs.decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, "plaintext-key", decrypted)
}
