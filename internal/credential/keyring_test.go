package credential_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/deadliner/internal/credential"
)

func TestVaultRoundTrip(t *testing.T) {
	v := credential.NewVault(keyring.NewArrayKeyring(nil))

	_, err := v.Get("k")
	assert.ErrorIs(t, err, credential.ErrNotFound)

	require.NoError(t, v.Set("k", "secret"))
	got, err := v.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "secret", got)

	require.NoError(t, v.Delete("k"))
	require.NoError(t, v.Delete("k"))
	_, err = v.Get("k")
	assert.ErrorIs(t, err, credential.ErrNotFound)
}

func TestImportServiceAccount(t *testing.T) {
	dir := t.TempDir()
	v := credential.NewVault(keyring.NewArrayKeyring(nil))

	good := filepath.Join(dir, "sa.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"type":"service_account","project_id":"p"}`), 0o600))
	require.NoError(t, v.ImportServiceAccount(credential.FirestoreKey, good))

	got, err := v.Get(credential.FirestoreKey)
	require.NoError(t, err)
	assert.Contains(t, got, `"service_account"`)

	untyped := filepath.Join(dir, "untyped.json")
	require.NoError(t, os.WriteFile(untyped, []byte(`{"project_id":"p"}`), 0o600))
	assert.Error(t, v.ImportServiceAccount("other", untyped))

	garbage := filepath.Join(dir, "garbage.json")
	require.NoError(t, os.WriteFile(garbage, []byte(`not json`), 0o600))
	assert.Error(t, v.ImportServiceAccount("other", garbage))

	assert.Error(t, v.ImportServiceAccount("other", filepath.Join(dir, "missing.json")))
	_, err = v.Get("other")
	assert.ErrorIs(t, err, credential.ErrNotFound)
}
