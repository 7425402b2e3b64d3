package signing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrkwtz/stagegate/internal/domain"
)

func keyPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), domain.StateDirName, "signing.key")
}

func TestGenerateKeyAndLoad(t *testing.T) {
	path := keyPath(t)
	require.NoError(t, GenerateKey(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	signer, err := Load(path)
	require.NoError(t, err)

	sig := signer.Sign("task-1|reviewer|1|2026-01-15T09:30:05Z")
	assert.True(t, signer.Verify("task-1|reviewer|1|2026-01-15T09:30:05Z", sig))
}

func TestGenerateKey_RefusesOverwrite(t *testing.T) {
	path := keyPath(t)
	require.NoError(t, GenerateKey(path))

	err := GenerateKey(path)
	require.ErrorIs(t, err, domain.ErrAlreadyInitialized)
}

func TestLoad_MissingKey(t *testing.T) {
	_, err := Load(keyPath(t))
	require.ErrorIs(t, err, domain.ErrNoSigningKey)
}

func TestLoad_RejectsMalformedKey(t *testing.T) {
	path := keyPath(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte("not-hex"), 0o600))

	_, err := Load(path)
	require.ErrorIs(t, err, domain.ErrNoSigningKey)
}

func TestVerify_RejectsTamperedPayload(t *testing.T) {
	signer := NewFromKey(make([]byte, KeySize))

	sig := signer.Sign("task-1|builder|1|2026-01-15T09:30:05Z")
	assert.False(t, signer.Verify("task-1|builder|0|2026-01-15T09:30:05Z", sig))
	assert.False(t, signer.Verify("task-1|builder|1|2026-01-15T09:30:05Z", "zz"+sig[2:]))
	assert.False(t, signer.Verify("task-1|builder|1|2026-01-15T09:30:05Z", "not hex"))
}

func TestVerify_DifferentKeysDisagree(t *testing.T) {
	a := NewFromKey(make([]byte, KeySize))
	b := NewFromKey(append(make([]byte, KeySize-1), 1))

	payload := "task-1|builder|1|2026-01-15T09:30:05Z"
	assert.False(t, b.Verify(payload, a.Sign(payload)))
}
