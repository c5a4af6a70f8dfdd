package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeKeyFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestLoadSigningKey(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	t.Run("full private key", func(t *testing.T) {
		loaded, err := LoadSigningKey(writeKeyFile(t, "link.key", priv))
		require.NoError(t, err)
		assert.Equal(t, priv, loaded)
	})

	t.Run("seed only", func(t *testing.T) {
		loaded, err := LoadSigningKey(writeKeyFile(t, "link.seed", priv.Seed()))
		require.NoError(t, err)
		assert.Equal(t, pub, loaded.Public())
	})

	t.Run("wrong size", func(t *testing.T) {
		_, err := LoadSigningKey(writeKeyFile(t, "bad.key", make([]byte, 40)))
		assert.ErrorContains(t, err, "expected")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadSigningKey(filepath.Join(t.TempDir(), "absent"))
		assert.Error(t, err)
	})
}

func TestLoadVerifyKey(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	loaded, err := LoadVerifyKey(writeKeyFile(t, "peer.pub", pub))
	require.NoError(t, err)
	assert.Equal(t, pub, loaded)

	_, err = LoadVerifyKey(writeKeyFile(t, "bad.pub", make([]byte, 31)))
	assert.ErrorContains(t, err, "expected")
}

func TestLoadSymmetricKey(t *testing.T) {
	key := make([]byte, KeySize)
	loaded, err := LoadSymmetricKey(writeKeyFile(t, "link.sym", key))
	require.NoError(t, err)
	assert.Equal(t, key, loaded)

	_, err = LoadSymmetricKey(writeKeyFile(t, "short.sym", make([]byte, 16)))
	assert.ErrorContains(t, err, "expected")
}
