package identity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "credential.json")

	cred, err := Load(path)
	require.NoError(t, err)

	_, err = uuid.Parse(cred.NodeID)
	assert.NoError(t, err, "node id must be a random uuid")
	assert.Len(t, cred.Salt, SaltSize)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadIsStableAcrossRestarts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credential.json")

	first, err := Load(path)
	require.NoError(t, err)

	second, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, first.NodeID, second.NodeID)
	assert.Equal(t, first.Salt, second.Salt)
}

func TestLoadRegeneratesCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credential.json")
	require.NoError(t, os.WriteFile(path, []byte("{truncated"), 0o600))

	cred, err := Load(path)
	require.NoError(t, err)
	assert.NotEmpty(t, cred.NodeID)
	assert.Len(t, cred.Salt, SaltSize)

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cred.NodeID, reloaded.NodeID, "regenerated credential must be persisted")
}

func TestLoadRegeneratesInvalidSalt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credential.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"node_id":"abc","salt":"c2hvcnQ="}`), 0o600))

	cred, err := Load(path)
	require.NoError(t, err)
	assert.NotEqual(t, "abc", cred.NodeID)
	assert.Len(t, cred.Salt, SaltSize)
}

func TestStringRedactsSalt(t *testing.T) {
	cred := &Credential{NodeID: "node-1", Salt: []byte("super-secret-salt-value-32-bytes")}

	s := cred.String()
	assert.Contains(t, s, "node-1")
	assert.NotContains(t, s, "super-secret")
	assert.Contains(t, s, "<redacted>")
}
