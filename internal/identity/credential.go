// Package identity manages the node's federation credential: a random node
// identifier plus a per-node secret salt. The salt makes hashed identifiers
// incomparable across nodes; it is created once, stored locally, and never
// transmitted or logged.
package identity

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// SaltSize is the length of the per-node secret salt in bytes.
const SaltSize = 32

// Credential is the node's federation identity. NodeID is random (not an
// on-chain address) and safe to share; Salt is a secret.
type Credential struct {
	NodeID string `json:"node_id"`
	Salt   []byte `json:"salt"`
}

// Load reads the credential at path, creating a fresh one on first run.
// A corrupt or unparseable file is replaced with a newly generated
// credential rather than failing startup.
func Load(path string) (*Credential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading credential file: %w", err)
		}
		return createAndSave(path)
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil || cred.validate() != nil {
		return createAndSave(path)
	}
	return &cred, nil
}

// DefaultPath returns the standard credential location under the user's
// home directory.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".truewatch", "credential.json"), nil
}

// String redacts the salt. Credentials end up in log fields during startup
// diagnostics; the secret must never appear there.
func (c *Credential) String() string {
	return fmt.Sprintf("Credential{node_id: %s, salt: <redacted>}", c.NodeID)
}

func (c *Credential) validate() error {
	if c.NodeID == "" {
		return fmt.Errorf("empty node_id")
	}
	if len(c.Salt) != SaltSize {
		return fmt.Errorf("salt must be %d bytes, got %d", SaltSize, len(c.Salt))
	}
	return nil
}

func createAndSave(path string) (*Credential, error) {
	cred, err := generate()
	if err != nil {
		return nil, err
	}
	if err := cred.save(path); err != nil {
		return nil, err
	}
	return cred, nil
}

func generate() (*Credential, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	return &Credential{
		NodeID: uuid.NewString(),
		Salt:   salt,
	}, nil
}

func (c *Credential) save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating credential directory: %w", err)
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding credential: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing credential file: %w", err)
	}
	return nil
}
