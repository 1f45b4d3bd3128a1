package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dreamware/sshchic/internal/keygen"
)

// DefaultKeyName is the file name of the private key; the public key gets
// a ".pub" suffix.
const DefaultKeyName = "id_ed25519"

// FilePersister writes a matched key pair to two files in a directory.
// Thread-safe: concurrent Persist calls are serialized.
type FilePersister struct {
	encoder keygen.Encoder // Renders the key material
	dir     string         // Target directory
	name    string         // Private key file name
	mu      sync.Mutex     // Serializes writers
}

// NewFilePersister creates a persister writing <dir>/<name> and
// <dir>/<name>.pub. Empty dir means the working directory and empty name
// means DefaultKeyName.
func NewFilePersister(dir, name string, enc keygen.Encoder) *FilePersister {
	if dir == "" {
		dir = "."
	}
	if name == "" {
		name = DefaultKeyName
	}
	return &FilePersister{dir: dir, name: name, encoder: enc}
}

// Paths returns the private and public key paths this persister writes.
func (f *FilePersister) Paths() (private, public string) {
	private = filepath.Join(f.dir, f.name)
	return private, private + ".pub"
}

// Persist writes the private key and then the public key, overwriting any
// existing files, and returns both paths.
func (f *FilePersister) Persist(c *keygen.Candidate) ([]string, error) {
	priv, err := f.encoder.PrivateKeyPEM(c)
	if err != nil {
		return nil, err
	}
	pub, err := f.encoder.PublicKeyLine(c)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	privPath, pubPath := f.Paths()
	if err := writeFileAtomic(privPath, priv, 0o600); err != nil {
		return nil, err
	}
	if err := writeFileAtomic(pubPath, []byte(pub), 0o644); err != nil {
		return nil, err
	}
	return []string{privPath, pubPath}, nil
}

// writeFileAtomic writes data to a temporary file next to path and renames
// it into place.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	tmpName := tmp.Name()
	cleanup := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}

	if err := tmp.Chmod(perm); err != nil {
		return cleanup(err)
	}
	if _, err := tmp.Write(data); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
