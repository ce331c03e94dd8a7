package storage

import (
	"os"
	"path/filepath"
	"time"

	"github.com/illarion/dirvault/internal/crypto"
)

// Record is the registry entry for one vault.
type Record struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	PasswordHash string    `json:"passwordHash"`
	Salt         string    `json:"salt"`
	Locked       bool      `json:"locked"`
	Shuffled     bool      `json:"shuffled"`
	Created      time.Time `json:"created"`
	Modified     time.Time `json:"modified"`
}

// Credential returns the password hash and salt bound to the vault.
func (r *Record) Credential() crypto.Credential {
	return crypto.Credential{PasswordHash: r.PasswordHash, Salt: r.Salt}
}

// CanonicalPath returns the absolute, symlink-resolved form of path. When the
// path no longer resolves, the cleaned absolute path is returned instead.
func CanonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return filepath.Clean(abs), nil
		}
		return "", err
	}
	return resolved, nil
}
