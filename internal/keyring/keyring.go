package keyring

import (
	"errors"

	"github.com/zalando/go-keyring"
)

const serviceName = "dirvault"

// ErrNotFound is returned when no password is stored for a vault.
var ErrNotFound = keyring.ErrNotFound

// Store caches vault passwords in the OS keyring, keyed by registry record ID.
// The zero value uses the default service name.
type Store struct {
	Service string
}

func (s Store) service() string {
	if s.Service == "" {
		return serviceName
	}
	return s.Service
}

// Save stores a password for the vault
func (s Store) Save(vaultID string, password []byte) error {
	return keyring.Set(s.service(), vaultID, string(password))
}

// Get retrieves a password for the vault
func (s Store) Get(vaultID string) ([]byte, error) {
	password, err := keyring.Get(s.service(), vaultID)
	if err != nil {
		return nil, err
	}
	return []byte(password), nil
}

// Delete removes a stored password. Deleting a missing entry is not an error.
func (s Store) Delete(vaultID string) error {
	err := keyring.Delete(s.service(), vaultID)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// Has checks if a password is stored for the vault
func (s Store) Has(vaultID string) bool {
	_, err := keyring.Get(s.service(), vaultID)
	return err == nil
}
