// Package config loads dirvault settings from a TOML file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/illarion/dirvault/internal/crypto"
)

const (
	appDir       = "dirvault"
	settingsFile = "settings.toml"
	registryFile = "registry.db"

	EnvHome      = "DIRVAULT_HOME"
	EnvPassword  = "DIRVAULT_PASSWORD"
	EnvNoKeyring = "DIRVAULT_NO_KEYRING"
)

// Settings are the user-tunable options.
type Settings struct {
	// RegistryPath is the bbolt file holding vault records.
	RegistryPath string `toml:"registry_path"`
	// Shuffle applies the byte permutation to vaults created from now on.
	Shuffle bool `toml:"shuffle"`
	// UseKeyring offers to cache passwords in the OS keyring.
	UseKeyring bool `toml:"use_keyring"`
	// Argon2 holds the cost parameters for newly created vaults.
	Argon2 crypto.Params `toml:"argon2"`
}

// Dir returns the configuration directory, honouring DIRVAULT_HOME.
func Dir() (string, error) {
	if home := os.Getenv(EnvHome); home != "" {
		return home, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot locate config directory: %w", err)
	}
	return filepath.Join(base, appDir), nil
}

// Defaults returns the settings used when no file exists.
func Defaults(dir string) Settings {
	return Settings{
		RegistryPath: filepath.Join(dir, registryFile),
		Shuffle:      true,
		UseKeyring:   true,
		Argon2:       crypto.DefaultParams,
	}
}

// Path returns the settings file path inside dir.
func Path(dir string) string {
	return filepath.Join(dir, settingsFile)
}

// Load reads the settings file from dir, filling unset keys with defaults,
// and applies environment overrides.
func Load(dir string) (Settings, error) {
	s := Defaults(dir)

	if _, err := toml.DecodeFile(Path(dir), &s); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Settings{}, fmt.Errorf("failed to parse %s: %w", Path(dir), err)
	}

	if os.Getenv(EnvNoKeyring) != "" {
		s.UseKeyring = false
	}
	if s.RegistryPath != "" && !filepath.IsAbs(s.RegistryPath) {
		s.RegistryPath = filepath.Join(dir, s.RegistryPath)
	}

	return s, nil
}

// Save writes the settings file into dir.
func Save(dir string, s Settings) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	file, err := os.OpenFile(Path(dir), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer file.Close()

	return toml.NewEncoder(file).Encode(s)
}

// PasswordFromEnv reads the password from DIRVAULT_PASSWORD, or nil if unset.
func PasswordFromEnv() []byte {
	password := os.Getenv(EnvPassword)
	if password == "" {
		return nil
	}
	// Return a copy to avoid issues when clearing the bytes
	result := make([]byte, len(password))
	copy(result, password)
	return result
}
