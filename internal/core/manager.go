package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/illarion/dirvault/internal/crypto"
	verrors "github.com/illarion/dirvault/internal/errors"
	"github.com/illarion/dirvault/internal/git"
	"github.com/illarion/dirvault/internal/logging"
	"github.com/illarion/dirvault/internal/security"
	"github.com/illarion/dirvault/internal/storage"
)

// Registry is the record store a Manager keeps vault state in.
type Registry interface {
	Add(rec *storage.Record) error
	Get(path string) (*storage.Record, error)
	SetLocked(path string, locked bool) error
	Delete(path string) error
	List() ([]storage.Record, error)
	Compact() error
}

// Manager ties the engine to the registry: every operation that seals or
// opens a directory also records the new lock state.
type Manager struct {
	Registry Registry
	Engine   *Engine

	// Params and Shuffle apply to vaults created by this manager.
	Params  crypto.Params
	Shuffle bool

	Log logging.Logger
}

// NewManager returns a Manager whose engine logs through log.
func NewManager(reg Registry, params crypto.Params, shuffle bool, log logging.Logger) *Manager {
	return &Manager{
		Registry: reg,
		Engine:   &Engine{Log: log},
		Params:   params,
		Shuffle:  shuffle,
		Log:      log,
	}
}

// VaultInfo is the listing view of a vault.
type VaultInfo struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	IsLocked bool   `json:"isLocked"`
}

// StatusReport describes a vault without needing its password.
type StatusReport struct {
	Record           *storage.Record
	ContainerPresent bool
	ContainerSize    int64
	PlainFiles       []string // non-hidden regular files currently in the directory
	Git              *git.VaultStatus
}

// FileDiff compares one vault entry with the local file of the same name.
type FileDiff struct {
	Name        string
	LocalExists bool
	Identical   bool
	Diff        string // unified diff, vault side first; empty when identical
}

func vaultOf(rec *storage.Record) Vault {
	return Vault{
		Path:       rec.Path,
		Credential: rec.Credential(),
		Shuffled:   rec.Shuffled,
	}
}

// CreateVault registers dir as a vault named name and seals it at once.
// An empty name defaults to the directory's base name.
func (m *Manager) CreateVault(ctx context.Context, name, dir string, password []byte) (*storage.Record, *SealResult, error) {
	path, err := storage.CanonicalPath(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, verrors.NewIOError("stat", path, verrors.ErrDirectoryUnreadable, err)
	}
	if !info.IsDir() {
		return nil, nil, verrors.NewIOError("stat", path, verrors.ErrDirectoryUnreadable, fmt.Errorf("not a directory"))
	}
	if name == "" {
		name = filepath.Base(path)
	}

	unlock := vaultLocks.Lock(path)
	defer unlock()

	cred, err := crypto.HashAndSalt(password, m.Params)
	if err != nil {
		return nil, nil, err
	}

	rec := &storage.Record{
		Name:         name,
		Path:         path,
		PasswordHash: cred.PasswordHash,
		Salt:         cred.Salt,
		Shuffled:     m.Shuffle,
	}
	if err := m.Registry.Add(rec); err != nil {
		return nil, nil, err
	}
	m.Log.Debugf("registered %s as %s (%s)", path, name, rec.ID)

	result, err := m.Engine.Seal(ctx, vaultOf(rec), password)
	if result == nil && err != nil {
		// Nothing was written; forget the vault again
		if derr := m.Registry.Delete(path); derr != nil {
			m.Log.Warnf("failed to unregister %s: %v", path, derr)
		}
		return nil, nil, err
	}

	// The container exists from here on, even if removing plaintext failed
	if lerr := m.Registry.SetLocked(path, true); lerr != nil {
		return rec, result, fmt.Errorf("vault sealed but registry not updated: %w", lerr)
	}
	rec.Locked = true

	return rec, result, err
}

// LockVault seals an unlocked vault.
func (m *Manager) LockVault(ctx context.Context, dir string, password []byte) (*SealResult, error) {
	rec, unlock, err := m.acquire(dir)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if rec.Locked {
		return nil, fmt.Errorf("%s: %w", rec.Path, verrors.ErrVaultLocked)
	}

	result, err := m.Engine.Seal(ctx, vaultOf(rec), password)
	if result == nil {
		return nil, err
	}

	if lerr := m.Registry.SetLocked(rec.Path, true); lerr != nil {
		return result, fmt.Errorf("vault sealed but registry not updated: %w", lerr)
	}
	return result, err
}

// UnlockVault opens a locked vault. A vault whose open failed part way
// stays locked since its container is still present.
func (m *Manager) UnlockVault(ctx context.Context, dir string, password []byte, strategy MergeStrategy) (*OpenResult, error) {
	rec, unlock, err := m.acquire(dir)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if !rec.Locked {
		return nil, fmt.Errorf("%s: %w", rec.Path, verrors.ErrVaultUnlocked)
	}

	result, err := m.Engine.Open(ctx, vaultOf(rec), password, strategy)
	if err != nil {
		return result, err
	}

	if err := m.Registry.SetLocked(rec.Path, false); err != nil {
		return result, fmt.Errorf("vault opened but registry not updated: %w", err)
	}
	return result, nil
}

// ListVaults returns every registered vault ordered by path.
func (m *Manager) ListVaults() ([]VaultInfo, error) {
	records, err := m.Registry.List()
	if err != nil {
		return nil, err
	}

	vaults := make([]VaultInfo, 0, len(records))
	for _, rec := range records {
		vaults = append(vaults, VaultInfo{Name: rec.Name, Path: rec.Path, IsLocked: rec.Locked})
	}
	return vaults, nil
}

// RemoveVault forgets an unlocked vault and returns the removed record.
// The directory and its files are left alone.
func (m *Manager) RemoveVault(dir string) (*storage.Record, error) {
	rec, unlock, err := m.acquire(dir)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if rec.Locked {
		return nil, fmt.Errorf("%s: %w", rec.Path, verrors.ErrVaultLocked)
	}

	if err := m.Registry.Delete(rec.Path); err != nil {
		return nil, err
	}

	if err := m.Registry.Compact(); err != nil {
		m.Log.Warnf("failed to compact registry: %v", err)
	}
	return rec, nil
}

// Record returns the registry entry for dir.
func (m *Manager) Record(dir string) (*storage.Record, error) {
	return m.Registry.Get(dir)
}

// VerifyPassword checks password against the vault's credential.
func (m *Manager) VerifyPassword(dir string, password []byte) error {
	rec, err := m.Registry.Get(dir)
	if err != nil {
		return err
	}
	return verifyPassword(rec.Credential(), password)
}

// Status reports the registry state, the container and git hygiene of a vault.
func (m *Manager) Status(ctx context.Context, dir string) (*StatusReport, error) {
	rec, err := m.Registry.Get(dir)
	if err != nil {
		return nil, err
	}

	report := &StatusReport{Record: rec}

	root, err := security.New(rec.Path)
	if err != nil {
		return nil, verrors.NewIOError("open", rec.Path, verrors.ErrDirectoryUnreadable, err)
	}
	defer root.Close()

	if info, err := root.Lstat(ContainerName); err == nil {
		report.ContainerPresent = true
		report.ContainerSize = info.Size()
	} else if !verrors.Is(err, os.ErrNotExist) {
		return nil, verrors.NewIOError("stat", root.Join(ContainerName), nil, err)
	}

	entries, err := root.ReadDir()
	if err != nil {
		return nil, verrors.NewIOError("readdir", rec.Path, verrors.ErrDirectoryUnreadable, err)
	}
	for _, entry := range entries {
		if security.ValidateName(entry.Name()) != nil || !entry.Type().IsRegular() || entry.Name() == ContainerName {
			continue
		}
		report.PlainFiles = append(report.PlainFiles, entry.Name())
	}

	report.Git, err = git.CheckVault(ctx, rec.Path, report.PlainFiles, ContainerName)
	if err != nil {
		return nil, err
	}

	return report, nil
}

// Diff decrypts a locked vault in memory and compares each entry with the
// local file of the same name. Nothing on disk changes.
func (m *Manager) Diff(ctx context.Context, dir string, password []byte) ([]FileDiff, error) {
	rec, unlock, err := m.acquire(dir)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if !rec.Locked {
		return nil, fmt.Errorf("%s: %w", rec.Path, verrors.ErrVaultUnlocked)
	}

	files, err := m.Engine.Peek(ctx, vaultOf(rec), password)
	if err != nil {
		return nil, err
	}
	defer ClearFiles(files)

	root, err := security.New(rec.Path)
	if err != nil {
		return nil, verrors.NewIOError("open", rec.Path, nil, err)
	}
	defer root.Close()

	diffs := make([]FileDiff, 0, len(files))
	for _, f := range files {
		d := FileDiff{Name: f.Name}

		local, err := root.ReadFile(f.Name)
		if verrors.Is(err, os.ErrNotExist) {
			diffs = append(diffs, d)
			continue
		}
		if err != nil {
			return nil, verrors.NewIOError("read", root.Join(f.Name), nil, err)
		}
		d.LocalExists = true
		d.Identical = CompareFiles(f.Contents, local)
		if !d.Identical {
			d.Diff, err = GenerateUnifiedDiff(f.Name, f.Contents, local)
			if err != nil {
				crypto.ClearBytes(local)
				return nil, err
			}
		}
		crypto.ClearBytes(local)
		diffs = append(diffs, d)
	}

	return diffs, nil
}

// acquire takes the per-path lock and then loads the record, so the state
// checked is the state operated on.
func (m *Manager) acquire(dir string) (*storage.Record, func(), error) {
	path, err := storage.CanonicalPath(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}

	unlock := vaultLocks.Lock(path)
	rec, err := m.Registry.Get(path)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return rec, unlock, nil
}
