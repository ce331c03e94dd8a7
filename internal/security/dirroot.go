package security

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrPathEscapes  = errors.New("path escapes vault directory")
	ErrAbsolutePath = errors.New("absolute paths are not allowed")
	ErrEmptyPath    = errors.New("empty path not allowed")
	ErrNotBaseName  = errors.New("name must not contain a directory separator")
	ErrHiddenName   = errors.New("hidden names are not allowed")
)

// Temporary files are ".dirvault-<uuid>.tmp", 50 bytes whatever the target name.
const (
	tempPrefix      = ".dirvault-"
	tempSuffix      = ".tmp"
	maxTempAttempts = 100
)

// DirRoot confines file operations to a single vault directory using
// the os.Root API. Vaults are flat, so every name handled here is a single
// path component.
type DirRoot struct {
	root *os.Root
	path string
}

// New opens a DirRoot for the directory at the given path.
func New(dirPath string) (*DirRoot, error) {
	absPath, err := filepath.Abs(dirPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	root, err := os.OpenRoot(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open vault directory: %w", err)
	}

	return &DirRoot{
		root: root,
		path: absPath,
	}, nil
}

// Close releases resources held by the DirRoot.
func (d *DirRoot) Close() error {
	if d.root != nil {
		return d.root.Close()
	}
	return nil
}

// Path returns the absolute directory path.
func (d *DirRoot) Path() string {
	return d.path
}

// Join returns the absolute path of name inside the directory, for messages.
func (d *DirRoot) Join(name string) string {
	return filepath.Join(d.path, name)
}

// ValidateName accepts a name only if it denotes an entry directly inside the
// directory. It rejects:
// - Empty names
// - Absolute paths
// - Names containing a separator or escaping with ..
// - Hidden names (leading dot), which are never packed
func ValidateName(name string) error {
	if name == "" {
		return ErrEmptyPath
	}
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return fmt.Errorf("%w: %s", ErrAbsolutePath, name)
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %s", ErrNotBaseName, name)
	}
	// Covers "." and ".."
	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: %s", ErrHiddenName, name)
	}
	if !filepath.IsLocal(name) {
		return fmt.Errorf("%w: %s", ErrPathEscapes, name)
	}
	return nil
}

// validateInternal is ValidateName without the hidden-name rule, for
// dirvault's own dot-prefixed temporaries.
func validateInternal(name string) error {
	if err := ValidateName(name); err != nil && !errors.Is(err, ErrHiddenName) {
		return err
	}
	if name == "." || name == ".." {
		return fmt.Errorf("%w: %s", ErrPathEscapes, name)
	}
	return nil
}

// ReadDir lists the directory.
func (d *DirRoot) ReadDir() ([]fs.DirEntry, error) {
	return fs.ReadDir(d.root.FS(), ".")
}

// ReadFile reads a file directly inside the directory.
func (d *DirRoot) ReadFile(name string) ([]byte, error) {
	if err := validateInternal(name); err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	return d.root.ReadFile(name)
}

// Lstat stats a name inside the directory without following symlinks.
func (d *DirRoot) Lstat(name string) (os.FileInfo, error) {
	if err := validateInternal(name); err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	return d.root.Lstat(name)
}

// WriteFile writes a file directly inside the directory.
func (d *DirRoot) WriteFile(name string, data []byte, perm os.FileMode) error {
	if err := validateInternal(name); err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	return d.root.WriteFile(name, data, perm)
}

// WriteFileAtomic writes data to a fresh temporary name, syncs it and
// renames it over name, so readers see either the old file or the complete
// new one. The temporary name has a fixed length and is created exclusively,
// so it never clobbers an existing entry.
func (d *DirRoot) WriteFileAtomic(name string, data []byte, perm os.FileMode) error {
	if err := validateInternal(name); err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	f, tmp, err := d.createTemp(perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		d.root.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		d.root.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		d.root.Remove(tmp)
		return err
	}
	if err := d.root.Rename(tmp, name); err != nil {
		d.root.Remove(tmp)
		return err
	}
	return nil
}

// createTemp opens a new hidden file with O_EXCL, retrying on a name clash.
func (d *DirRoot) createTemp(perm os.FileMode) (*os.File, string, error) {
	for range maxTempAttempts {
		tmp := tempPrefix + uuid.NewString() + tempSuffix
		f, err := d.root.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, "", err
		}
		return f, tmp, nil
	}
	return nil, "", fmt.Errorf("failed to create temporary file in %s", d.path)
}

// Remove deletes a name inside the directory.
func (d *DirRoot) Remove(name string) error {
	if err := validateInternal(name); err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	return d.root.Remove(name)
}
