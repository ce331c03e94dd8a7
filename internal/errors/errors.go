package errors

import (
	"errors"
	"fmt"
)

// Codec and crypto errors.
var (
	// ErrFormat indicates a malformed container, blob or password hash.
	ErrFormat = errors.New("malformed vault data")

	// ErrCrypto indicates that authenticated decryption failed. The cause
	// (wrong key, tampered nonce, ciphertext or tag) is deliberately not reported.
	ErrCrypto = errors.New("decryption failed")

	// ErrPasswordMismatch indicates the password did not verify against the stored hash.
	ErrPasswordMismatch = errors.New("wrong password")

	// ErrCapacity indicates the input does not fit the packing format.
	ErrCapacity = errors.New("vault capacity exceeded")
)

// Filesystem errors. They are reported through IOError so the path is never lost.
var (
	// ErrIO is the category shared by every filesystem failure.
	ErrIO = errors.New("i/o error")

	// ErrDirectoryUnreadable indicates the vault directory could not be listed.
	ErrDirectoryUnreadable = errors.New("directory is empty or unreadable")

	// ErrContainerNotFound indicates the vault directory holds no container.
	ErrContainerNotFound = errors.New("vault container not found")

	// ErrWrite indicates a recovered file could not be written.
	ErrWrite = errors.New("cannot write file")

	// ErrAlreadySealed indicates the directory already holds a container.
	ErrAlreadySealed = errors.New("directory already holds a vault container")
)

// Registry errors.
var (
	// ErrVaultNotFound indicates no vault is registered for the path.
	ErrVaultNotFound = errors.New("vault not registered")

	// ErrVaultExists indicates the path is already registered as a vault.
	ErrVaultExists = errors.New("path already added as a vault")

	// ErrVaultLocked indicates the operation needs an unlocked vault.
	ErrVaultLocked = errors.New("vault is locked")

	// ErrVaultUnlocked indicates the operation needs a locked vault.
	ErrVaultUnlocked = errors.New("vault is not locked")
)

// IOError records a filesystem failure together with the path it happened on.
// Kind narrows ErrIO to a specific failure such as ErrWrite.
type IOError struct {
	Op   string
	Path string
	Kind error
	Err  error
}

func (e *IOError) Error() string {
	if e.Kind != nil {
		return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap exposes ErrIO, the Kind sentinel and the underlying error.
func (e *IOError) Unwrap() []error {
	errs := []error{ErrIO}
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewIOError is shorthand for building an IOError.
func NewIOError(op, path string, kind, err error) *IOError {
	return &IOError{Op: op, Path: path, Kind: kind, Err: err}
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}
