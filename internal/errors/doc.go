// Package errors provides typed error values for dirvault.
//
// Callers match failures with errors.Is rather than string comparison:
//
//	if errors.Is(err, verrors.ErrPasswordMismatch) {
//	    // ask again
//	}
//
// # Error Categories
//
//   - Format errors: malformed container, blob or password hash (ErrFormat)
//   - Crypto errors: authentication tag rejected (ErrCrypto)
//   - Credential errors: password did not verify (ErrPasswordMismatch)
//   - Capacity errors: more files than the packing format can describe (ErrCapacity)
//   - I/O errors: filesystem failures, always carrying the offending path (IOError)
//   - Registry errors: vault record state (ErrVaultNotFound, ErrVaultLocked, ...)
//
// None of these are transient; nothing in dirvault retries them.
package errors
