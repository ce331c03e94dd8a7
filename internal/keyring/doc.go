// Package keyring caches vault passwords in the operating system keyring
// (Keychain, Secret Service, Windows Credential Manager).
//
// Entries are keyed by the vault's registry ID rather than its path, so a
// moved directory re-registered under a new record never picks up a stale
// password.
package keyring
