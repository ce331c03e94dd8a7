// Package storage provides the BBolt-backed vault registry for dirvault.
//
// Database structure uses two buckets:
//   - meta: schema version and timestamps
//   - vaults: one JSON record per vault, keyed by canonical directory path
//
// A record holds the vault's name, its credential (Argon2id hash and salt),
// whether it is locked and whether its container is permuted. Plaintext and
// keys never touch the registry.
//
// BBolt holds an exclusive file lock while the registry is open, which keeps
// two dirvault processes from sealing or opening vaults at the same time.
package storage
