// Package git checks whether a vault directory leaks plaintext through git.
//
// Locking a vault deletes its plaintext files, but anything already
// committed stays in the repository history. CheckVault reports such
// files so the user can untrack them.
package git
