// Package security keeps dirvault's file operations inside the vault directory.
//
// Names recovered from a decrypted container are attacker-influenced if the
// container was built by someone else. Every such name is validated with
// ValidateName and written through os.Root, so a crafted entry such as
// "../.bashrc" can never land outside the vault directory.
package security
