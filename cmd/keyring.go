package cmd

import (
	"fmt"
	"os"

	"github.com/illarion/dirvault/internal/core"
	"github.com/illarion/dirvault/internal/crypto"
)

// KeyringSave saves the vault password to the OS keyring
func KeyringSave(dir string) {
	s := openSession()
	defer s.Close()

	rec := s.record(dir)

	// Prompt for password
	password, err := core.ReadPassword("Enter password: ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	defer crypto.ClearBytes(password)

	// Verify password is correct
	if err := s.manager.VerifyPassword(rec.Path, password); err != nil {
		HandleError(err)
	}

	if err := s.keys.Save(rec.ID, password); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to save to keyring: %s\n", err)
		os.Exit(1)
	}

	fmt.Println("Password saved to keyring")
}

// KeyringDelete removes the vault password from the OS keyring
func KeyringDelete(dir string) {
	s := openSession()
	defer s.Close()

	rec := s.record(dir)

	if !s.keys.Has(rec.ID) {
		fmt.Println("No password stored in keyring")
		return
	}

	if err := s.keys.Delete(rec.ID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to remove from keyring: %s\n", err)
		os.Exit(1)
	}

	fmt.Println("Password removed from keyring")
}

// KeyringStatus checks if a password is stored in the keyring
func KeyringStatus(dir string) {
	s := openSession()
	defer s.Close()

	rec := s.record(dir)

	if s.keys.Has(rec.ID) {
		fmt.Println("Password: stored in keyring")
	} else {
		fmt.Println("Password: not stored")
	}
	if !s.settings.UseKeyring {
		fmt.Println("Keyring use is disabled in settings")
	}
}
