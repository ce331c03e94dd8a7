package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/illarion/dirvault/internal/config"
	"github.com/illarion/dirvault/internal/core"
	"github.com/illarion/dirvault/internal/crypto"
	verrors "github.com/illarion/dirvault/internal/errors"
	"github.com/illarion/dirvault/internal/keyring"
	"github.com/illarion/dirvault/internal/logging"
	"github.com/illarion/dirvault/internal/storage"
)

// Options holds the global flags, set by main before any command runs.
var Options struct {
	Verbose bool
	Debug   bool
}

var (
	okMark   = color.New(color.FgGreen).Sprint("✓")
	failMark = color.New(color.FgRed).Sprint("✗")
	lockMark = color.New(color.FgYellow).Sprint("locked")
	openMark = color.New(color.FgGreen).Sprint("unlocked")
)

func logger() logging.Logger {
	return logging.Logger{Verbose: Options.Verbose, Debug: Options.Debug}
}

// session bundles what every command needs: settings, the registry and a manager over it.
type session struct {
	settings config.Settings
	registry *storage.Registry
	manager  *core.Manager
	keys     keyring.Store
	log      logging.Logger
}

// openSession loads settings and opens the registry, exiting on failure.
func openSession() *session {
	log := logger()

	dir, err := config.Dir()
	if err != nil {
		HandleError(err)
	}
	settings, err := config.Load(dir)
	if err != nil {
		HandleError(err)
	}
	log.Debugf("config dir %s, registry %s", dir, settings.RegistryPath)

	registry, err := storage.Open(settings.RegistryPath)
	if err != nil {
		HandleError(err)
	}

	return &session{
		settings: settings,
		registry: registry,
		manager:  core.NewManager(registry, settings.Argon2, settings.Shuffle, log),
		keys:     keyring.Store{},
		log:      log,
	}
}

func (s *session) Close() {
	if err := s.registry.Close(); err != nil {
		s.log.Warnf("failed to close registry: %v", err)
	}
}

// record looks up the vault for dir, exiting when it is not registered.
func (s *session) record(dir string) *storage.Record {
	rec, err := s.manager.Record(dir)
	if err != nil {
		HandleError(err)
	}
	return rec
}

// PasswordSource tells where a password came from.
type PasswordSource int

const (
	SourceEnv PasswordSource = iota
	SourceKeyring
	SourcePrompt
)

// GetPassword retrieves password from environment or prompts user
// The caller is responsible for calling crypto.ClearBytes on the returned password
func GetPassword(prompt string) ([]byte, PasswordSource, error) {
	// Try environment variable first
	if password := config.PasswordFromEnv(); password != nil {
		return password, SourceEnv, nil
	}

	password, err := core.ReadPassword(prompt)
	if err != nil {
		return nil, SourcePrompt, err
	}
	return password, SourcePrompt, nil
}

// GetPasswordForCreate checks the environment first, then prompts with confirmation
func GetPasswordForCreate() ([]byte, PasswordSource, error) {
	if password := config.PasswordFromEnv(); password != nil {
		return password, SourceEnv, nil
	}

	password, err := core.ReadPasswordConfirm()
	return password, SourcePrompt, err
}

// GetPasswordWithRetry tries the environment, then the keyring, then the
// terminal. A keyring entry that no longer verifies is dropped and the user
// is prompted instead.
func (s *session) GetPasswordWithRetry(prompt string, rec *storage.Record) ([]byte, PasswordSource, error) {
	if password := config.PasswordFromEnv(); password != nil {
		return password, SourceEnv, nil
	}

	if s.settings.UseKeyring {
		password, err := s.keys.Get(rec.ID)
		switch {
		case err == nil:
			if s.manager.VerifyPassword(rec.Path, password) == nil {
				s.log.Infof("using password from keyring")
				return password, SourceKeyring, nil
			}
			crypto.ClearBytes(password)
			s.log.Warnf("password stored in keyring for %s is stale, removing it", rec.Name)
			if err := s.keys.Delete(rec.ID); err != nil {
				s.log.Warnf("failed to remove keyring entry: %v", err)
			}
		case !verrors.Is(err, keyring.ErrNotFound):
			s.log.Debugf("keyring unavailable: %v", err)
		}
	}

	return GetPassword(prompt)
}

// OfferToSavePassword asks whether a typed password should go to the keyring.
func (s *session) OfferToSavePassword(rec *storage.Record, password []byte) {
	if !s.settings.UseKeyring || !term.IsTerminal(int(os.Stdin.Fd())) {
		return
	}
	if s.keys.Has(rec.ID) {
		return
	}

	fmt.Printf("Save password to OS keyring? [y/N]: ")
	var response string
	fmt.Scanln(&response)
	response = strings.ToLower(strings.TrimSpace(response))
	if response != "y" && response != "yes" {
		return
	}

	if err := s.keys.Save(rec.ID, password); err != nil {
		s.log.Warnf("failed to save to keyring: %v", err)
		return
	}
	fmt.Println("Password saved to keyring")
}

// startSpinner shows progress on stderr while Argon2 and AES run. It stays
// silent when stderr is not a terminal.
func startSpinner(suffix string) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " " + suffix
	if term.IsTerminal(int(os.Stderr.Fd())) && !Options.Debug {
		s.Start()
	}
	return s
}

// HandleError handles common errors consistently
func HandleError(err error) {
	prefix := color.New(color.FgRed).Sprint("Error:")

	switch {
	case verrors.Is(err, verrors.ErrPasswordMismatch):
		fmt.Fprintf(os.Stderr, "%s wrong password\n", prefix)
	case verrors.Is(err, verrors.ErrVaultNotFound):
		fmt.Fprintf(os.Stderr, "%s %s\n", prefix, err)
		fmt.Fprintf(os.Stderr, "Run 'dirvault create <dir>' first\n")
	case verrors.Is(err, verrors.ErrVaultExists):
		fmt.Fprintf(os.Stderr, "%s %s\n", prefix, err)
		fmt.Fprintf(os.Stderr, "Use 'dirvault status' to see current state\n")
	case verrors.Is(err, verrors.ErrVaultLocked):
		fmt.Fprintf(os.Stderr, "%s %s\n", prefix, err)
		fmt.Fprintf(os.Stderr, "Run 'dirvault unlock' first\n")
	case verrors.Is(err, verrors.ErrVaultUnlocked):
		fmt.Fprintf(os.Stderr, "%s %s\n", prefix, err)
		fmt.Fprintf(os.Stderr, "Run 'dirvault lock' first\n")
	case verrors.Is(err, verrors.ErrCapacity):
		fmt.Fprintf(os.Stderr, "%s %s\n", prefix, err)
		fmt.Fprintf(os.Stderr, "A vault holds at most 31 files with names up to 255 bytes\n")
	case verrors.Is(err, verrors.ErrCrypto):
		fmt.Fprintf(os.Stderr, "%s vault container is damaged or was sealed under a different key\n", prefix)
	case verrors.Is(err, verrors.ErrWrite):
		fmt.Fprintf(os.Stderr, "%s %s\n", prefix, err)
		fmt.Fprintf(os.Stderr, "Files listed above were restored; the container was kept and the vault stays locked\n")
	case verrors.Is(err, core.ErrConflict):
		fmt.Fprintf(os.Stderr, "%s %s\n", prefix, err)
		fmt.Fprintf(os.Stderr, "Unlock aborted, nothing was written\n")
	default:
		fmt.Fprintf(os.Stderr, "%s %s\n", prefix, err)
	}
	os.Exit(1)
}
