package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/illarion/dirvault/internal/crypto"
	verrors "github.com/illarion/dirvault/internal/errors"
	"github.com/illarion/dirvault/internal/pack"
)

// testParams keep Argon2id cheap in tests.
var testParams = crypto.Params{Memory: 64, Time: 1, Threads: 1}

func newTestVault(t *testing.T, password string, shuffled bool) Vault {
	t.Helper()
	cred, err := crypto.HashAndSalt([]byte(password), testParams)
	if err != nil {
		t.Fatalf("HashAndSalt failed: %v", err)
	}
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("EvalSymlinks failed: %v", err)
	}
	return Vault{Path: dir, Credential: cred, Shuffled: shuffled}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create %s: %v", name, err)
	}
}

func readFile(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("Failed to read %s: %v", name, err)
	}
	return string(data)
}

func exists(dir, name string) bool {
	_, err := os.Lstat(filepath.Join(dir, name))
	return err == nil
}

func TestSealOpenScenario(t *testing.T) {
	for _, shuffled := range []bool{false, true} {
		t.Run(fmt.Sprintf("shuffled=%v", shuffled), func(t *testing.T) {
			ctx := context.Background()
			v := newTestVault(t, "correct horse", shuffled)
			e := &Engine{}

			writeFile(t, v.Path, "a.txt", "hi!")
			writeFile(t, v.Path, "b.txt", "")

			sealed, err := e.Seal(ctx, v, []byte("correct horse"))
			if err != nil {
				t.Fatalf("Seal failed: %v", err)
			}
			if len(sealed.Files) != 2 || sealed.Files[0] != "a.txt" || sealed.Files[1] != "b.txt" {
				t.Errorf("unexpected packed files: %v", sealed.Files)
			}

			if exists(v.Path, "a.txt") || exists(v.Path, "b.txt") {
				t.Error("plaintext should be removed after seal")
			}
			container, err := os.ReadFile(filepath.Join(v.Path, ContainerName))
			if err != nil {
				t.Fatalf("container should exist: %v", err)
			}
			if len(container) != sealed.ContainerSize {
				t.Errorf("container size %d, reported %d", len(container), sealed.ContainerSize)
			}

			// Wrong password leaves the container alone
			_, err = e.Open(ctx, v, []byte("wrong password"), StrategyUseVault)
			if !errors.Is(err, verrors.ErrPasswordMismatch) {
				t.Fatalf("Expected ErrPasswordMismatch, got %v", err)
			}
			after, err := os.ReadFile(filepath.Join(v.Path, ContainerName))
			if err != nil || !bytes.Equal(after, container) {
				t.Fatal("container should be untouched after a wrong password")
			}

			opened, err := e.Open(ctx, v, []byte("correct horse"), StrategyUseVault)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			if len(opened.Written) != 2 {
				t.Errorf("Expected 2 restored files, got %v", opened.Written)
			}
			if got := readFile(t, v.Path, "a.txt"); got != "hi!" {
				t.Errorf("a.txt = %q, want %q", got, "hi!")
			}
			if got := readFile(t, v.Path, "b.txt"); got != "" {
				t.Errorf("b.txt = %q, want empty", got)
			}
			if exists(v.Path, ContainerName) {
				t.Error("container should be removed after open")
			}

			info, err := os.Stat(filepath.Join(v.Path, "a.txt"))
			if err != nil {
				t.Fatal(err)
			}
			if info.Mode().Perm() != FilePermSecure {
				t.Errorf("restored file mode %v, want %v", info.Mode().Perm(), os.FileMode(FilePermSecure))
			}
		})
	}
}

func TestSealWrongPassword(t *testing.T) {
	v := newTestVault(t, "correct horse", false)
	writeFile(t, v.Path, "a.txt", "hi!")

	_, err := (&Engine{}).Seal(context.Background(), v, []byte("nope"))
	if !errors.Is(err, verrors.ErrPasswordMismatch) {
		t.Fatalf("Expected ErrPasswordMismatch, got %v", err)
	}
	if !exists(v.Path, "a.txt") || exists(v.Path, ContainerName) {
		t.Error("a refused seal must not touch the directory")
	}
}

func TestSealEmptyDirectory(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t, "pw", false)
	e := &Engine{}

	if _, err := e.Seal(ctx, v, []byte("pw")); err != nil {
		t.Fatalf("Seal of empty directory failed: %v", err)
	}
	files, err := e.Peek(ctx, v, []byte("pw"))
	if err != nil {
		t.Fatalf("Peek failed: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("Expected no files, got %d", len(files))
	}
}

func TestSealSkipsHiddenAndDirectories(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t, "pw", false)
	e := &Engine{}

	writeFile(t, v.Path, ".env", "SECRET=1")
	writeFile(t, v.Path, "visible", "data")
	if err := os.Mkdir(filepath.Join(v.Path, "sub"), 0755); err != nil {
		t.Fatal(err)
	}

	result, err := e.Seal(ctx, v, []byte("pw"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if len(result.Files) != 1 || result.Files[0] != "visible" {
		t.Errorf("unexpected packed files: %v", result.Files)
	}
	if !exists(v.Path, ".env") || !exists(v.Path, "sub") {
		t.Error("hidden files and directories must stay in place")
	}
}

func TestSealAlreadySealed(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t, "pw", false)
	e := &Engine{}
	writeFile(t, v.Path, "a", "1")

	if _, err := e.Seal(ctx, v, []byte("pw")); err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	writeFile(t, v.Path, "b", "2")

	_, err := e.Seal(ctx, v, []byte("pw"))
	if !errors.Is(err, verrors.ErrAlreadySealed) {
		t.Fatalf("Expected ErrAlreadySealed, got %v", err)
	}
	if !exists(v.Path, "b") {
		t.Error("b should not be removed by a refused seal")
	}
}

func TestSealCapacity(t *testing.T) {
	ctx := context.Background()
	e := &Engine{}

	v := newTestVault(t, "pw", false)
	for i := range pack.MaxFiles {
		writeFile(t, v.Path, fmt.Sprintf("f%02d", i), "x")
	}
	if _, err := e.Seal(ctx, v, []byte("pw")); err != nil {
		t.Fatalf("Seal of %d files failed: %v", pack.MaxFiles, err)
	}

	v = newTestVault(t, "pw", false)
	for i := range pack.MaxFiles + 1 {
		writeFile(t, v.Path, fmt.Sprintf("f%02d", i), "x")
	}
	_, err := e.Seal(ctx, v, []byte("pw"))
	if !errors.Is(err, verrors.ErrCapacity) {
		t.Fatalf("Expected ErrCapacity, got %v", err)
	}
	if exists(v.Path, ContainerName) || !exists(v.Path, "f00") {
		t.Error("a refused seal must not touch the directory")
	}
}

func TestOpenContainerNotFound(t *testing.T) {
	v := newTestVault(t, "pw", false)

	_, err := (&Engine{}).Open(context.Background(), v, []byte("pw"), StrategyUseVault)
	if !errors.Is(err, verrors.ErrContainerNotFound) {
		t.Fatalf("Expected ErrContainerNotFound, got %v", err)
	}
	var ioErr *verrors.IOError
	if !errors.As(err, &ioErr) || ioErr.Path != filepath.Join(v.Path, ContainerName) {
		t.Errorf("error should carry the container path, got %v", err)
	}
}

func TestOpenTamperedContainer(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t, "pw", true)
	e := &Engine{}
	writeFile(t, v.Path, "a", "secret")

	if _, err := e.Seal(ctx, v, []byte("pw")); err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	path := filepath.Join(v.Path, ContainerName)
	container, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	container[len(container)-1] ^= 0x01
	if err := os.WriteFile(path, container, 0600); err != nil {
		t.Fatal(err)
	}

	_, err = e.Open(ctx, v, []byte("pw"), StrategyUseVault)
	if !errors.Is(err, verrors.ErrCrypto) {
		t.Fatalf("Expected ErrCrypto, got %v", err)
	}
	if exists(v.Path, "a") {
		t.Error("nothing should be written from a tampered container")
	}
}

func TestOpenWrongSalt(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t, "pw", false)
	e := &Engine{}
	writeFile(t, v.Path, "a", "secret")

	if _, err := e.Seal(ctx, v, []byte("pw")); err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	// Same password hash, different salt: the key silently changes
	other, err := crypto.HashAndSalt([]byte("pw"), testParams)
	if err != nil {
		t.Fatal(err)
	}
	v.Credential.Salt = other.Salt

	_, err = e.Open(ctx, v, []byte("pw"), StrategyUseVault)
	if !errors.Is(err, verrors.ErrCrypto) {
		t.Fatalf("Expected ErrCrypto, got %v", err)
	}
}

func TestOpenShuffleFlagMismatch(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t, "pw", true)
	e := &Engine{}
	writeFile(t, v.Path, "a.txt", "some longer content to permute")

	if _, err := e.Seal(ctx, v, []byte("pw")); err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	v.Shuffled = false
	if _, err := e.Peek(ctx, v, []byte("pw")); !errors.Is(err, verrors.ErrFormat) {
		t.Fatalf("Expected ErrFormat for unpermuted blob, got %v", err)
	}
}

func sealWith(t *testing.T, e *Engine, v Vault, files map[string]string) {
	t.Helper()
	for name, content := range files {
		writeFile(t, v.Path, name, content)
	}
	if _, err := e.Seal(context.Background(), v, []byte("pw")); err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
}

func TestOpenConflictStrategies(t *testing.T) {
	ctx := context.Background()

	t.Run("use vault", func(t *testing.T) {
		v := newTestVault(t, "pw", false)
		e := &Engine{}
		sealWith(t, e, v, map[string]string{"a": "vault", "b": "same"})
		writeFile(t, v.Path, "a", "local")
		writeFile(t, v.Path, "b", "same")

		result, err := e.Open(ctx, v, []byte("pw"), StrategyUseVault)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if got := readFile(t, v.Path, "a"); got != "vault" {
			t.Errorf("a = %q, want vault version", got)
		}
		if len(result.Unchanged) != 1 || result.Unchanged[0] != "b" {
			t.Errorf("b should be reported unchanged, got %v", result.Unchanged)
		}
	})

	t.Run("keep both", func(t *testing.T) {
		v := newTestVault(t, "pw", false)
		e := &Engine{}
		sealWith(t, e, v, map[string]string{"a": "vault"})
		writeFile(t, v.Path, "a", "local")
		writeFile(t, v.Path, "a.from-vault", "older copy")

		result, err := e.Open(ctx, v, []byte("pw"), StrategyKeepBoth)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if got := readFile(t, v.Path, "a"); got != "local" {
			t.Errorf("a = %q, local version should be kept", got)
		}
		if result.KeptBoth["a"] != "a.from-vault.1" {
			t.Errorf("vault copy written as %q, want a.from-vault.1", result.KeptBoth["a"])
		}
		if got := readFile(t, v.Path, "a.from-vault.1"); got != "vault" {
			t.Errorf("a.from-vault.1 = %q, want vault version", got)
		}
		if got := readFile(t, v.Path, "a.from-vault"); got != "older copy" {
			t.Errorf("existing a.from-vault was overwritten: %q", got)
		}
	})

	t.Run("abort", func(t *testing.T) {
		v := newTestVault(t, "pw", false)
		e := &Engine{}
		sealWith(t, e, v, map[string]string{"a": "vault", "z": "other"})
		writeFile(t, v.Path, "z", "local")

		_, err := e.Open(ctx, v, []byte("pw"), StrategyAbort)
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("Expected ErrConflict, got %v", err)
		}
		if exists(v.Path, "a") {
			t.Error("abort must not write any file")
		}
		if !exists(v.Path, ContainerName) {
			t.Error("abort must keep the container")
		}
	})

	t.Run("ask", func(t *testing.T) {
		v := newTestVault(t, "pw", false)
		var asked []string
		e := &Engine{Resolve: func(name string, local, vault []byte) (ConflictResolution, error) {
			asked = append(asked, name)
			if string(local) != "local" || string(vault) != "vault" {
				t.Errorf("resolver got local=%q vault=%q", local, vault)
			}
			return ResolutionKeepBoth, nil
		}}
		sealWith(t, e, v, map[string]string{"a": "vault"})
		writeFile(t, v.Path, "a", "local")

		result, err := e.Open(ctx, v, []byte("pw"), StrategyAsk)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if len(asked) != 1 || asked[0] != "a" {
			t.Errorf("resolver calls: %v", asked)
		}
		if result.KeptBoth["a"] != "a.from-vault" {
			t.Errorf("vault copy written as %q", result.KeptBoth["a"])
		}
	})

	t.Run("ask without resolver", func(t *testing.T) {
		v := newTestVault(t, "pw", false)
		e := &Engine{}
		sealWith(t, e, v, map[string]string{"a": "vault"})
		writeFile(t, v.Path, "a", "local")

		if _, err := e.Open(ctx, v, []byte("pw"), StrategyAsk); err == nil {
			t.Fatal("Expected an error without a resolver")
		}
		if !exists(v.Path, ContainerName) {
			t.Error("container must be kept")
		}
	})
}

func TestOpenPartialWrite(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t, "pw", false)
	e := &Engine{}
	sealWith(t, e, v, map[string]string{"a": "1", "b": "2"})

	// A directory in place of b cannot be replaced by a file
	if err := os.Mkdir(filepath.Join(v.Path, "b"), 0700); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(v.Path, "b"), "inner", "x")

	result, err := e.Open(ctx, v, []byte("pw"), StrategyUseVault)
	if !errors.Is(err, verrors.ErrWrite) {
		t.Fatalf("Expected ErrWrite, got %v", err)
	}
	if result == nil || len(result.Written) != 1 || result.Written[0] != "a" {
		t.Fatalf("expected a partial result with a written, got %+v", result)
	}
	if got := readFile(t, v.Path, "a"); got != "1" {
		t.Errorf("a = %q, want 1", got)
	}
	if got := readFile(t, filepath.Join(v.Path, "b"), "inner"); got != "x" {
		t.Errorf("b/inner = %q, directory should be untouched", got)
	}
	if !exists(v.Path, ContainerName) {
		t.Error("container must be kept after a failed write")
	}
	assertNoTempFiles(t, v.Path)
}

func TestSealOpenKeepsHiddenTempLookalikes(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t, "pw", false)
	e := &Engine{}

	hidden := map[string]string{
		".a.txt.tmp":     "user secret notes",
		".vaultfile.tmp": "unrelated",
		".dirvault.tmp":  "also unrelated",
	}
	for name, content := range hidden {
		writeFile(t, v.Path, name, content)
	}
	sealWith(t, e, v, map[string]string{"a.txt": "vault"})

	if _, err := e.Open(ctx, v, []byte("pw"), StrategyUseVault); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if got := readFile(t, v.Path, "a.txt"); got != "vault" {
		t.Errorf("a.txt = %q, want vault", got)
	}
	for name, content := range hidden {
		if got := readFile(t, v.Path, name); got != content {
			t.Errorf("%s = %q, want %q", name, got, content)
		}
	}
	assertNoTempFiles(t, v.Path)
}

func TestSealOpenMaxLengthName(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t, "pw", true)
	e := &Engine{}

	long := strings.Repeat("n", pack.MaxNameLen)
	sealWith(t, e, v, map[string]string{long: "long", "a.txt": "short"})

	result, err := e.Open(ctx, v, []byte("pw"), StrategyUseVault)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if len(result.Written) != 2 {
		t.Errorf("Written = %v, want both files", result.Written)
	}
	if got := readFile(t, v.Path, long); got != "long" {
		t.Errorf("long name = %q, want long", got)
	}
	if got := readFile(t, v.Path, "a.txt"); got != "short" {
		t.Errorf("a.txt = %q, want short", got)
	}
	assertNoTempFiles(t, v.Path)
}

func TestOpenKeepBothLongName(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t, "pw", false)
	e := &Engine{}

	long := strings.Repeat("n", 250)
	sealWith(t, e, v, map[string]string{long: "vault"})
	writeFile(t, v.Path, long, "local")

	result, err := e.Open(ctx, v, []byte("pw"), StrategyKeepBoth)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	target := result.KeptBoth[long]
	if len(target) != pack.MaxNameLen || !strings.HasSuffix(target, fromVaultSuffix) {
		t.Fatalf("vault copy written as %q (%d bytes)", target, len(target))
	}
	if got := readFile(t, v.Path, target); got != "vault" {
		t.Errorf("%s = %q, want vault version", target, got)
	}
	if got := readFile(t, v.Path, long); got != "local" {
		t.Errorf("local version should be kept, got %q", got)
	}
}

func TestKeepBothName(t *testing.T) {
	tests := []struct {
		name   string
		suffix string
		want   string
	}{
		{"a", ".from-vault", "a.from-vault"},
		{strings.Repeat("x", 250), ".from-vault", strings.Repeat("x", 244) + ".from-vault"},
		{strings.Repeat("x", 250), ".from-vault.12", strings.Repeat("x", 241) + ".from-vault.12"},
		// 1 + 2*127 bytes; the cut lands inside a two-byte sequence
		{"a" + strings.Repeat("é", 127), ".from-vault", "a" + strings.Repeat("é", 121) + ".from-vault"},
	}
	for _, tt := range tests {
		got := keepBothName(tt.name, tt.suffix)
		if got != tt.want {
			t.Errorf("keepBothName(%d bytes, %q) = %q, want %q", len(tt.name), tt.suffix, got, tt.want)
		}
		if len(got) > pack.MaxNameLen || !utf8.ValidString(got) {
			t.Errorf("keepBothName(%d bytes, %q) gave an invalid name of %d bytes", len(tt.name), tt.suffix, len(got))
		}
	}
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".dirvault-") {
			t.Errorf("temporary file left behind: %s", entry.Name())
		}
	}
}

func TestOpenRejectsUnsafeNames(t *testing.T) {
	ctx := context.Background()

	for _, name := range []string{"../escape", ".hidden", ContainerName, "a/b"} {
		t.Run(name, func(t *testing.T) {
			v := newTestVault(t, "pw", false)

			blob, err := pack.Encode([]pack.PlainFile{{Name: name, Contents: []byte("x")}})
			if err != nil {
				t.Fatal(err)
			}
			key, err := v.Credential.DeriveKey([]byte("pw"))
			if err != nil {
				t.Fatal(err)
			}
			container, err := crypto.Encrypt(blob, key)
			if err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(filepath.Join(v.Path, ContainerName), container, 0600); err != nil {
				t.Fatal(err)
			}

			_, err = (&Engine{}).Open(ctx, v, []byte("pw"), StrategyUseVault)
			if !errors.Is(err, verrors.ErrFormat) {
				t.Fatalf("Expected ErrFormat, got %v", err)
			}
		})
	}
}

func TestSealCanceledContext(t *testing.T) {
	v := newTestVault(t, "pw", false)
	writeFile(t, v.Path, "a", "1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := (&Engine{}).Seal(ctx, v, []byte("pw")); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if !exists(v.Path, "a") {
		t.Error("canceled seal must not touch the directory")
	}
}
