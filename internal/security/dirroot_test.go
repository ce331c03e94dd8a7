package security

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"simple file", "test.txt", nil},
		{"spaces and unicode", "my notes ✓.md", nil},
		{"inner dots", "archive.tar.gz", nil},

		{"empty", "", ErrEmptyPath},
		{"absolute", "/etc/passwd", ErrAbsolutePath},
		{"parent", "..", ErrHiddenName},
		{"current", ".", ErrHiddenName},
		{"hidden", ".env", ErrHiddenName},
		{"nested", "a/b.txt", ErrNotBaseName},
		{"traversal", "../outside.txt", ErrNotBaseName},
		{"backslash", `a\b.txt`, ErrNotBaseName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Unexpected error for %q: %v", tt.input, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v for %q, got %v", tt.wantErr, tt.input, err)
			}
		})
	}
}

func TestDirRoot_WriteReadRemove(t *testing.T) {
	tmpDir := t.TempDir()

	root, err := New(tmpDir)
	if err != nil {
		t.Fatalf("Failed to open root: %v", err)
	}
	defer root.Close()

	if err := root.WriteFile("test.txt", []byte("hello"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(tmpDir, "test.txt"))
	if err != nil {
		t.Fatalf("Failed to read written file: %v", err)
	}
	if string(content) != "hello" {
		t.Errorf("Content mismatch: got %q", content)
	}

	content, err = root.ReadFile("test.txt")
	if err != nil || string(content) != "hello" {
		t.Errorf("ReadFile mismatch: %q, %v", content, err)
	}

	if err := root.Remove("test.txt"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "test.txt")); !os.IsNotExist(err) {
		t.Error("File should have been removed")
	}
}

func TestDirRoot_RejectsEscapes(t *testing.T) {
	parent := t.TempDir()
	tmpDir := filepath.Join(parent, "vault")
	if err := os.Mkdir(tmpDir, 0700); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}

	root, err := New(tmpDir)
	if err != nil {
		t.Fatalf("Failed to open root: %v", err)
	}
	defer root.Close()

	for _, name := range []string{"../outside.txt", "/tmp/abs.txt", "sub/inner.txt"} {
		if err := root.WriteFile(name, []byte("bad"), 0600); err == nil {
			t.Errorf("Expected error writing %q", name)
		}
	}
	if _, err := os.Stat(filepath.Join(parent, "outside.txt")); err == nil {
		t.Error("File was created outside the vault directory")
	}
}

func TestDirRoot_SymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	outside := t.TempDir()
	tmpDir := t.TempDir()
	if err := os.Symlink(filepath.Join(outside, "target.txt"), filepath.Join(tmpDir, "link.txt")); err != nil {
		t.Fatalf("Symlink failed: %v", err)
	}

	root, err := New(tmpDir)
	if err != nil {
		t.Fatalf("Failed to open root: %v", err)
	}
	defer root.Close()

	if err := root.WriteFile("link.txt", []byte("bad"), 0600); err == nil {
		t.Error("Expected error writing through a symlink that leaves the directory")
	}
	if _, err := os.Stat(filepath.Join(outside, "target.txt")); err == nil {
		t.Error("File was created outside the vault directory")
	}
}

func TestDirRoot_WriteFileAtomic(t *testing.T) {
	tmpDir := t.TempDir()

	root, err := New(tmpDir)
	if err != nil {
		t.Fatalf("Failed to open root: %v", err)
	}
	defer root.Close()

	if err := root.WriteFileAtomic("vaultfile", []byte("first"), 0600); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}
	if err := root.WriteFileAtomic("vaultfile", []byte("second"), 0600); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(tmpDir, "vaultfile"))
	if err != nil || string(content) != "second" {
		t.Fatalf("Content mismatch: %q, %v", content, err)
	}

	entries, err := root.ReadDir()
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Temporary file left behind: %d entries", len(entries))
	}
}

func TestDirRoot_WriteFileAtomicLeavesOtherFiles(t *testing.T) {
	tmpDir := t.TempDir()

	root, err := New(tmpDir)
	if err != nil {
		t.Fatalf("Failed to open root: %v", err)
	}
	defer root.Close()

	long := strings.Repeat("n", 255)
	others := map[string]string{
		".notes.txt.tmp": "keep me",
		"." + long[:250]: "keep me too",
	}
	for name, content := range others {
		if err := os.WriteFile(filepath.Join(tmpDir, name), []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
	}

	for _, name := range []string{"notes.txt", long} {
		if err := root.WriteFileAtomic(name, []byte("data"), 0600); err != nil {
			t.Fatalf("WriteFileAtomic(%d bytes) failed: %v", len(name), err)
		}
	}

	for name, content := range others {
		got, err := os.ReadFile(filepath.Join(tmpDir, name))
		if err != nil || string(got) != content {
			t.Errorf("%s = %q, %v; want %q", name, got, err, content)
		}
	}

	entries, err := root.ReadDir()
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 4 {
		t.Errorf("expected 4 entries, got %d", len(entries))
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), tempPrefix) {
			t.Errorf("Temporary file left behind: %s", entry.Name())
		}
	}
}
