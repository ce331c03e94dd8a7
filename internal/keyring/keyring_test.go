package keyring

import (
	"errors"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestStore_SaveGetDelete(t *testing.T) {
	keyring.MockInit()
	store := Store{}

	if store.Has("vault-1") {
		t.Fatal("empty keyring should not have a password")
	}
	if _, err := store.Get("vault-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.Save("vault-1", []byte("correct horse")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := store.Get("vault-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "correct horse" {
		t.Errorf("password mismatch: %q", got)
	}
	if !store.Has("vault-1") {
		t.Error("Has should report the stored password")
	}

	if err := store.Delete("vault-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if store.Has("vault-1") {
		t.Error("password should be gone after Delete")
	}
	if err := store.Delete("vault-1"); err != nil {
		t.Errorf("deleting a missing entry should succeed, got %v", err)
	}
}

func TestStore_ServiceIsolation(t *testing.T) {
	keyring.MockInit()

	if err := (Store{Service: "one"}).Save("v", []byte("a")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if (Store{Service: "two"}).Has("v") {
		t.Error("different services should not share entries")
	}
}
