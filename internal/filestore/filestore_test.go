package filestore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndPath(t *testing.T) {
	store, err := New(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	name, err := store.Save("senaste-arsredovisning-2023-12-31.pdf", []byte("%PDF"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if name == "" {
		t.Fatalf("empty stored name")
	}

	path, err := store.Path(name)
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "%PDF" {
		t.Fatalf("stored content wrong: %v %q", err, data)
	}

	// Two saves of the same base must not collide.
	other, err := store.Save("senaste-arsredovisning-2023-12-31.pdf", []byte("x"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if other == name {
		t.Fatalf("expected unique names, got %q twice", name)
	}
}

func TestPathRejectsTraversal(t *testing.T) {
	store, err := New(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, name := range []string{"", "../secret", "a/b.pdf", ".hidden", "..", "dir\\x"} {
		if _, err := store.Path(name); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Path(%q): expected ErrNotFound, got %v", name, err)
		}
	}
}

func TestSweepOnceRemovesExpiredOnly(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir, time.Hour)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	oldName, err := store.Save("old.pdf", []byte("old"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	freshName, err := store.Save("fresh.pdf", []byte("fresh"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(filepath.Join(dir, oldName), past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	removed, err := store.SweepOnce()
	if err != nil {
		t.Fatalf("SweepOnce: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}
	if _, err := store.Path(oldName); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired file still resolvable")
	}
	if _, err := store.Path(freshName); err != nil {
		t.Fatalf("fresh file removed: %v", err)
	}
}

func TestSweepDisabledWithoutTTL(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	name, err := store.Save("keep.pdf", []byte("keep"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(filepath.Join(dir, name), past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	removed, err := store.SweepOnce()
	if err != nil || removed != 0 {
		t.Fatalf("expected no removals, got %d (%v)", removed, err)
	}
}
