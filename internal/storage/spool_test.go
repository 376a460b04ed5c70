// spool_test.go - Tests for the local upload spool
package storage

import (
	"io"
	"os"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	return store
}

func TestLocalStore_SaveAndOpen(t *testing.T) {
	store := newTestStore(t)

	info, err := store.Save("midterm.xlsx", strings.NewReader("spreadsheet-bytes"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if info.ID == "" {
		t.Error("expected non-empty ID")
	}
	if info.Size != int64(len("spreadsheet-bytes")) {
		t.Errorf("expected size %d, got %d", len("spreadsheet-bytes"), info.Size)
	}

	rc, err := store.Open(info.ID)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("reading spooled content: %v", err)
	}
	if string(data) != "spreadsheet-bytes" {
		t.Errorf("expected content round-trip, got %q", data)
	}
}

func TestLocalStore_Get(t *testing.T) {
	store := newTestStore(t)
	info, _ := store.Save("midterm.xlsx", strings.NewReader("x"))

	got, err := store.Get(info.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "midterm.xlsx" {
		t.Errorf("expected name midterm.xlsx, got %s", got.Name)
	}

	if _, err := store.Get("missing"); err == nil {
		t.Error("expected error for unknown id")
	}
}

func TestLocalStore_ListIsNewestFirstAndLimited(t *testing.T) {
	store := newTestStore(t)

	for _, name := range []string{"a.xlsx", "b.xlsx", "c.xlsx"} {
		if _, err := store.Save(name, strings.NewReader("x")); err != nil {
			t.Fatalf("Save(%s): %v", name, err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	list, err := store.List(2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 files, got %d", len(list))
	}
	if list[0].Name != "c.xlsx" || list[1].Name != "b.xlsx" {
		t.Errorf("expected newest first, got %s, %s", list[0].Name, list[1].Name)
	}
}

func TestLocalStore_Delete(t *testing.T) {
	store := newTestStore(t)
	info, _ := store.Save("midterm.xlsx", strings.NewReader("x"))
	path, _ := store.GetFilePath(info.ID)

	if err := store.Delete(info.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(info.ID); err == nil {
		t.Error("expected metadata gone after delete")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected spooled file removed from disk")
	}

	if err := store.Delete(info.ID); err == nil {
		t.Error("expected error deleting twice")
	}
}
