package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nmichlo/playerid-go/pkg/playerid/model"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.json")

	want := sample{Name: "alice", Count: 3}
	if err := SaveJSON(path, want); err != nil {
		t.Fatalf("SaveJSON: %v", err)
	}

	var got sample
	if err := LoadJSON(path, &got); err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}
}

func TestLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	var got sample
	err := LoadJSON(filepath.Join(dir, "missing.json"), &got)
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadSchemaInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	var got sample
	err := LoadJSON(path, &got)
	if !errors.Is(err, model.ErrSchemaInvalid) {
		t.Fatalf("expected ErrSchemaInvalid, got %v", err)
	}
}

// TestSaveKeepsBackupAndLeavesNoTempFiles exercises P7/I6: a successful
// second save must retain a .backup of the first, leave the live file
// holding the second, and leave no temp files behind.
func TestSaveKeepsBackupAndLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.json")

	first := sample{Name: "first", Count: 1}
	second := sample{Name: "second", Count: 2}

	if err := SaveJSON(path, first); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := SaveJSON(path, second); err != nil {
		t.Fatalf("second save: %v", err)
	}

	var gotLive sample
	if err := LoadJSON(path, &gotLive); err != nil {
		t.Fatalf("load live: %v", err)
	}
	if gotLive != second {
		t.Fatalf("live file mismatch: got %+v want %+v", gotLive, second)
	}

	var gotBackup sample
	if err := LoadJSON(path+".backup", &gotBackup); err != nil {
		t.Fatalf("load backup: %v", err)
	}
	if gotBackup != first {
		t.Fatalf("backup file mismatch: got %+v want %+v", gotBackup, first)
	}

	// No leftover temp files should remain in the directory.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		name := e.Name()
		if name != "data.json" && name != "data.json.backup" {
			t.Fatalf("unexpected leftover file: %s", name)
		}
	}
}

func TestBoltBackendRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.db")

	backend, err := OpenBoltBackend(path)
	if err != nil {
		t.Fatalf("OpenBoltBackend: %v", err)
	}
	defer backend.Close()

	if err := backend.Save("gallery", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := backend.Load("gallery")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != `{"a":1}` {
		t.Fatalf("got %q", got)
	}

	_, err = backend.Load("missing")
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
