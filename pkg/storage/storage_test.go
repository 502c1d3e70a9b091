package storage

import (
	"testing"

	"github.com/google/uuid"

	"github.com/prototrack/prototrack/pkg/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(&config.StorageConfig{
		UploadDir:         t.TempDir(),
		AllowedExtensions: []string{"pdf", "txt"},
	})
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	return store
}

func TestSaveAndRead(t *testing.T) {
	store := newTestStore(t)
	key := Key(uuid.New(), "invoice.pdf")

	if err := store.Save(key, []byte("content")); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	data, err := store.Read(key)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if string(data) != "content" {
		t.Fatalf("expected content, got %q", data)
	}
}

func TestKeyIsUniquePerProtocol(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	if Key(a, "report.pdf") == Key(b, "report.pdf") {
		t.Fatalf("expected distinct keys for distinct protocols")
	}
}

func TestKeyFlattensPaths(t *testing.T) {
	id := uuid.New()
	if got, want := Key(id, "../../etc/passwd"), id.String()+"_passwd"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestAllowed(t *testing.T) {
	store := newTestStore(t)

	if !store.Allowed("notes.TXT") {
		t.Fatalf("expected txt to be allowed case-insensitively")
	}
	if store.Allowed("script.sh") {
		t.Fatalf("expected sh to be rejected")
	}
	if store.Allowed("noextension") {
		t.Fatalf("expected extensionless name to be rejected")
	}
}

func TestRemoveMissingIsNoop(t *testing.T) {
	store := newTestStore(t)
	if err := store.Remove("does-not-exist"); err != nil {
		t.Fatalf("Remove() on missing key: %v", err)
	}
}
