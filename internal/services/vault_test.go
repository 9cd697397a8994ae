package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/syncveil/apiserver/internal/storage"
	"github.com/syncveil/apiserver/internal/store"
	"github.com/syncveil/apiserver/types"
)

// spyObjectStore records object keys as they are written and deleted.
type spyObjectStore struct {
	storage.ObjectStore
	putKeys    []string
	deleteKeys []string
}

func (s *spyObjectStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	s.putKeys = append(s.putKeys, key)
	return s.ObjectStore.Put(ctx, key, r, size, contentType)
}

func (s *spyObjectStore) Delete(ctx context.Context, key string) error {
	s.deleteKeys = append(s.deleteKeys, key)
	return s.ObjectStore.Delete(ctx, key)
}

// failingVaultRepo rejects every metadata insert.
type failingVaultRepo struct {
	VaultFileRepository
}

func (failingVaultRepo) Create(context.Context, types.VaultFile) (types.VaultFile, error) {
	return types.VaultFile{}, errors.New("insert failed")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestVaultUploadRoundTrip(t *testing.T) {
	mem := store.NewMemoryStore()
	objects := &spyObjectStore{ObjectStore: storage.NewMemoryStore()}
	vault := NewVaultService(mem.VaultFiles(), objects, discardLogger())
	ctx := context.Background()

	payload := []byte("sealed bytes")
	file, err := vault.Upload(ctx, 1, "notes.txt", "text/plain", bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if file.ID == 0 || file.ObjectKey == "" {
		t.Fatalf("uploaded file = %+v", file)
	}
	if !strings.HasPrefix(file.ObjectKey, "users/1/") {
		t.Fatalf("object key %q not scoped to user", file.ObjectKey)
	}

	got, reader, err := vault.Open(ctx, 1, file.ID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer reader.Close()
	if got.Name != "notes.txt" {
		t.Fatalf("name = %q", got.Name)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read object: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Fatalf("object bytes = %q, want %q", data, payload)
	}
}

func TestVaultUploadCleansUpWhenMetadataFails(t *testing.T) {
	objects := &spyObjectStore{ObjectStore: storage.NewMemoryStore()}
	vault := NewVaultService(failingVaultRepo{}, objects, discardLogger())

	payload := []byte("doomed upload")
	_, err := vault.Upload(context.Background(), 1, "x.bin", "", bytes.NewReader(payload), int64(len(payload)))
	if err == nil {
		t.Fatal("expected upload to fail")
	}

	if len(objects.putKeys) != 1 {
		t.Fatalf("put keys = %v, want one write", objects.putKeys)
	}
	if len(objects.deleteKeys) != 1 || objects.deleteKeys[0] != objects.putKeys[0] {
		t.Fatalf("delete keys = %v, want cleanup of %q", objects.deleteKeys, objects.putKeys[0])
	}
	if _, getErr := objects.Get(context.Background(), objects.putKeys[0]); getErr == nil {
		t.Fatal("orphan object survived the failed upload")
	}
}

func TestVaultDeleteRemovesObject(t *testing.T) {
	mem := store.NewMemoryStore()
	objects := &spyObjectStore{ObjectStore: storage.NewMemoryStore()}
	vault := NewVaultService(mem.VaultFiles(), objects, discardLogger())
	ctx := context.Background()

	file, err := vault.Upload(ctx, 1, "a.txt", "text/plain", strings.NewReader("aaa"), 3)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if err := vault.Delete(ctx, 1, file.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, err := vault.Open(ctx, 1, file.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("open after delete = %v, want ErrNotFound", err)
	}
	if _, err := objects.Get(ctx, file.ObjectKey); err == nil {
		t.Fatal("object survived the delete")
	}

	if err := vault.Delete(ctx, 1, file.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("repeat delete = %v, want ErrNotFound", err)
	}
}

func TestVaultScopedToOwner(t *testing.T) {
	mem := store.NewMemoryStore()
	vault := NewVaultService(mem.VaultFiles(), storage.NewMemoryStore(), discardLogger())
	ctx := context.Background()

	file, err := vault.Upload(ctx, 1, "mine.txt", "text/plain", strings.NewReader("m"), 1)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if _, _, err := vault.Open(ctx, 2, file.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("foreign open = %v, want ErrNotFound", err)
	}
	if err := vault.Delete(ctx, 2, file.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("foreign delete = %v, want ErrNotFound", err)
	}

	count, err := vault.Count(ctx, 1)
	if err != nil || count != 1 {
		t.Fatalf("owner count = (%d, %v), want (1, nil)", count, err)
	}
}
