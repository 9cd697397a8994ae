package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/syncveil/apiserver/internal/storage"
	"github.com/syncveil/apiserver/types"
)

// VaultFileRepository defines persistence operations for vault file metadata.
type VaultFileRepository interface {
	Create(ctx context.Context, file types.VaultFile) (types.VaultFile, error)
	GetByID(ctx context.Context, userID, id int) (types.VaultFile, error)
	ListByUser(ctx context.Context, userID int) ([]types.VaultFile, error)
	Delete(ctx context.Context, userID, id int) error
	CountByUser(ctx context.Context, userID int) (int, error)
}

// VaultService stores user files: bytes in object storage, metadata in the
// database. All operations are scoped to the owning user.
type VaultService struct {
	files   VaultFileRepository
	objects storage.ObjectStore
	logger  *slog.Logger
}

func NewVaultService(files VaultFileRepository, objects storage.ObjectStore, logger *slog.Logger) *VaultService {
	return &VaultService{files: files, objects: objects, logger: logger}
}

// Upload writes the object under a per-user random key, then records the
// metadata row. If the metadata insert fails the object is removed again so
// storage does not accumulate orphans.
func (s *VaultService) Upload(ctx context.Context, userID int, name, contentType string, r io.Reader, size int64) (types.VaultFile, error) {
	key, err := objectKey(userID)
	if err != nil {
		return types.VaultFile{}, err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := s.objects.Put(ctx, key, r, size, contentType); err != nil {
		return types.VaultFile{}, fmt.Errorf("store object: %w", err)
	}

	file, err := s.files.Create(ctx, types.VaultFile{
		UserID:      userID,
		Name:        name,
		Size:        size,
		ContentType: contentType,
		ObjectKey:   key,
	})
	if err != nil {
		if cleanupErr := s.objects.Delete(ctx, key); cleanupErr != nil {
			s.logger.Error("orphan object cleanup failed", "key", key, "error", cleanupErr)
		}
		return types.VaultFile{}, err
	}

	s.logger.Info("vault file uploaded", "user_id", userID, "file_id", file.ID, "size", size)
	return file, nil
}

// Open returns the file metadata and a reader over its bytes. The caller
// must close the reader.
func (s *VaultService) Open(ctx context.Context, userID, id int) (types.VaultFile, io.ReadCloser, error) {
	file, err := s.files.GetByID(ctx, userID, id)
	if err != nil {
		return types.VaultFile{}, nil, err
	}
	reader, err := s.objects.Get(ctx, file.ObjectKey)
	if err != nil {
		return types.VaultFile{}, nil, fmt.Errorf("open object: %w", err)
	}
	return file, reader, nil
}

// List returns the user's files, newest first.
func (s *VaultService) List(ctx context.Context, userID int) ([]types.VaultFile, error) {
	return s.files.ListByUser(ctx, userID)
}

// Delete removes the metadata row and then the object. A failed object
// delete after the row is gone is logged, not surfaced: the file is already
// unreachable.
func (s *VaultService) Delete(ctx context.Context, userID, id int) error {
	file, err := s.files.GetByID(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.files.Delete(ctx, userID, id); err != nil {
		return err
	}
	if err := s.objects.Delete(ctx, file.ObjectKey); err != nil {
		s.logger.Error("object delete failed", "key", file.ObjectKey, "error", err)
	}
	return nil
}

// Count returns the number of files in the user's vault.
func (s *VaultService) Count(ctx context.Context, userID int) (int, error) {
	return s.files.CountByUser(ctx, userID)
}

func objectKey(userID int) (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return fmt.Sprintf("users/%d/files/%d-%s", userID, time.Now().UnixNano(), hex.EncodeToString(buf[:])), nil
}
