package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/syncveil/apiserver/types"
)

// VaultFileRepository handles persistence for vault file metadata.
type VaultFileRepository struct {
	db *sql.DB
}

func NewVaultFileRepository(db *sql.DB) *VaultFileRepository {
	return &VaultFileRepository{db: db}
}

func (r *VaultFileRepository) Create(ctx context.Context, file types.VaultFile) (types.VaultFile, error) {
	file.UploadedAt = time.Now()

	const query = `
		INSERT INTO vault_files (user_id, name, size, content_type, object_key, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		file.UserID,
		file.Name,
		file.Size,
		file.ContentType,
		file.ObjectKey,
		file.UploadedAt,
	).Scan(&file.ID); err != nil {
		return types.VaultFile{}, err
	}
	return file, nil
}

// GetByID returns the file row only if it belongs to userID; files are
// strictly scoped to their owner.
func (r *VaultFileRepository) GetByID(ctx context.Context, userID, id int) (types.VaultFile, error) {
	const query = `
		SELECT id, user_id, name, size, content_type, object_key, uploaded_at
		FROM vault_files
		WHERE id = $1 AND user_id = $2`
	var file types.VaultFile
	err := r.db.QueryRowContext(ctx, query, id, userID).Scan(
		&file.ID,
		&file.UserID,
		&file.Name,
		&file.Size,
		&file.ContentType,
		&file.ObjectKey,
		&file.UploadedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.VaultFile{}, ErrNotFound
		}
		return types.VaultFile{}, err
	}
	return file, nil
}

func (r *VaultFileRepository) ListByUser(ctx context.Context, userID int) ([]types.VaultFile, error) {
	const query = `
		SELECT id, user_id, name, size, content_type, object_key, uploaded_at
		FROM vault_files
		WHERE user_id = $1
		ORDER BY uploaded_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := []types.VaultFile{}
	for rows.Next() {
		var file types.VaultFile
		if err := rows.Scan(
			&file.ID,
			&file.UserID,
			&file.Name,
			&file.Size,
			&file.ContentType,
			&file.ObjectKey,
			&file.UploadedAt,
		); err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

func (r *VaultFileRepository) Delete(ctx context.Context, userID, id int) error {
	const query = `DELETE FROM vault_files WHERE id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *VaultFileRepository) CountByUser(ctx context.Context, userID int) (int, error) {
	const query = `SELECT count(*) FROM vault_files WHERE user_id = $1`
	var count int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
