package types

import "time"

// VaultFile is the metadata row for an object uploaded to a user's vault.
// The object bytes live in object storage under ObjectKey.
type VaultFile struct {
	ID          int       `json:"id" db:"id"`
	UserID      int       `json:"-" db:"user_id"`
	Name        string    `json:"name" db:"name"`
	Size        int64     `json:"size" db:"size"`
	ContentType string    `json:"content_type" db:"content_type"`
	ObjectKey   string    `json:"-" db:"object_key"`
	UploadedAt  time.Time `json:"uploaded_at" db:"uploaded_at"`
}
