// Package models defines server-side data models persisted in the database.
package models

import "time"

// File describes metadata for an uploaded blob. The content itself lives in
// object storage under StorageKey; the row always mirrors the latest
// version's size and storage location.
type File struct {
	ID           string `json:"id"`
	OwnerID      string `json:"owner_id"`
	DisplayName  string `json:"display_name"`
	OriginalName string `json:"original_name"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mime_type"`
	StorageKey   string `json:"-"`

	// Encrypted marks client-side encrypted content. KeyRef is an opaque
	// reference to the owner's symmetric key material; only the owner's
	// process may resolve it.
	Encrypted bool   `json:"encrypted"`
	KeyRef    string `json:"key_ref,omitempty"`

	UploadStatus string `json:"upload_status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Upload status values for File.UploadStatus.
const (
	UploadPending   = "pending"
	UploadCompleted = "completed"
)

// FileVersion is an append-only history entry for a File. Version numbers
// start at 1 and are strictly increasing per file.
type FileVersion struct {
	ID         string    `json:"id"`
	FileID     string    `json:"file_id"`
	Version    int64     `json:"version"`
	Size       int64     `json:"size"`
	StorageKey string    `json:"-"`
	ChangeNote string    `json:"change_note,omitempty"`
	CreatedBy  string    `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// FileUploadTask instructs the client to upload content via a presigned URL.
type FileUploadTask struct {
	FileID string `json:"file_id"`
	URL    string `json:"url"`
}
