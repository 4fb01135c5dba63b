package domain

import "time"

// Document kinds stored in folders.
const (
	DocumentKindFile = "file"
	DocumentKindLink = "link"
)

// Document is a file-metadata or link entry inside a folder. File payloads
// live outside this system; only descriptive metadata is stored.
type Document struct {
	ID        string    `json:"id"`
	FolderID  string    `json:"folder_id"`
	Kind      string    `json:"kind"`
	Name      string    `json:"name"`
	URL       string    `json:"url,omitempty"`
	SizeBytes *int64    `json:"size_bytes,omitempty"`
	MimeType  string    `json:"mime_type,omitempty"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}
