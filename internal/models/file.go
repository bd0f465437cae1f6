package models

import "time"

// FileMetadata is the free-form descriptive block attached to every upload.
type FileMetadata struct {
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Version     string   `json:"version"`
	Project     string   `json:"project"`
}

// Uploader is the subset of User embedded in file responses.
type Uploader struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type File struct {
	ID            int64        `json:"id" db:"id"`
	Filename      string       `json:"filename" db:"filename"`
	OriginalName  string       `json:"originalName" db:"original_name"`
	FilePath      string       `json:"filePath" db:"file_path"`
	FileSize      int64        `json:"fileSize" db:"file_size"`
	MimeType      string       `json:"mimeType" db:"mime_type"`
	UploadedBy    int64        `json:"-" db:"uploaded_by"`
	Uploader      *Uploader    `json:"uploadedBy,omitempty"`
	Metadata      FileMetadata `json:"metadata"`
	IsActive      bool         `json:"isActive" db:"is_active"`
	DownloadCount int64        `json:"downloadCount" db:"download_count"`
	CreatedAt     time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time    `json:"updatedAt" db:"updated_at"`
}
