package models

import (
	"time"
)

// FileObject is the central entity of the upload lifecycle. Rows are created
// by init, mutated by complete and the scan worker, and never deleted by the
// upload path. All state transitions serialize through row identity.
type FileObject struct {
	ID      string `gorm:"primaryKey;size:36" json:"id"`
	OwnerID string `gorm:"not null;size:36;index:ix_file_objects_owner_created,priority:1" json:"owner_id"`

	// DemoID is set iff the uploader was an anonymous demo session. The
	// owner is then the auto-provisioned demo user with the same id.
	DemoID *string `gorm:"size:36;index" json:"demo_id,omitempty"`

	Bucket    string `gorm:"not null;size:255;uniqueIndex:uq_file_objects_bucket_key,priority:1" json:"bucket"`
	ObjectKey string `gorm:"not null;size:512;uniqueIndex:uq_file_objects_bucket_key,priority:2" json:"object_key"`

	OriginalFilename    string `gorm:"not null;size:512" json:"original_filename"`
	DeclaredContentType string `gorm:"not null;size:255" json:"declared_content_type"`

	// ChecksumSHA256 is the client-asserted digest, lowercase hex.
	// ChecksumVerified stays false until complete() recomputes and confirms it.
	ChecksumSHA256   string `gorm:"not null;size:64" json:"checksum_sha256"`
	ChecksumVerified bool   `gorm:"not null;default:false" json:"checksum_verified"`

	SizeBytes          *int64  `json:"size_bytes,omitempty"`
	SniffedContentType *string `gorm:"size:255" json:"sniffed_content_type,omitempty"`

	State FileState `gorm:"not null;default:INITIATED;size:20" json:"state"`

	UploadExpiresAt *time.Time `json:"upload_expires_at,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index:ix_file_objects_owner_created,priority:2" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for FileObject.
func (FileObject) TableName() string {
	return "file_objects"
}

// IsDemo reports whether this object was uploaded through a demo session.
func (f *FileObject) IsDemo() bool {
	return f.DemoID != nil && *f.DemoID != ""
}

// Size returns the recorded size or 0 when the blob has not been HEADed yet.
func (f *FileObject) Size() int64 {
	if f.SizeBytes == nil {
		return 0
	}
	return *f.SizeBytes
}

// UploadExpired reports whether the presign window had already ended at now.
func (f *FileObject) UploadExpired(now time.Time) bool {
	return f.UploadExpiresAt != nil && now.After(*f.UploadExpiresAt)
}
