package models

import (
	"fmt"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DocumentStatus tracks the processing pipeline state of an uploaded file.
type DocumentStatus string

const (
	DocumentProcessing DocumentStatus = "processing"
	DocumentProcessed  DocumentStatus = "processed"
	DocumentFailed     DocumentStatus = "failed"
	DocumentArchived   DocumentStatus = "archived"
)

// DocumentSecurity holds the per-document policy flags. AllowDownload is the
// flag consulted by the authorization gate; the rest are hints surfaced to the
// viewer UI.
type DocumentSecurity struct {
	AllowCopy     bool       `bson:"allow_copy" json:"allow_copy"`
	AllowPrint    bool       `bson:"allow_print" json:"allow_print"`
	AllowDownload bool       `bson:"allow_download" json:"allow_download"`
	Watermark     string     `bson:"watermark,omitempty" json:"watermark,omitempty"`
	ExpiresAt     *time.Time `bson:"expires_at,omitempty" json:"expires_at,omitempty"`
}

type DocumentMetadata struct {
	Author       string     `bson:"author,omitempty" json:"author,omitempty"`
	Subject      string     `bson:"subject,omitempty" json:"subject,omitempty"`
	Keywords     []string   `bson:"keywords,omitempty" json:"keywords,omitempty"`
	CreatedDate  *time.Time `bson:"created_date,omitempty" json:"created_date,omitempty"`
	ModifiedDate *time.Time `bson:"modified_date,omitempty" json:"modified_date,omitempty"`
}

type Document struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title        string             `bson:"title" json:"title"`
	OriginalName string             `bson:"original_name" json:"original_name"`
	// ObjectKey is the key of the file bytes in object storage.
	ObjectKey     string             `bson:"object_key" json:"-"`
	FileType      string             `bson:"file_type" json:"file_type"`
	MimeType      string             `bson:"mime_type" json:"mime_type"`
	FileSize      int64              `bson:"file_size" json:"file_size"`
	Content       string             `bson:"content,omitempty" json:"-"`
	UploadedBy    primitive.ObjectID `bson:"uploaded_by" json:"uploaded_by"`
	Status        DocumentStatus     `bson:"status" json:"status"`
	IsPublic      bool               `bson:"is_public" json:"is_public"`
	DownloadCount int64              `bson:"download_count" json:"download_count"`
	LastAccessed  *time.Time         `bson:"last_accessed,omitempty" json:"last_accessed,omitempty"`
	Tags          []string           `bson:"tags,omitempty" json:"tags,omitempty"`
	Metadata      DocumentMetadata   `bson:"metadata,omitempty" json:"metadata,omitempty"`
	Security      DocumentSecurity   `bson:"security" json:"security"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updated_at"`
}

// FormattedSize renders the file size for display, e.g. "2.5 MB".
func (d *Document) FormattedSize() string {
	if d.FileSize == 0 {
		return "0 Bytes"
	}
	units := []string{"Bytes", "KB", "MB", "GB"}
	i := int(math.Floor(math.Log(float64(d.FileSize)) / math.Log(1024)))
	if i >= len(units) {
		i = len(units) - 1
	}
	v := float64(d.FileSize) / math.Pow(1024, float64(i))
	return fmt.Sprintf("%s %s", trimZeros(v), units[i])
}

func trimZeros(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	for len(s) > 0 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	return s
}
