package document

import (
	"io"
	"time"

	"gorm.io/gorm"
)

type Document struct {
	ID          string         `gorm:"type:uuid;primaryKey" json:"id"`
	ExchangeID  string         `gorm:"type:uuid;not null;index" json:"exchange_id"`
	FileName    string         `gorm:"not null" json:"file_name"`
	ContentType string         `gorm:"not null" json:"content_type"`
	SizeBytes   int64          `gorm:"not null" json:"size_bytes"`
	StorageKey  string         `gorm:"not null" json:"-"`
	Category    *string        `json:"category"`
	Description *string        `json:"description"`
	UploadedBy  string         `gorm:"type:uuid;not null" json:"uploaded_by"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Document) TableName() string {
	return "documents"
}

type UploadInput struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
	Category    *string
	Description *string
}

// Download is a short-lived link to a document's content.
type Download struct {
	Document  Document  `json:"document"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
