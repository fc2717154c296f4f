package model

import "time"

// Document processing status values.
const (
	ProcessingStatusSuccess = "success"
	ProcessingStatusError   = "error"
)

// DocumentProcessingLog records one document acquisition and indexing run.
type DocumentProcessingLog struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	DocumentURL    string    `gorm:"size:2048;not null;index:idx_document_logs_url,length:255" json:"document_url"`
	Status         string    `gorm:"size:16;not null" json:"status"`
	ChunksCount    int       `json:"chunks_count"`
	ProcessingTime float64   `json:"processing_time"` // seconds
	ErrorMessage   string    `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
