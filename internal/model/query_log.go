package model

import (
	"encoding/json"
	"time"
)

// QueryLog records one answered question for later analysis. Written
// asynchronously by the log worker, never read on the query path.
type QueryLog struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	DocumentURL      string    `gorm:"size:2048;not null;index:idx_query_logs_url,length:255" json:"document_url"`
	Question         string    `gorm:"type:text;not null" json:"question"`
	Answer           string    `gorm:"type:text" json:"answer"`
	ProcessingTime   float64   `json:"processing_time"` // seconds
	SimilarityScores string    `gorm:"type:text" json:"similarity_scores"` // JSON array of float32
	Cached           bool      `json:"cached"`
	Failed           bool      `json:"failed"`
	CreatedAt        time.Time `json:"created_at"`
}

// SetSimilarityScores stores the top similarity scores as JSON.
func (l *QueryLog) SetSimilarityScores(scores []float32) {
	if len(scores) == 0 {
		l.SimilarityScores = "[]"
		return
	}
	b, _ := json.Marshal(scores)
	l.SimilarityScores = string(b)
}
