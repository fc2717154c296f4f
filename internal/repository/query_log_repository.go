package repository

import (
	"fmt"

	"gorm.io/gorm"

	"docquery/internal/model"
)

type QueryLogRepository struct {
	db *gorm.DB
}

func NewQueryLogRepository(db *gorm.DB) *QueryLogRepository {
	return &QueryLogRepository{db: db}
}

func (r *QueryLogRepository) Create(entry *model.QueryLog) error {
	if err := r.db.Create(entry).Error; err != nil {
		return fmt.Errorf("create query log failed: %w", err)
	}
	return nil
}

func (r *QueryLogRepository) ListByDocumentURL(documentURL string, limit int) ([]model.QueryLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	var entries []model.QueryLog
	if err := r.db.Where("document_url = ?", documentURL).
		Order("created_at DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list query logs failed: %w", err)
	}
	return entries, nil
}
