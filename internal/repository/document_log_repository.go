package repository

import (
	"fmt"

	"gorm.io/gorm"

	"docquery/internal/model"
)

type DocumentLogRepository struct {
	db *gorm.DB
}

func NewDocumentLogRepository(db *gorm.DB) *DocumentLogRepository {
	return &DocumentLogRepository{db: db}
}

func (r *DocumentLogRepository) Create(entry *model.DocumentProcessingLog) error {
	if err := r.db.Create(entry).Error; err != nil {
		return fmt.Errorf("create document log failed: %w", err)
	}
	return nil
}

func (r *DocumentLogRepository) ListRecent(limit int) ([]model.DocumentProcessingLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	var entries []model.DocumentProcessingLog
	if err := r.db.Order("created_at DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list document logs failed: %w", err)
	}
	return entries, nil
}
