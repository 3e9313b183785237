package repository

import (
	"fmt"

	"gorm.io/gorm"

	"deepresearch/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(doc *model.UploadedDocument) error {
	if err := r.db.Create(doc).Error; err != nil {
		return fmt.Errorf("create uploaded document failed: %w", err)
	}
	return nil
}

// ListBySessionID returns the session's documents in upload order; context
// assembly depends on that ordering.
func (r *DocumentRepository) ListBySessionID(sessionID string) ([]model.UploadedDocument, error) {
	var docs []model.UploadedDocument
	if err := r.db.Where("session_id = ?", sessionID).Order("created_at ASC").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list uploaded documents failed: %w", err)
	}
	return docs, nil
}
