package document

import (
	"context"
	"errors"

	documentdomain "exchange-hub-go/internal/domain/document"
	"gorm.io/gorm"
)

type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, doc *documentdomain.Document) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*documentdomain.Document, error) {
	var doc documentdomain.Document
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, documentdomain.ErrDocumentNotFound
		}
		return nil, err
	}
	return &doc, nil
}

func (r *PostgresRepository) ListByExchange(ctx context.Context, exchangeID string) ([]documentdomain.Document, error) {
	var items []documentdomain.Document
	if err := r.db.WithContext(ctx).
		Where("exchange_id = ?", exchangeID).
		Order("created_at desc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *PostgresRepository) SoftDelete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&documentdomain.Document{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return documentdomain.ErrDocumentNotFound
	}
	return nil
}
