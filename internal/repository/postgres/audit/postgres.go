package audit

import (
	"context"

	auditdomain "exchange-hub-go/internal/domain/audit"
	"gorm.io/gorm"
)

type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, entry *auditdomain.Entry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *PostgresRepository) List(ctx context.Context, filter auditdomain.ListFilter) ([]auditdomain.Entry, error) {
	query := r.db.WithContext(ctx).Model(&auditdomain.Entry{})
	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}
	if filter.EntityID != "" {
		query = query.Where("entity_id = ?", filter.EntityID)
	}
	if filter.ExchangeID != "" {
		query = query.Where("exchange_id = ?", filter.ExchangeID)
	}
	if filter.ActorID != "" {
		query = query.Where("actor_id = ?", filter.ActorID)
	}

	var entries []auditdomain.Entry
	if err := query.
		Order("created_at desc").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
