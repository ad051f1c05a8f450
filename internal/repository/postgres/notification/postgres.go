package notification

import (
	"context"
	"time"

	notificationdomain "exchange-hub-go/internal/domain/notification"
	"gorm.io/gorm"
)

const createBatchSize = 100

type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, n *notificationdomain.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *PostgresRepository) CreateMany(ctx context.Context, items []notificationdomain.Notification) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(items, createBatchSize).Error
}

func (r *PostgresRepository) visible(ctx context.Context, userID string, now time.Time) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&notificationdomain.Notification{}).
		Where("user_id = ?", userID).
		Where("expires_at IS NULL OR expires_at > ?", now)
}

func (r *PostgresRepository) List(ctx context.Context, filter notificationdomain.ListFilter) ([]notificationdomain.Notification, int64, error) {
	query := r.visible(ctx, filter.UserID, filter.Now)
	if filter.UnreadOnly {
		query = query.Where("read_at IS NULL")
	}
	if !filter.IncludeArchived {
		query = query.Where("archived_at IS NULL")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []notificationdomain.Notification
	if err := query.
		Order("created_at desc").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *PostgresRepository) CountUnread(ctx context.Context, userID string, now time.Time) (int64, error) {
	var count int64
	err := r.visible(ctx, userID, now).
		Where("read_at IS NULL AND archived_at IS NULL").
		Count(&count).Error
	return count, err
}

func (r *PostgresRepository) MarkRead(ctx context.Context, userID, id string, at time.Time) (bool, error) {
	return r.touch(ctx, userID, id, "read_at", at)
}

func (r *PostgresRepository) Archive(ctx context.Context, userID, id string, at time.Time) (bool, error) {
	return r.touch(ctx, userID, id, "archived_at", at)
}

// touch stamps column on one owned notification, keeping an earlier stamp.
func (r *PostgresRepository) touch(ctx context.Context, userID, id, column string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&notificationdomain.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update(column, gorm.Expr("coalesce("+column+", ?)", at))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *PostgresRepository) MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&notificationdomain.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Update("read_at", at)
	return result.RowsAffected, result.Error
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, id string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&notificationdomain.Notification{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *PostgresRepository) ExchangeRecipients(ctx context.Context, exchangeID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Raw(`
		SELECT p.user_id::text FROM exchange_participants p
		JOIN users u ON u.id = p.user_id
		WHERE p.exchange_id = ? AND p.deleted_at IS NULL AND p.user_id IS NOT NULL AND u.is_active
		UNION
		SELECT e.coordinator_id::text FROM exchanges e WHERE e.id = ? AND e.coordinator_id IS NOT NULL
		UNION
		SELECT e.client_id::text FROM exchanges e WHERE e.id = ? AND e.client_id IS NOT NULL
	`, exchangeID, exchangeID, exchangeID).Scan(&ids).Error
	return ids, err
}
