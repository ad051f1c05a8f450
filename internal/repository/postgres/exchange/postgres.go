package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"exchange-hub-go/internal/db"
	"exchange-hub-go/internal/domain/audit"
	exchangedomain "exchange-hub-go/internal/domain/exchange"
	"exchange-hub-go/internal/domain/participant"
	"gorm.io/gorm"
)

// jsonColumns hold jsonb values that need encoding in map updates.
var jsonColumns = map[string]struct{}{
	"relinquished_property": {},
	"replacement_property":  {},
	"metadata":              {},
	"pp_data":               {},
}

type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Transaction(ctx context.Context, fn func(exchangedomain.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&PostgresRepository{db: tx})
	})
}

func (r *PostgresRepository) Create(ctx context.Context, exchange *exchangedomain.Exchange) error {
	return r.db.WithContext(ctx).Create(exchange).Error
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*exchangedomain.Exchange, error) {
	var exchange exchangedomain.Exchange
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&exchange).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, exchangedomain.ErrExchangeNotFound
		}
		return nil, err
	}
	return &exchange, nil
}

func (r *PostgresRepository) List(ctx context.Context, filter exchangedomain.ListFilter) ([]exchangedomain.Exchange, int64, error) {
	query := r.db.WithContext(ctx).Model(&exchangedomain.Exchange{})
	if !filter.All {
		query = query.Where(
			"exchanges.coordinator_id = ? OR exchanges.client_id = ? OR EXISTS ("+
				"SELECT 1 FROM exchange_participants p WHERE p.exchange_id = exchanges.id AND p.user_id = ? AND p.deleted_at IS NULL)",
			filter.ViewerID, filter.ViewerID, filter.ViewerID,
		)
	}
	if filter.Status != "" {
		query = query.Where("exchanges.status IN ?", exchangedomain.Status(filter.Status).Variants())
	}
	if filter.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(filter.Search)) + "%"
		query = query.Where("lower(exchanges.name) LIKE ? OR lower(coalesce(exchanges.exchange_number, '')) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []exchangedomain.Exchange
	if err := query.
		Order("exchanges.created_at desc").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *PostgresRepository) UpdateFields(ctx context.Context, id string, version int, fields map[string]any) (bool, error) {
	updates := make(map[string]any, len(fields)+1)
	for column, value := range fields {
		if _, ok := jsonColumns[column]; ok {
			encoded, err := db.JSONB(value)
			if err != nil {
				return false, fmt.Errorf("encode %s: %w", column, err)
			}
			value = encoded
		}
		updates[column] = value
	}
	updates["version"] = gorm.Expr("version + 1")

	result := r.db.WithContext(ctx).
		Model(&exchangedomain.Exchange{}).
		Where("id = ? AND version = ?", id, version).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *PostgresRepository) SwapStatus(ctx context.Context, id string, from exchangedomain.Status, version int, change exchangedomain.StatusChange) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&exchangedomain.Exchange{}).
		Where("id = ? AND status = ? AND version = ?", id, from, version).
		Updates(map[string]any{
			"status":            change.To,
			"previous_status":   change.PreviousStatus,
			"status_changed_at": change.ChangedAt,
			"version":           gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *PostgresRepository) SoftDelete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&exchangedomain.Exchange{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return exchangedomain.ErrExchangeNotFound
	}
	return nil
}

func (r *PostgresRepository) AddParticipant(ctx context.Context, p *participant.Participant) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		if db.IsUniqueViolation(err) {
			return participant.ErrDuplicateParticipant
		}
		return err
	}
	return nil
}

func (r *PostgresRepository) AppendAudit(ctx context.Context, entry *audit.Entry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(value)
}
