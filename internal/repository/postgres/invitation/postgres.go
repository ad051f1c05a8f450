package invitation

import (
	"context"
	"errors"
	"time"

	"exchange-hub-go/internal/db"
	exchangedomain "exchange-hub-go/internal/domain/exchange"
	invitationdomain "exchange-hub-go/internal/domain/invitation"
	"gorm.io/gorm"
)

type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, invitation *invitationdomain.Invitation) error {
	if err := r.db.WithContext(ctx).Create(invitation).Error; err != nil {
		if db.IsUniqueViolation(err) {
			return invitationdomain.ErrDuplicateInvitation
		}
		return err
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*invitationdomain.Invitation, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *PostgresRepository) GetByTokenHash(ctx context.Context, hash string) (*invitationdomain.Invitation, error) {
	return r.first(ctx, "token_hash = ?", hash)
}

func (r *PostgresRepository) first(ctx context.Context, query string, arg any) (*invitationdomain.Invitation, error) {
	var invitation invitationdomain.Invitation
	if err := r.db.WithContext(ctx).Where(query, arg).First(&invitation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invitationdomain.ErrInvitationNotFound
		}
		return nil, err
	}
	return &invitation, nil
}

func (r *PostgresRepository) ListByExchange(ctx context.Context, exchangeID string) ([]invitationdomain.Invitation, error) {
	var items []invitationdomain.Invitation
	if err := r.db.WithContext(ctx).
		Where("exchange_id = ?", exchangeID).
		Order("created_at desc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *PostgresRepository) SwapStatus(ctx context.Context, id string, t invitationdomain.Transition) (bool, error) {
	updates := map[string]any{"status": t.To}
	if t.To == invitationdomain.StatusPending {
		updates["accepted_at"] = nil
		updates["accepted_by"] = nil
	}
	if t.AcceptedAt != nil {
		updates["accepted_at"] = *t.AcceptedAt
	}
	if t.AcceptedBy != nil {
		updates["accepted_by"] = *t.AcceptedBy
	}
	result := r.db.WithContext(ctx).
		Model(&invitationdomain.Invitation{}).
		Where("id = ? AND status = ?", id, t.From).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *PostgresRepository) ExpireStale(ctx context.Context, exchangeID string, now time.Time) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&invitationdomain.Invitation{}).
		Where("status = ? AND expires_at <= ?", invitationdomain.StatusPending, now)
	if exchangeID != "" {
		query = query.Where("exchange_id = ?", exchangeID)
	}
	result := query.Update("status", invitationdomain.StatusExpired)
	return result.RowsAffected, result.Error
}

func (r *PostgresRepository) ExchangeName(ctx context.Context, exchangeID string) (string, error) {
	var names []string
	if err := r.db.WithContext(ctx).
		Table("exchanges").
		Where("id = ? AND deleted_at IS NULL", exchangeID).
		Limit(1).
		Pluck("name", &names).Error; err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", exchangedomain.ErrExchangeNotFound
	}
	return names[0], nil
}
