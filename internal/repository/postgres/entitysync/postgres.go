package entitysync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"exchange-hub-go/internal/db"
	"exchange-hub-go/internal/domain/entitysync"
	exchangedomain "exchange-hub-go/internal/domain/exchange"
	userdomain "exchange-hub-go/internal/domain/user"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetExchange(ctx context.Context, id string) (*exchangedomain.Exchange, error) {
	var exchange exchangedomain.Exchange
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&exchange).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entitysync.ErrExchangeNotFound
		}
		return nil, err
	}
	return &exchange, nil
}

func (r *PostgresRepository) ListForSync(ctx context.Context, limit int, skipCompleted bool) ([]exchangedomain.Exchange, error) {
	query := r.db.WithContext(ctx).
		Model(&exchangedomain.Exchange{}).
		Where("pp_matter_id IS NOT NULL OR pp_data IS NOT NULL")
	if skipCompleted {
		query = query.Where("entity_sync_status IS NULL OR entity_sync_status <> ?", exchangedomain.SyncStatusCompleted)
	}

	var items []exchangedomain.Exchange
	if err := query.
		Order("entity_synced_at asc nulls first").
		Order("created_at asc").
		Limit(limit).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *PostgresRepository) SaveMatter(ctx context.Context, exchangeID string, data map[string]any) error {
	encoded, err := db.JSONB(data)
	if err != nil {
		return fmt.Errorf("encode matter: %w", err)
	}
	return r.db.WithContext(ctx).
		Model(&exchangedomain.Exchange{}).
		Where("id = ?", exchangeID).
		Update("pp_data", encoded).Error
}

func (r *PostgresRepository) MarkSynced(ctx context.Context, exchangeID, status string, syncErr *string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&exchangedomain.Exchange{}).
		Where("id = ?", exchangeID).
		Updates(map[string]any{
			"entity_sync_status": status,
			"entity_sync_error":  syncErr,
			"entity_synced_at":   at,
		}).Error
}

func (r *PostgresRepository) StatusSummary(ctx context.Context) (*entitysync.StatusSummary, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := r.db.WithContext(ctx).
		Model(&exchangedomain.Exchange{}).
		Select("coalesce(entity_sync_status, 'never') AS status, count(*) AS count").
		Where("pp_matter_id IS NOT NULL OR pp_data IS NOT NULL").
		Group("coalesce(entity_sync_status, 'never')").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	summary := &entitysync.StatusSummary{Counts: map[string]int64{}}
	for _, row := range rows {
		summary.Counts[row.Status] = row.Count
		summary.Total += row.Count
	}

	var last []time.Time
	if err := r.db.WithContext(ctx).
		Model(&exchangedomain.Exchange{}).
		Where("entity_synced_at IS NOT NULL").
		Order("entity_synced_at desc").
		Limit(1).
		Pluck("entity_synced_at", &last).Error; err != nil {
		return nil, err
	}
	if len(last) == 1 {
		summary.LastSyncAt = &last[0]
	}
	return summary, nil
}

func (r *PostgresRepository) FindUser(ctx context.Context, ppID, email string) (*entitysync.MatchedRecord, error) {
	return r.match(ctx, "users", ppID, email)
}

func (r *PostgresRepository) FindContact(ctx context.Context, ppID, email string) (*entitysync.MatchedRecord, error) {
	return r.match(ctx, "contacts", ppID, email)
}

// match looks a person up by PracticePanther id first, then by email.
func (r *PostgresRepository) match(ctx context.Context, table, ppID, email string) (*entitysync.MatchedRecord, error) {
	type row struct {
		ID          string
		PPContactID *string
	}
	lookups := []struct {
		value string
		where string
	}{
		{ppID, "pp_contact_id = ?"},
		{strings.ToLower(email), "lower(email) = ?"},
	}
	for _, lookup := range lookups {
		if lookup.value == "" {
			continue
		}
		var rows []row
		if err := r.db.WithContext(ctx).
			Table(table).
			Select("id::text AS id, pp_contact_id").
			Where(lookup.where, lookup.value).
			Order("created_at asc").
			Limit(1).
			Scan(&rows).Error; err != nil {
			return nil, err
		}
		if len(rows) == 1 {
			return &entitysync.MatchedRecord{ID: rows[0].ID, PPContactID: rows[0].PPContactID}, nil
		}
	}
	return nil, nil
}

func (r *PostgresRepository) UpdateUserPP(ctx context.Context, id, ppID string, data map[string]any) error {
	return r.updatePP(ctx, &userdomain.User{}, id, ppID, data)
}

func (r *PostgresRepository) UpdateContactPP(ctx context.Context, id, ppID string, data map[string]any) error {
	return r.updatePP(ctx, &userdomain.Contact{}, id, ppID, data)
}

func (r *PostgresRepository) updatePP(ctx context.Context, model any, id, ppID string, data map[string]any) error {
	encoded, err := db.JSONB(data)
	if err != nil {
		return fmt.Errorf("encode pp data: %w", err)
	}
	updates := map[string]any{"pp_data": encoded}
	if ppID != "" {
		updates["pp_contact_id"] = ppID
	}
	return r.db.WithContext(ctx).Model(model).Where("id = ?", id).Updates(updates).Error
}

func (r *PostgresRepository) CreateContact(ctx context.Context, input entitysync.ContactInput) (string, error) {
	contact := userdomain.Contact{
		ID:        uuid.NewString(),
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Email:     optional(strings.ToLower(input.Email)),
		Phone:     optional(input.Phone),
		Company:   optional(input.Company),
		PPData:    input.Raw,
		Source:    userdomain.ContactSourcePracticePanther,
	}
	contact.PPContactID = optional(input.PPID)
	if err := r.db.WithContext(ctx).Create(&contact).Error; err != nil {
		return "", err
	}
	return contact.ID, nil
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
