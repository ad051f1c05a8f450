package participant

import (
	"context"
	"errors"
	"strings"

	"exchange-hub-go/internal/db"
	exchangedomain "exchange-hub-go/internal/domain/exchange"
	participantdomain "exchange-hub-go/internal/domain/participant"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// elevatedRoles are the stored spellings of admin and coordinator after
// normalizedRole folds case, dashes and spaces.
var elevatedRoles = []string{"admin", "administrator", "coordinator", "exchange_coordinator"}

const normalizedRole = "replace(replace(lower(trim(role)), '-', '_'), ' ', '_')"

type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Transaction(ctx context.Context, fn func(participantdomain.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&PostgresRepository{db: tx})
	})
}

// LockExchange takes a row lock on the exchange so concurrent participant
// changes on it are applied one at a time.
func (r *PostgresRepository) LockExchange(ctx context.Context, exchangeID string) error {
	var ids []string
	if err := r.db.WithContext(ctx).
		Table("exchanges").
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND deleted_at IS NULL", exchangeID).
		Pluck("id", &ids).Error; err != nil {
		return err
	}
	if len(ids) == 0 {
		return exchangedomain.ErrExchangeNotFound
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context, exchangeID string) ([]participantdomain.View, error) {
	type viewRow struct {
		participantdomain.Participant
		UserFirst    *string `gorm:"column:user_first_name"`
		UserLast     *string `gorm:"column:user_last_name"`
		UserEmail    *string `gorm:"column:user_email"`
		ContactFirst *string `gorm:"column:contact_first_name"`
		ContactLast  *string `gorm:"column:contact_last_name"`
		ContactEmail *string `gorm:"column:contact_email"`
	}

	var rows []viewRow
	if err := r.db.WithContext(ctx).
		Model(&participantdomain.Participant{}).
		Select("exchange_participants.*, "+
			"users.first_name AS user_first_name, users.last_name AS user_last_name, users.email AS user_email, "+
			"contacts.first_name AS contact_first_name, contacts.last_name AS contact_last_name, contacts.email AS contact_email").
		Joins("left join users on users.id = exchange_participants.user_id").
		Joins("left join contacts on contacts.id = exchange_participants.contact_id").
		Where("exchange_participants.exchange_id = ?", exchangeID).
		Order("exchange_participants.created_at asc").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	views := make([]participantdomain.View, 0, len(rows))
	for _, row := range rows {
		view := participantdomain.View{Participant: row.Participant}
		if row.UserID != nil {
			view.Kind = "user"
			view.Name = joinName(row.UserFirst, row.UserLast)
			view.Email = deref(row.UserEmail)
		} else {
			view.Kind = "contact"
			view.Name = joinName(row.ContactFirst, row.ContactLast)
			view.Email = deref(row.ContactEmail)
		}
		views = append(views, view)
	}
	return views, nil
}

func (r *PostgresRepository) Get(ctx context.Context, exchangeID, id string) (*participantdomain.Participant, error) {
	var p participantdomain.Participant
	if err := r.db.WithContext(ctx).Where("exchange_id = ? AND id = ?", exchangeID, id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, participantdomain.ErrParticipantNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PostgresRepository) FindByUser(ctx context.Context, exchangeID, userID string) (*participantdomain.Participant, error) {
	var p participantdomain.Participant
	if err := r.db.WithContext(ctx).Where("exchange_id = ? AND user_id = ?", exchangeID, userID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, participantdomain.ErrParticipantNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PostgresRepository) ExchangeRoleOf(ctx context.Context, exchangeID, userID string) (string, error) {
	var row struct {
		CoordinatorID *string
		ClientID      *string
	}
	result := r.db.WithContext(ctx).
		Table("exchanges").
		Select("coordinator_id, client_id").
		Where("id = ? AND deleted_at IS NULL", exchangeID).
		Limit(1).
		Scan(&row)
	if result.Error != nil {
		return "", result.Error
	}
	switch {
	case row.CoordinatorID != nil && *row.CoordinatorID == userID:
		return "coordinator", nil
	case row.ClientID != nil && *row.ClientID == userID:
		return "client", nil
	default:
		return "", nil
	}
}

func (r *PostgresRepository) Create(ctx context.Context, p *participantdomain.Participant) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		if db.IsUniqueViolation(err) {
			return participantdomain.ErrDuplicateParticipant
		}
		return err
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, p *participantdomain.Participant) error {
	result := r.db.WithContext(ctx).
		Model(p).
		Select("role", "permissions", "updated_at").
		Updates(p)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return participantdomain.ErrParticipantNotFound
	}
	return nil
}

func (r *PostgresRepository) SoftDelete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&participantdomain.Participant{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return participantdomain.ErrParticipantNotFound
	}
	return nil
}

func (r *PostgresRepository) ReleaseExchangeRoles(ctx context.Context, exchangeID, userID string) error {
	for _, column := range []string{"coordinator_id", "client_id"} {
		err := r.db.WithContext(ctx).
			Model(&exchangedomain.Exchange{}).
			Where("id = ? AND "+column+" = ?", exchangeID, userID).
			UpdateColumns(map[string]any{
				column:       nil,
				"version":    gorm.Expr("version + 1"),
				"updated_at": gorm.Expr("now()"),
			}).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRepository) CountElevated(ctx context.Context, exchangeID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&participantdomain.Participant{}).
		Where("exchange_id = ? AND "+normalizedRole+" IN ?", exchangeID, elevatedRoles).
		Count(&count).Error
	return count, err
}

func joinName(first, last *string) string {
	return strings.TrimSpace(deref(first) + " " + deref(last))
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
