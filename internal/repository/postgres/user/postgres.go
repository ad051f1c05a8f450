package user

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "exchange-hub-go/internal/domain/user"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// UpsertFromAuth keeps names a user edited themselves: stored names are only
// filled when still empty.
func (r *PostgresRepository) UpsertFromAuth(ctx context.Context, user *domain.User) (*domain.User, error) {
	updates := map[string]interface{}{
		"last_login_at": user.LastLoginAt,
		"updated_at":    time.Now().UTC(),
		"first_name":    gorm.Expr("CASE WHEN users.first_name = '' THEN excluded.first_name ELSE users.first_name END"),
		"last_name":     gorm.Expr("CASE WHEN users.last_name = '' THEN excluded.last_name ELSE users.last_name END"),
	}
	if user.Email != "" {
		updates["email"] = user.Email
	}
	if user.AvatarURL != nil {
		updates["avatar_url"] = user.AvatarURL
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(updates),
		}).
		Create(user).Error
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, user.ID)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *PostgresRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.User, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.User{})
	if filter.Role != "" {
		query = query.Where("role = ?", filter.Role)
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("lower(email) LIKE ? OR lower(first_name || ' ' || last_name) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []domain.User
	if err := query.
		Order("created_at desc").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *PostgresRepository) Update(ctx context.Context, id string, fields map[string]any) error {
	result := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *PostgresRepository) SetRoleIfDefault(ctx context.Context, id, role string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ? AND role = ?", id, string(domain.DefaultRole)).
		Update("role", role)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
