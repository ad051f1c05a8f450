package task

import (
	"context"
	"errors"

	taskdomain "exchange-hub-go/internal/domain/task"
	"gorm.io/gorm"
)

type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, task *taskdomain.Task) error {
	return r.db.WithContext(ctx).Create(task).Error
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*taskdomain.Task, error) {
	var task taskdomain.Task
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, taskdomain.ErrTaskNotFound
		}
		return nil, err
	}
	return &task, nil
}

// List orders open work first: tasks with a due date by date, then the rest
// by creation time.
func (r *PostgresRepository) List(ctx context.Context, filter taskdomain.ListFilter) ([]taskdomain.Task, int64, error) {
	query := r.db.WithContext(ctx).Model(&taskdomain.Task{}).Where("exchange_id = ?", filter.ExchangeID)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.AssignedTo != "" {
		query = query.Where("assigned_to = ?", filter.AssignedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []taskdomain.Task
	if err := query.
		Order("due_date asc nulls last").
		Order("created_at desc").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *PostgresRepository) Update(ctx context.Context, id string, fields map[string]any) error {
	result := r.db.WithContext(ctx).Model(&taskdomain.Task{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return taskdomain.ErrTaskNotFound
	}
	return nil
}

func (r *PostgresRepository) SoftDelete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&taskdomain.Task{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return taskdomain.ErrTaskNotFound
	}
	return nil
}
