package dashboard

import (
	"context"
	"time"

	dashboarddomain "exchange-hub-go/internal/domain/dashboard"
	"exchange-hub-go/internal/domain/exchange"
	"gorm.io/gorm"
)

type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// visibleExchanges restricts e to the exchanges the scope's viewer coordinates,
// owns as client, or participates in.
func visibleExchanges(scope dashboarddomain.Scope) (string, []interface{}) {
	where := "e.deleted_at IS NULL"
	if scope.All {
		return where, nil
	}
	where += " AND (e.coordinator_id = ? OR e.client_id = ? OR EXISTS (" +
		"SELECT 1 FROM exchange_participants p WHERE p.exchange_id = e.id AND p.user_id = ? AND p.deleted_at IS NULL))"
	return where, []interface{}{scope.ViewerID, scope.ViewerID, scope.ViewerID}
}

func terminalStatuses() []string {
	return append(exchange.StatusCompleted.Variants(), exchange.StatusTerminated.Variants()...)
}

func (r *PostgresRepository) StatusCounts(ctx context.Context, scope dashboarddomain.Scope) ([]dashboarddomain.StatusRow, error) {
	where, args := visibleExchanges(scope)
	query := "SELECT e.status AS status, COUNT(*) AS count, COALESCE(SUM(e.exchange_value), 0) AS total_value " +
		"FROM exchanges e WHERE " + where + " GROUP BY e.status"

	var rows []dashboarddomain.StatusRow
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *PostgresRepository) UpcomingDeadlines(ctx context.Context, scope dashboarddomain.Scope, filter dashboarddomain.DeadlineFilter) ([]dashboarddomain.DeadlineRow, error) {
	where, args := visibleExchanges(scope)
	where += " AND e.status NOT IN ?"
	args = append(args, terminalStatuses())

	query := "SELECT * FROM (" +
		"SELECT e.id AS exchange_id, e.name AS exchange_name, 'identification' AS kind, e.identification_deadline AS deadline FROM exchanges e WHERE " + where +
		" UNION ALL " +
		"SELECT e.id AS exchange_id, e.name AS exchange_name, 'completion' AS kind, e.completion_deadline AS deadline FROM exchanges e WHERE " + where +
		") d WHERE d.deadline >= ? AND d.deadline <= ? ORDER BY d.deadline, d.exchange_name LIMIT ?"

	all := make([]interface{}, 0, len(args)*2+3)
	all = append(all, args...)
	all = append(all, args...)
	all = append(all, filter.From, filter.To, filter.Limit)

	var rows []dashboarddomain.DeadlineRow
	if err := r.db.WithContext(ctx).Raw(query, all...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *PostgresRepository) TaskCounts(ctx context.Context, scope dashboarddomain.Scope, today time.Time) (dashboarddomain.TaskCounts, error) {
	where, args := visibleExchanges(scope)
	query := "SELECT " +
		"COUNT(*) FILTER (WHERE t.status <> 'Completed') AS open_tasks, " +
		"COUNT(*) FILTER (WHERE t.status <> 'Completed' AND t.due_date < ?) AS overdue_tasks " +
		"FROM tasks t JOIN exchanges e ON e.id = t.exchange_id " +
		"WHERE t.deleted_at IS NULL AND " + where

	var counts dashboarddomain.TaskCounts
	if err := r.db.WithContext(ctx).Raw(query, append([]interface{}{today}, args...)...).Scan(&counts).Error; err != nil {
		return dashboarddomain.TaskCounts{}, err
	}
	return counts, nil
}
