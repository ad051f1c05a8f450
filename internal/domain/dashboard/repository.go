package dashboard

import (
	"context"
	"time"
)

type Repository interface {
	StatusCounts(ctx context.Context, scope Scope) ([]StatusRow, error)
	UpcomingDeadlines(ctx context.Context, scope Scope, filter DeadlineFilter) ([]DeadlineRow, error)
	TaskCounts(ctx context.Context, scope Scope, today time.Time) (TaskCounts, error)
}
