package dashboard

import "time"

const (
	DeadlineIdentification = "identification"
	DeadlineCompletion     = "completion"
)

// Scope limits aggregation to the exchanges a viewer can see.
type Scope struct {
	ViewerID string
	All      bool
}

type StatusRow struct {
	Status     string  `gorm:"column:status" json:"status"`
	Count      int64   `gorm:"column:count" json:"count"`
	TotalValue float64 `gorm:"column:total_value" json:"total_value"`
}

type DeadlineRow struct {
	ExchangeID   string    `gorm:"column:exchange_id" json:"exchange_id"`
	ExchangeName string    `gorm:"column:exchange_name" json:"exchange_name"`
	Kind         string    `gorm:"column:kind" json:"kind"`
	Date         time.Time `gorm:"column:deadline" json:"date"`
	DaysLeft     int       `gorm:"-" json:"days_left"`
}

type TaskCounts struct {
	Open    int64 `gorm:"column:open_tasks" json:"open"`
	Overdue int64 `gorm:"column:overdue_tasks" json:"overdue"`
}

type DeadlineFilter struct {
	From  time.Time
	To    time.Time
	Limit int
}

type Summary struct {
	TotalExchanges    int64         `json:"total_exchanges"`
	ActiveExchanges   int64         `json:"active_exchanges"`
	TotalValue        float64       `json:"total_value"`
	ByStatus          []StatusRow   `json:"by_status"`
	UpcomingDeadlines []DeadlineRow `json:"upcoming_deadlines"`
	Tasks             TaskCounts    `json:"tasks"`
	WindowDays        int           `json:"window_days"`
	GeneratedAt       time.Time     `json:"generated_at"`
}

type Config struct {
	WindowDays    int
	DeadlineLimit int
	CacheTTL      time.Duration
}
