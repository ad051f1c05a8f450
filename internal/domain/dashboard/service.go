package dashboard

import (
	"context"
	"sync"
	"time"

	"exchange-hub-go/internal/apperror"
	"exchange-hub-go/internal/domain/exchange"
	"exchange-hub-go/internal/domain/permission"
	"exchange-hub-go/pkg/logger"
)

const (
	defaultWindowDays    = 30
	maxWindowDays        = 180
	defaultDeadlineLimit = 10
	defaultCacheTTL      = time.Minute
)

var statusOrder = []exchange.Status{
	exchange.StatusDraft,
	exchange.StatusPending,
	exchange.Status45D,
	exchange.Status180D,
	exchange.StatusOnHold,
	exchange.StatusCompleted,
	exchange.StatusTerminated,
}

type Service struct {
	repo  Repository
	cfg   Config
	cache summaryCache
	log   logger.Logger
	now   func() time.Time
}

func NewService(repo Repository, cfg Config, log logger.Logger) *Service {
	return &Service{
		repo:  repo,
		cfg:   normalizeConfig(cfg),
		cache: summaryCache{items: make(map[string]summaryCacheItem)},
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Summary aggregates the exchanges visible to actor. Results are cached per
// viewer for the configured TTL.
func (s *Service) Summary(ctx context.Context, actor permission.Subject) (Summary, error) {
	now := s.now()
	key := cacheKey(actor)
	if s.cfg.CacheTTL > 0 {
		if cached, ok := s.cache.Get(key, now); ok {
			return cached, nil
		}
	}

	scope := Scope{ViewerID: actor.UserID, All: actor.IsAdmin()}
	rows, err := s.repo.StatusCounts(ctx, scope)
	if err != nil {
		return Summary{}, apperror.Upstream("dashboard_status_failed", err)
	}

	today := dateOnly(now)
	deadlines, err := s.repo.UpcomingDeadlines(ctx, scope, DeadlineFilter{
		From:  today,
		To:    today.AddDate(0, 0, s.cfg.WindowDays),
		Limit: s.cfg.DeadlineLimit,
	})
	if err != nil {
		return Summary{}, apperror.Upstream("dashboard_deadlines_failed", err)
	}
	tasks, err := s.repo.TaskCounts(ctx, scope, today)
	if err != nil {
		return Summary{}, apperror.Upstream("dashboard_tasks_failed", err)
	}

	summary := buildSummary(rows)
	for i := range deadlines {
		deadlines[i].DaysLeft = daysBetween(today, deadlines[i].Date)
	}
	summary.UpcomingDeadlines = deadlines
	if summary.UpcomingDeadlines == nil {
		summary.UpcomingDeadlines = []DeadlineRow{}
	}
	summary.Tasks = tasks
	summary.WindowDays = s.cfg.WindowDays
	summary.GeneratedAt = now

	if s.cfg.CacheTTL > 0 {
		s.cache.Set(key, summary, now.Add(s.cfg.CacheTTL))
	}
	logger.FromContext(ctx, s.log).Debug("dashboard.summary: computed",
		"user_id", actor.UserID, "exchanges", summary.TotalExchanges, "deadlines", len(deadlines))
	return summary, nil
}

// buildSummary folds legacy status spellings into their canonical status.
// Unrecognized statuses are kept as stored and listed last.
func buildSummary(rows []StatusRow) Summary {
	merged := make(map[string]*StatusRow, len(rows))
	var unknown []string
	var summary Summary
	for _, row := range rows {
		name := row.Status
		status, ok := exchange.NormalizeStatus(row.Status)
		if ok {
			name = string(status)
		}
		entry, seen := merged[name]
		if !seen {
			entry = &StatusRow{Status: name}
			merged[name] = entry
			if !ok {
				unknown = append(unknown, name)
			}
		}
		entry.Count += row.Count
		entry.TotalValue += row.TotalValue

		summary.TotalExchanges += row.Count
		summary.TotalValue += row.TotalValue
		if !ok || !status.Terminal() {
			summary.ActiveExchanges += row.Count
		}
	}

	summary.ByStatus = make([]StatusRow, 0, len(merged))
	for _, status := range statusOrder {
		if entry, ok := merged[string(status)]; ok {
			summary.ByStatus = append(summary.ByStatus, *entry)
		}
	}
	for _, name := range unknown {
		summary.ByStatus = append(summary.ByStatus, *merged[name])
	}
	return summary
}

func normalizeConfig(cfg Config) Config {
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = defaultWindowDays
	}
	if cfg.WindowDays > maxWindowDays {
		cfg.WindowDays = maxWindowDays
	}
	if cfg.DeadlineLimit <= 0 {
		cfg.DeadlineLimit = defaultDeadlineLimit
	}
	if cfg.CacheTTL < 0 {
		cfg.CacheTTL = 0
	}
	return cfg
}

func cacheKey(actor permission.Subject) string {
	if actor.IsAdmin() {
		return "admin"
	}
	return actor.UserID
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(dateOnly(to).Sub(dateOnly(from)).Hours() / 24)
}

type summaryCache struct {
	mu    sync.RWMutex
	items map[string]summaryCacheItem
}

type summaryCacheItem struct {
	summary   Summary
	expiresAt time.Time
}

func (c *summaryCache) Get(key string, now time.Time) (Summary, bool) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return Summary{}, false
	}

	if !item.expiresAt.After(now) {
		c.mu.Lock()
		item, ok = c.items[key]
		if ok && !item.expiresAt.After(now) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return Summary{}, false
	}

	return cloneSummary(item.summary), true
}

func (c *summaryCache) Set(key string, summary Summary, expiresAt time.Time) {
	c.mu.Lock()
	c.items[key] = summaryCacheItem{summary: cloneSummary(summary), expiresAt: expiresAt}
	c.mu.Unlock()
}

func cloneSummary(summary Summary) Summary {
	out := summary
	out.ByStatus = append(make([]StatusRow, 0, len(summary.ByStatus)), summary.ByStatus...)
	out.UpcomingDeadlines = append(make([]DeadlineRow, 0, len(summary.UpcomingDeadlines)), summary.UpcomingDeadlines...)
	return out
}
