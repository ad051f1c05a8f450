package entitysync

import (
	"context"
	"fmt"
	"time"

	"exchange-hub-go/internal/apperror"
	"exchange-hub-go/internal/domain/audit"
	"exchange-hub-go/internal/domain/exchange"
	"exchange-hub-go/internal/events"
	"exchange-hub-go/pkg/logger"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	DefaultBulkLimit = 10
	MaxBulkLimit     = 100
)

type Auditor interface {
	Record(ctx context.Context, action, entityType, entityID, exchangeID string, details map[string]any)
}

type Options struct {
	// Rate is the number of exchanges started per second during a bulk run.
	// Zero or less disables pacing.
	Rate        float64
	Burst       int
	Concurrency int
}

type Service struct {
	repo        Repository
	fetcher     MatterFetcher
	publisher   events.Publisher
	audit       Auditor
	log         logger.Logger
	limiter     *rate.Limiter
	concurrency int
	now         func() time.Time
}

// NewService builds the sync service. fetcher may be nil, in which case the
// stored matter data is used as is.
func NewService(repo Repository, fetcher MatterFetcher, publisher events.Publisher, auditor Auditor, opts Options, log logger.Logger) *Service {
	limit := rate.Inf
	if opts.Rate > 0 {
		limit = rate.Limit(opts.Rate)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Service{
		repo:        repo,
		fetcher:     fetcher,
		publisher:   publisher,
		audit:       auditor,
		log:         log,
		limiter:     rate.NewLimiter(limit, burst),
		concurrency: concurrency,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SyncExchange matches every person in one exchange's matter against users
// and contacts, creating contacts for the unmatched. Per-entity failures are
// reported in the result; the exchange is then marked failed.
func (s *Service) SyncExchange(ctx context.Context, exchangeID string) (*ExchangeResult, error) {
	ex, err := s.repo.GetExchange(ctx, exchangeID)
	if err != nil {
		return nil, err
	}
	return s.syncOne(ctx, ex), nil
}

// Bulk syncs up to opts.Limit exchanges. Starts are paced by a token bucket
// and at most Concurrency exchanges run at once. One exchange failing does not
// stop the batch.
func (s *Service) Bulk(ctx context.Context, opts BulkOptions) (*BulkResult, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultBulkLimit
	}
	if opts.Limit > MaxBulkLimit {
		opts.Limit = MaxBulkLimit
	}

	targets, err := s.repo.ListForSync(ctx, opts.Limit, opts.SkipCompleted)
	if err != nil {
		return nil, apperror.Upstream("entity_sync_list_failed", err)
	}
	if opts.SkipCompleted {
		kept := targets[:0]
		for _, t := range targets {
			if t.EntitySyncStatus == nil || *t.EntitySyncStatus != exchange.SyncStatusCompleted {
				kept = append(kept, t)
			}
		}
		targets = kept
	}
	if len(targets) > opts.Limit {
		targets = targets[:opts.Limit]
	}

	results := make([]ExchangeResult, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range targets {
		ex := &targets[i]
		g.Go(func() error {
			if err := s.limiter.Wait(gctx); err != nil {
				results[i] = ExchangeResult{ExchangeID: ex.ID, Error: fmt.Sprintf("not started: %v", err)}
				return nil
			}
			results[i] = *s.syncOne(gctx, ex)
			return nil
		})
	}
	_ = g.Wait()

	out := &BulkResult{Processed: len(results), Results: results}
	for _, r := range results {
		if r.Success {
			out.Succeeded++
		} else {
			out.Failed++
		}
	}
	logger.FromContext(ctx, s.log).Info("entity_sync.bulk: batch finished",
		"processed", out.Processed, "succeeded", out.Succeeded, "failed", out.Failed)
	return out, nil
}

func (s *Service) Status(ctx context.Context) (*StatusSummary, error) {
	summary, err := s.repo.StatusSummary(ctx)
	if err != nil {
		return nil, apperror.Upstream("entity_sync_status_failed", err)
	}
	return summary, nil
}

func (s *Service) syncOne(ctx context.Context, ex *exchange.Exchange) *ExchangeResult {
	log := logger.FromContext(ctx, s.log)
	result := &ExchangeResult{ExchangeID: ex.ID, Entities: []EntityResult{}}

	data := ex.PPData
	if s.fetcher != nil && ex.PPMatterID != nil && *ex.PPMatterID != "" {
		matter, err := s.fetcher.GetMatter(ctx, *ex.PPMatterID)
		if err != nil {
			log.Warn("entity_sync.refresh: using stored matter", "exchange_id", ex.ID, "error", err)
		} else {
			if err := s.repo.SaveMatter(ctx, ex.ID, matter); err != nil {
				log.InternalError("entity_sync.refresh: save failed", err, "exchange_id", ex.ID)
			}
			data = matter
			result.Refreshed = true
		}
	}

	if len(data) == 0 {
		result.Error = ErrNoMatterData.Message
		s.finish(ctx, ex.ID, result)
		return result
	}

	var failures int
	for _, c := range Extract(data) {
		entity := s.syncCandidate(ctx, c)
		if entity.Action == ActionFailed {
			failures++
		}
		result.Entities = append(result.Entities, entity)
	}
	if failures > 0 {
		result.Error = fmt.Sprintf("%d of %d entities failed", failures, len(result.Entities))
	} else {
		result.Success = true
	}
	s.finish(ctx, ex.ID, result)
	return result
}

func (s *Service) syncCandidate(ctx context.Context, c Candidate) EntityResult {
	entity := EntityResult{Source: c.Source, PPID: c.PPID, Email: c.Email, Name: c.Name()}
	if c.PPID == "" && c.Email == "" {
		entity.Action = ActionSkipped
		entity.Error = "no PracticePanther id or email"
		return entity
	}
	fail := func(err error) EntityResult {
		logger.FromContext(ctx, s.log).InternalError("entity_sync.match: entity failed", err, "pp_id", c.PPID)
		entity.Action = ActionFailed
		entity.Error = "failed to sync entity"
		return entity
	}

	userMatch, err := s.repo.FindUser(ctx, c.PPID, c.Email)
	if err != nil {
		return fail(err)
	}
	if userMatch != nil {
		if err := s.repo.UpdateUserPP(ctx, userMatch.ID, c.PPID, c.Raw); err != nil {
			return fail(err)
		}
		entity.Action = ActionMatchedUser
		entity.MatchedID = userMatch.ID
		return entity
	}

	contactMatch, err := s.repo.FindContact(ctx, c.PPID, c.Email)
	if err != nil {
		return fail(err)
	}
	if contactMatch != nil {
		if err := s.repo.UpdateContactPP(ctx, contactMatch.ID, c.PPID, c.Raw); err != nil {
			return fail(err)
		}
		entity.Action = ActionMatchedContact
		entity.MatchedID = contactMatch.ID
		return entity
	}

	id, err := s.repo.CreateContact(ctx, ContactInput{
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Email:     c.Email,
		Phone:     c.Phone,
		Company:   c.Company,
		PPID:      c.PPID,
		Raw:       c.Raw,
	})
	if err != nil {
		return fail(err)
	}
	entity.Action = ActionCreatedContact
	entity.MatchedID = id
	return entity
}

func (s *Service) finish(ctx context.Context, exchangeID string, result *ExchangeResult) {
	status := exchange.SyncStatusCompleted
	var syncErr *string
	if !result.Success {
		status = exchange.SyncStatusFailed
		syncErr = &result.Error
	}
	if err := s.repo.MarkSynced(ctx, exchangeID, status, syncErr, s.now()); err != nil {
		logger.FromContext(ctx, s.log).InternalError("entity_sync.mark: status update failed", err, "exchange_id", exchangeID)
	}

	counts := map[string]int{}
	for _, e := range result.Entities {
		counts[e.Action]++
	}
	if s.audit != nil {
		s.audit.Record(ctx, audit.ActionEntitySync, audit.EntityExchange, exchangeID, exchangeID, map[string]any{
			"success": result.Success,
			"actions": counts,
		})
	}
	if s.publisher != nil {
		payload := map[string]any{"success": result.Success, "entities": len(result.Entities)}
		if err := s.publisher.Publish(ctx, events.New(events.EntitySyncCompleted, exchangeID, "", payload)); err != nil {
			logger.FromContext(ctx, s.log).InternalError("entity_sync.publish: publish failed", err, "exchange_id", exchangeID)
		}
	}
}
