package entitysync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"exchange-hub-go/internal/domain/exchange"
	"exchange-hub-go/internal/events"
	"exchange-hub-go/pkg/logger"
)

type fakeSyncRepo struct {
	mu        sync.Mutex
	exchanges []exchange.Exchange
	users     map[string]string // email or pp id -> user id
	contacts  map[string]string // email or pp id -> contact id
	created   []ContactInput
	marked    map[string]string
	saved     map[string]map[string]any
	listLimit int
	failEmail string
}

func newFakeSyncRepo(exchanges ...exchange.Exchange) *fakeSyncRepo {
	return &fakeSyncRepo{
		exchanges: exchanges,
		users:     map[string]string{},
		contacts:  map[string]string{},
		marked:    map[string]string{},
		saved:     map[string]map[string]any{},
	}
}

func (r *fakeSyncRepo) GetExchange(_ context.Context, id string) (*exchange.Exchange, error) {
	for i := range r.exchanges {
		if r.exchanges[i].ID == id {
			ex := r.exchanges[i]
			return &ex, nil
		}
	}
	return nil, ErrExchangeNotFound
}

// ListForSync ignores skipCompleted so the service-side filter is exercised.
func (r *fakeSyncRepo) ListForSync(_ context.Context, limit int, _ bool) ([]exchange.Exchange, error) {
	r.listLimit = limit
	out := make([]exchange.Exchange, len(r.exchanges))
	copy(out, r.exchanges)
	return out, nil
}

func (r *fakeSyncRepo) SaveMatter(_ context.Context, id string, data map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved[id] = data
	return nil
}

func (r *fakeSyncRepo) MarkSynced(_ context.Context, id, status string, _ *string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.marked[id] = status
	return nil
}

func (r *fakeSyncRepo) StatusSummary(context.Context) (*StatusSummary, error) {
	return &StatusSummary{Counts: map[string]int64{"completed": 1}, Total: 1}, nil
}

func (r *fakeSyncRepo) lookup(index map[string]string, ppID, email string) *MatchedRecord {
	if id, ok := index[ppID]; ok && ppID != "" {
		return &MatchedRecord{ID: id}
	}
	if id, ok := index[email]; ok && email != "" {
		return &MatchedRecord{ID: id}
	}
	return nil
}

func (r *fakeSyncRepo) FindUser(_ context.Context, ppID, email string) (*MatchedRecord, error) {
	if email != "" && email == r.failEmail {
		return nil, errors.New("query failed")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookup(r.users, ppID, email), nil
}

func (r *fakeSyncRepo) FindContact(_ context.Context, ppID, email string) (*MatchedRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookup(r.contacts, ppID, email), nil
}

func (r *fakeSyncRepo) UpdateUserPP(context.Context, string, string, map[string]any) error {
	return nil
}

func (r *fakeSyncRepo) UpdateContactPP(context.Context, string, string, map[string]any) error {
	return nil
}

func (r *fakeSyncRepo) CreateContact(_ context.Context, input ContactInput) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, input)
	id := "contact-new-" + input.PPID
	if input.PPID != "" {
		r.contacts[input.PPID] = id
	}
	if input.Email != "" {
		r.contacts[input.Email] = id
	}
	return id, nil
}

type fakeFetcher struct {
	matter map[string]any
	err    error
}

func (f *fakeFetcher) GetMatter(context.Context, string) (map[string]any, error) {
	return f.matter, f.err
}

func matter() map[string]any {
	return map[string]any{
		"account_ref": map[string]any{"id": float64(501), "display_name": "Jane Client", "email": "Jane@Example.com"},
		"contacts": []any{
			map[string]any{"id": "c-7", "first_name": "Ray", "last_name": "Broker", "email_address": "ray@broker.test"},
			map[string]any{"id": "c-8", "display_name": "No Email Escrow"},
			map[string]any{"display_name": "Nameless"},
		},
		"assigned_to_users": []any{
			map[string]any{"id": "u-1", "display_name": "Casey Coordinator", "email": "casey@firm.test"},
			map[string]any{"id": "u-1", "display_name": "Casey Coordinator", "email": "casey@firm.test"},
		},
	}
}

func newTestService(repo *fakeSyncRepo, fetcher MatterFetcher) *Service {
	return NewService(repo, fetcher, &events.Recorder{}, nil, Options{}, logger.Discard())
}

func TestExtractCandidates(t *testing.T) {
	candidates := Extract(matter())
	if len(candidates) != 5 {
		t.Fatalf("expected 5 unique candidates, got %d: %+v", len(candidates), candidates)
	}
	account := candidates[0]
	if account.Source != SourceAccount || account.PPID != "501" || account.Email != "jane@example.com" {
		t.Fatalf("unexpected account candidate %+v", account)
	}
	if account.FirstName != "Jane" || account.LastName != "Client" {
		t.Fatalf("expected display name split, got %+v", account)
	}
	if candidates[1].Email != "ray@broker.test" {
		t.Fatalf("expected email_address to be read, got %+v", candidates[1])
	}
}

func TestSyncExchangeMatchesAndCreates(t *testing.T) {
	repo := newFakeSyncRepo(exchange.Exchange{ID: "ex1", PPData: matter()})
	repo.users["casey@firm.test"] = "user-casey"
	repo.contacts["c-7"] = "contact-ray"
	svc := newTestService(repo, nil)

	result, err := svc.SyncExchange(context.Background(), "ex1")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	actions := map[string]int{}
	for _, e := range result.Entities {
		actions[e.Action]++
	}
	want := map[string]int{ActionMatchedUser: 1, ActionMatchedContact: 1, ActionCreatedContact: 2, ActionSkipped: 1}
	for action, n := range want {
		if actions[action] != n {
			t.Fatalf("expected %d %s, got %v", n, action, actions)
		}
	}
	if repo.marked["ex1"] != exchange.SyncStatusCompleted {
		t.Fatalf("expected completed mark, got %q", repo.marked["ex1"])
	}

	// A second run matches the contacts created by the first.
	result, _ = svc.SyncExchange(context.Background(), "ex1")
	for _, e := range result.Entities {
		if e.Action == ActionCreatedContact {
			t.Fatalf("second run should not create contacts: %+v", e)
		}
	}
}

func TestSyncExchangeEntityFailureMarksFailed(t *testing.T) {
	repo := newFakeSyncRepo(exchange.Exchange{ID: "ex1", PPData: matter()})
	repo.failEmail = "ray@broker.test"
	svc := newTestService(repo, nil)

	result, err := svc.SyncExchange(context.Background(), "ex1")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if result.Success || result.Error == "" {
		t.Fatalf("expected failure, got %+v", result)
	}
	if repo.marked["ex1"] != exchange.SyncStatusFailed {
		t.Fatalf("expected failed mark")
	}
	if _, err := svc.SyncExchange(context.Background(), "missing"); !errors.Is(err, ErrExchangeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSyncExchangeRefreshesMatter(t *testing.T) {
	matterID := "m-1"
	repo := newFakeSyncRepo(exchange.Exchange{ID: "ex1", PPMatterID: &matterID})
	fresh := map[string]any{"assigned_to_users": []any{map[string]any{"id": "u-9", "email": "new@firm.test"}}}
	svc := newTestService(repo, &fakeFetcher{matter: fresh})

	result, _ := svc.SyncExchange(context.Background(), "ex1")
	if !result.Refreshed || !result.Success || len(result.Entities) != 1 {
		t.Fatalf("expected refreshed sync, got %+v", result)
	}
	if repo.saved["ex1"] == nil {
		t.Fatalf("expected refreshed matter stored")
	}

	failing := newTestService(newFakeSyncRepo(exchange.Exchange{ID: "ex2", PPMatterID: &matterID}), &fakeFetcher{err: errors.New("401")})
	result, _ = failing.SyncExchange(context.Background(), "ex2")
	if result.Success || result.Refreshed {
		t.Fatalf("expected failure without matter data, got %+v", result)
	}
}

func TestBulkSkipsCompletedAndCapsLimit(t *testing.T) {
	completed := exchange.SyncStatusCompleted
	failed := exchange.SyncStatusFailed
	var exchanges []exchange.Exchange
	for i := 0; i < 15; i++ {
		ex := exchange.Exchange{ID: string(rune('a' + i)), PPData: map[string]any{"contacts": []any{map[string]any{"id": string(rune('a' + i))}}}}
		switch i % 3 {
		case 0:
			ex.EntitySyncStatus = &completed
		case 1:
			ex.EntitySyncStatus = &failed
		}
		exchanges = append(exchanges, ex)
	}
	repo := newFakeSyncRepo(exchanges...)
	svc := NewService(repo, nil, nil, nil, Options{Concurrency: 3}, logger.Discard())

	result, err := svc.Bulk(context.Background(), BulkOptions{Limit: 10, SkipCompleted: true})
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	if result.Processed != 10 || result.Succeeded != 10 {
		t.Fatalf("expected 10 processed, got %+v", result)
	}
	for _, r := range result.Results {
		for _, ex := range exchanges {
			if ex.ID == r.ExchangeID && ex.EntitySyncStatus != nil && *ex.EntitySyncStatus == completed {
				t.Fatalf("completed exchange %s should be skipped", ex.ID)
			}
		}
	}

	if _, err := svc.Bulk(context.Background(), BulkOptions{Limit: 1000}); err != nil {
		t.Fatalf("bulk: %v", err)
	}
	if repo.listLimit != MaxBulkLimit {
		t.Fatalf("expected limit capped at %d, got %d", MaxBulkLimit, repo.listLimit)
	}
	if _, err := svc.Bulk(context.Background(), BulkOptions{}); err != nil || repo.listLimit != DefaultBulkLimit {
		t.Fatalf("expected default limit, got %d", repo.listLimit)
	}
}

func TestBulkStopsStartingWhenCancelled(t *testing.T) {
	repo := newFakeSyncRepo(
		exchange.Exchange{ID: "a", PPData: matter()},
		exchange.Exchange{ID: "b", PPData: matter()},
	)
	svc := NewService(repo, nil, nil, nil, Options{Rate: 0.001, Burst: 1}, logger.Discard())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	result, err := svc.Bulk(ctx, BulkOptions{Limit: 2})
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	if result.Processed != 2 || result.Succeeded != 1 || result.Failed != 1 {
		t.Fatalf("expected one started and one not, got %+v", result)
	}
}
