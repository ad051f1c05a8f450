package permission

import (
	"context"
	"errors"
	"testing"
	"time"

	"exchange-hub-go/internal/apperror"
	"exchange-hub-go/pkg/logger"
)

type fakeAssignments struct {
	byKey map[string]*Assignment
	err   error
	calls int
}

func (f *fakeAssignments) FindAssignment(_ context.Context, exchangeID, userID string) (*Assignment, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.byKey[exchangeID+"/"+userID], nil
}

type mapCache struct {
	items map[string]Effective
}

func newMapCache() *mapCache {
	return &mapCache{items: map[string]Effective{}}
}

func (c *mapCache) Get(_ context.Context, exchangeID, userID string) (*Effective, bool) {
	e, ok := c.items[exchangeID+"/"+userID]
	if !ok {
		return nil, false
	}
	return &e, true
}

func (c *mapCache) Set(_ context.Context, exchangeID, userID string, e Effective, _ time.Duration) {
	c.items[exchangeID+"/"+userID] = e
}

func (c *mapCache) Delete(_ context.Context, exchangeID, userID string) {
	delete(c.items, exchangeID+"/"+userID)
}

func (c *mapCache) DeleteExchange(_ context.Context, exchangeID string) {
	for k := range c.items {
		if len(k) > len(exchangeID) && k[:len(exchangeID)+1] == exchangeID+"/" {
			delete(c.items, k)
		}
	}
}

func TestResolveForExchangeAdminSkipsLookup(t *testing.T) {
	src := &fakeAssignments{err: errors.New("should not be called")}
	svc := NewService(nil, src, nil, time.Minute, logger.Discard())

	effective := svc.ResolveForExchange(context.Background(), Subject{UserID: "u1", Role: RoleAdmin}, "ex1")
	if effective.Source != SourceAdmin || !effective.Can(CanDelete) {
		t.Fatalf("expected admin permissions, got %+v", effective)
	}
	if src.calls != 0 {
		t.Fatalf("expected no lookup, got %d", src.calls)
	}
}

func TestResolveForExchangeUsesParticipantRoleAndOverrides(t *testing.T) {
	src := &fakeAssignments{byKey: map[string]*Assignment{
		"ex1/u1": {Role: "coordinator", Overrides: Overrides{CanDelete: boolPtr(true), CanEditFinancial: boolPtr(false)}},
	}}
	svc := NewService(nil, src, nil, time.Minute, logger.Discard())

	effective := svc.ResolveForExchange(context.Background(), Subject{UserID: "u1", Role: RoleClient}, "ex1")
	if effective.Role != RoleCoordinator {
		t.Fatalf("expected coordinator role, got %s", effective.Role)
	}
	if !effective.Can(CanDelete) || effective.Can(CanEditFinancial) || !effective.Can(CanEdit) {
		t.Fatalf("unexpected permissions: %v", effective.Permissions)
	}
	if !effective.IsParticipant {
		t.Fatalf("expected participant flag")
	}
}

func TestResolveForExchangeParticipantCannotClaimAdmin(t *testing.T) {
	src := &fakeAssignments{byKey: map[string]*Assignment{
		"ex1/u1": {Role: "admin"},
	}}
	svc := NewService(nil, src, nil, time.Minute, logger.Discard())

	effective := svc.ResolveForExchange(context.Background(), Subject{UserID: "u1", Role: RoleAgency}, "ex1")
	if effective.Role != RoleAgency || effective.Can(CanDelete) {
		t.Fatalf("expected agency defaults, got %+v", effective)
	}
}

func TestResolveForExchangeFallsBackOnLookupError(t *testing.T) {
	cache := newMapCache()
	src := &fakeAssignments{err: errors.New("connection refused")}
	svc := NewService(nil, src, cache, time.Minute, logger.Discard())

	effective := svc.ResolveForExchange(context.Background(), Subject{UserID: "u1", Role: RoleClient}, "ex1")
	if effective.Source != SourceFallback {
		t.Fatalf("expected fallback source, got %s", effective.Source)
	}
	if !effective.Can(CanUploadDocuments) || effective.Can(CanEdit) {
		t.Fatalf("expected client defaults, got %v", effective.Permissions)
	}
	if len(cache.items) != 0 {
		t.Fatalf("expected fallback to stay uncached")
	}
}

func TestResolveForExchangeCachesAndInvalidates(t *testing.T) {
	cache := newMapCache()
	src := &fakeAssignments{byKey: map[string]*Assignment{
		"ex1/u1": {Role: "client"},
	}}
	svc := NewService(nil, src, cache, time.Minute, logger.Discard())
	subject := Subject{UserID: "u1", Role: RoleClient}

	svc.ResolveForExchange(context.Background(), subject, "ex1")
	svc.ResolveForExchange(context.Background(), subject, "ex1")
	if src.calls != 1 {
		t.Fatalf("expected one lookup, got %d", src.calls)
	}

	svc.Invalidate(context.Background(), "ex1", "u1")
	svc.ResolveForExchange(context.Background(), subject, "ex1")
	if src.calls != 2 {
		t.Fatalf("expected lookup after invalidate, got %d", src.calls)
	}

	svc.InvalidateExchange(context.Background(), "ex1")
	if len(cache.items) != 0 {
		t.Fatalf("expected exchange entries removed, got %d", len(cache.items))
	}
}

func TestRequire(t *testing.T) {
	src := &fakeAssignments{byKey: map[string]*Assignment{
		"ex1/client": {Role: "client"},
	}}
	svc := NewService(nil, src, nil, time.Minute, logger.Discard())
	ctx := context.Background()

	if _, err := svc.Require(ctx, Subject{UserID: "client", Role: RoleClient}, "ex1", CanUploadDocuments); err != nil {
		t.Fatalf("expected upload allowed, got %v", err)
	}

	_, err := svc.Require(ctx, Subject{UserID: "client", Role: RoleClient}, "ex1", CanDelete)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if apperror.From(err).Status() != 403 {
		t.Fatalf("expected 403, got %d", apperror.From(err).Status())
	}

	_, err = svc.RequireAccess(ctx, Subject{UserID: "stranger", Role: RoleCoordinator}, "ex1")
	if !errors.Is(err, ErrNoExchangeAccess) {
		t.Fatalf("expected no access, got %v", err)
	}
}

func TestRequireRole(t *testing.T) {
	if err := RequireRole(Subject{Role: RoleAdmin}, RoleAdmin); err != nil {
		t.Fatalf("expected admin allowed, got %v", err)
	}
	if err := RequireRole(Subject{Role: RoleCoordinator}, RoleAdmin); !errors.Is(err, ErrAdminOnly) {
		t.Fatalf("expected admin only, got %v", err)
	}
	if err := RequireRole(Subject{Role: RoleClient}, RoleAdmin, RoleCoordinator); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected denied, got %v", err)
	}
}
