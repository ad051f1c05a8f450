package audit

import (
	"context"
	"errors"
	"testing"

	"exchange-hub-go/internal/domain/permission"
	"exchange-hub-go/pkg/logger"
)

type fakeAuditRepo struct {
	entries   []Entry
	appendErr error
	lastList  ListFilter
}

func (r *fakeAuditRepo) Append(_ context.Context, entry *Entry) error {
	if r.appendErr != nil {
		return r.appendErr
	}
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeAuditRepo) List(_ context.Context, filter ListFilter) ([]Entry, error) {
	r.lastList = filter
	return r.entries, nil
}

type allowAll struct {
	denied error
}

func (a allowAll) Require(context.Context, permission.Subject, string, permission.Capability) (permission.Effective, error) {
	return permission.Effective{}, a.denied
}

func TestRecordStampsRequestMeta(t *testing.T) {
	repo := &fakeAuditRepo{}
	svc := NewService(repo, allowAll{}, logger.Discard())

	ctx := WithMeta(context.Background(), Meta{ActorID: "u1", IPAddress: "10.0.0.1", UserAgent: "curl/8"})
	svc.Record(ctx, ActionExchangeCreated, EntityExchange, "ex1", "ex1", map[string]any{"name": "Main St"})

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	entry := repo.entries[0]
	if entry.ID == "" || entry.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp, got %+v", entry)
	}
	if entry.ActorID == nil || *entry.ActorID != "u1" {
		t.Fatalf("expected actor u1, got %v", entry.ActorID)
	}
	if entry.IPAddress == nil || *entry.IPAddress != "10.0.0.1" {
		t.Fatalf("expected ip, got %v", entry.IPAddress)
	}
	if entry.ExchangeID == nil || *entry.ExchangeID != "ex1" {
		t.Fatalf("expected exchange id, got %v", entry.ExchangeID)
	}
}

func TestRecordSwallowsAppendFailure(t *testing.T) {
	repo := &fakeAuditRepo{appendErr: errors.New("db down")}
	svc := NewService(repo, allowAll{}, logger.Discard())

	svc.Record(context.Background(), ActionTaskCreated, EntityTask, "t1", "", nil)
}

func TestNewEntryWithoutMeta(t *testing.T) {
	entry := NewEntry(context.Background(), ActionUserUpdated, EntityUser, "u1", "", nil)
	if entry.ActorID != nil || entry.ExchangeID != nil || entry.IPAddress != nil {
		t.Fatalf("expected empty optional fields, got %+v", entry)
	}
}

func TestListRequiresAdmin(t *testing.T) {
	svc := NewService(&fakeAuditRepo{}, allowAll{}, logger.Discard())

	_, err := svc.List(context.Background(), permission.Subject{UserID: "u1", Role: permission.RoleCoordinator}, ListFilter{})
	if !errors.Is(err, permission.ErrAdminOnly) {
		t.Fatalf("expected admin only, got %v", err)
	}
}

func TestListClampsLimit(t *testing.T) {
	repo := &fakeAuditRepo{}
	svc := NewService(repo, allowAll{}, logger.Discard())
	admin := permission.Subject{UserID: "a", Role: permission.RoleAdmin}

	if _, err := svc.List(context.Background(), admin, ListFilter{Limit: 10000}); err != nil {
		t.Fatalf("list: %v", err)
	}
	if repo.lastList.Limit != maxListLimit {
		t.Fatalf("expected limit %d, got %d", maxListLimit, repo.lastList.Limit)
	}

	if _, err := svc.List(context.Background(), admin, ListFilter{}); err != nil {
		t.Fatalf("list: %v", err)
	}
	if repo.lastList.Limit != defaultListLimit {
		t.Fatalf("expected default limit, got %d", repo.lastList.Limit)
	}
}

func TestListForExchangeChecksCapability(t *testing.T) {
	repo := &fakeAuditRepo{}
	svc := NewService(repo, allowAll{denied: permission.ErrPermissionDenied}, logger.Discard())

	_, err := svc.ListForExchange(context.Background(), permission.Subject{UserID: "u", Role: permission.RoleClient}, "ex1", ListFilter{})
	if !errors.Is(err, permission.ErrPermissionDenied) {
		t.Fatalf("expected denied, got %v", err)
	}

	svc = NewService(repo, allowAll{}, logger.Discard())
	if _, err := svc.ListForExchange(context.Background(), permission.Subject{UserID: "u", Role: permission.RoleCoordinator}, "ex1", ListFilter{ExchangeID: "other"}); err != nil {
		t.Fatalf("list: %v", err)
	}
	if repo.lastList.ExchangeID != "ex1" {
		t.Fatalf("expected exchange filter forced, got %s", repo.lastList.ExchangeID)
	}
}
