package notification

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"exchange-hub-go/internal/domain/permission"
	"exchange-hub-go/pkg/logger"
)

type fakeNotificationRepo struct {
	items      []*Notification
	recipients map[string][]string
	failUser   string
}

func (r *fakeNotificationRepo) Create(_ context.Context, n *Notification) error {
	if n.UserID == r.failUser {
		return errors.New("insert failed")
	}
	clone := *n
	r.items = append(r.items, &clone)
	return nil
}

func (r *fakeNotificationRepo) CreateMany(ctx context.Context, items []Notification) error {
	for i := range items {
		if err := r.Create(ctx, &items[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeNotificationRepo) List(_ context.Context, filter ListFilter) ([]Notification, int64, error) {
	var out []Notification
	for _, n := range r.items {
		if n.UserID != filter.UserID {
			continue
		}
		if n.ExpiresAt != nil && !n.ExpiresAt.After(filter.Now) {
			continue
		}
		if filter.UnreadOnly && n.ReadAt != nil {
			continue
		}
		if !filter.IncludeArchived && n.ArchivedAt != nil {
			continue
		}
		out = append(out, *n)
	}
	return out, int64(len(out)), nil
}

func (r *fakeNotificationRepo) CountUnread(_ context.Context, userID string, _ time.Time) (int64, error) {
	var n int64
	for _, item := range r.items {
		if item.UserID == userID && item.ReadAt == nil && item.ArchivedAt == nil {
			n++
		}
	}
	return n, nil
}

func (r *fakeNotificationRepo) find(userID, id string) *Notification {
	for _, n := range r.items {
		if n.ID == id && n.UserID == userID {
			return n
		}
	}
	return nil
}

func (r *fakeNotificationRepo) MarkRead(_ context.Context, userID, id string, at time.Time) (bool, error) {
	n := r.find(userID, id)
	if n == nil {
		return false, nil
	}
	n.ReadAt = &at
	return true, nil
}

func (r *fakeNotificationRepo) MarkAllRead(_ context.Context, userID string, at time.Time) (int64, error) {
	var count int64
	for _, n := range r.items {
		if n.UserID == userID && n.ReadAt == nil {
			n.ReadAt = &at
			count++
		}
	}
	return count, nil
}

func (r *fakeNotificationRepo) Archive(_ context.Context, userID, id string, at time.Time) (bool, error) {
	n := r.find(userID, id)
	if n == nil {
		return false, nil
	}
	n.ArchivedAt = &at
	return true, nil
}

func (r *fakeNotificationRepo) Delete(_ context.Context, userID, id string) (bool, error) {
	for i, n := range r.items {
		if n.ID == id && n.UserID == userID {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeNotificationRepo) ExchangeRecipients(_ context.Context, exchangeID string) ([]string, error) {
	return r.recipients[exchangeID], nil
}

const (
	userA = "aaaaaaaa-0000-0000-0000-000000000001"
	userB = "bbbbbbbb-0000-0000-0000-000000000002"
	userC = "cccccccc-0000-0000-0000-000000000003"
)

var (
	coordinator = permission.Subject{UserID: userC, Role: permission.RoleCoordinator}
	client      = permission.Subject{UserID: userA, Role: permission.RoleClient}
	now         = time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)
)

type fakeAuditor struct {
	actions []string
}

func (a *fakeAuditor) Record(_ context.Context, action, _, entityID, _ string, _ map[string]any) {
	a.actions = append(a.actions, action+"/"+entityID)
}

func newTestService() (*Service, *fakeNotificationRepo, *fakeAuditor) {
	repo := &fakeNotificationRepo{recipients: map[string][]string{}}
	auditor := &fakeAuditor{}
	svc := NewService(repo, nil, auditor, logger.Discard())
	svc.now = func() time.Time { return now }
	return svc, repo, auditor
}

func TestCreateRequiresStaffRole(t *testing.T) {
	svc, _, _ := newTestService()
	input := CreateInput{UserID: userA, Title: "Hello", Message: "Welcome"}

	if _, err := svc.Create(context.Background(), client, input); !errors.Is(err, permission.ErrPermissionDenied) {
		t.Fatalf("expected denied, got %v", err)
	}
	n, err := svc.Create(context.Background(), coordinator, input)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if n.Category != CategorySystem || n.Priority != PriorityNormal || *n.CreatedBy != userC {
		t.Fatalf("unexpected notification %+v", n)
	}
}

func TestCreateBatchReportsPerItem(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.failUser = userB

	results, err := svc.CreateBatch(context.Background(), coordinator, []CreateInput{
		{UserID: userA, Title: "One", Message: "m"},
		{UserID: "nobody", Title: "Two", Message: "m"},
		{UserID: userB, Title: "Three", Message: "m"},
		{UserID: userA, Title: "Four", Message: "m", Category: "deadline", Priority: "urgent"},
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	want := []bool{true, false, false, true}
	for i, r := range results {
		if r.Index != i || r.Success != want[i] {
			t.Fatalf("item %d: unexpected result %+v", i, r)
		}
	}
	if results[2].Error != "failed to create notification" {
		t.Fatalf("upstream error must not leak, got %q", results[2].Error)
	}
	if len(repo.items) != 2 {
		t.Fatalf("expected 2 stored, got %d", len(repo.items))
	}
}

func TestCreateFromTemplate(t *testing.T) {
	svc, repo, _ := newTestService()

	items, err := svc.CreateFromTemplate(context.Background(), coordinator, TemplateInput{
		TemplateKey: "task_assigned",
		UserIDs:     []string{userA, userB, userA},
		Variables:   map[string]string{"TaskTitle": "Sign 8824"},
	})
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	if len(items) != 2 || len(repo.items) != 2 {
		t.Fatalf("expected one per unique recipient, got %d", len(items))
	}
	if items[0].Title != "New task: Sign 8824" || items[0].Category != CategoryTask {
		t.Fatalf("unexpected render %+v", items[0])
	}
	if strings.Contains(items[0].Message, "due") || strings.Contains(items[0].Message, "<no value>") {
		t.Fatalf("missing variables should render empty, got %q", items[0].Message)
	}

	if _, err := svc.CreateFromTemplate(context.Background(), coordinator, TemplateInput{TemplateKey: "nope", UserIDs: []string{userA}}); !errors.Is(err, ErrUnknownTemplate) {
		t.Fatalf("expected unknown template, got %v", err)
	}
	if _, err := svc.CreateFromTemplate(context.Background(), coordinator, TemplateInput{TemplateKey: "task_assigned"}); !errors.Is(err, ErrRecipientsRequired) {
		t.Fatalf("expected recipients required, got %v", err)
	}
}

func TestNotifyExchangeExcludesActor(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.recipients["ex1"] = []string{userA, userB, userC, userA}

	err := svc.NotifyExchange(context.Background(), "ex1", userC, "exchange_status_changed", map[string]string{
		"ExchangeName": "Maple", "FromStatus": "Pending", "ToStatus": "45D",
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(repo.items) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(repo.items))
	}
	for _, n := range repo.items {
		if n.UserID == userC {
			t.Fatalf("actor should not be notified")
		}
		if n.Title != "Maple moved to 45D" || *n.ExchangeID != "ex1" {
			t.Fatalf("unexpected notification %+v", n)
		}
	}
}

func TestOwnershipAndExpiry(t *testing.T) {
	svc, repo, _ := newTestService()
	past := now.Add(-time.Hour)
	repo.items = []*Notification{
		{ID: "n1", UserID: userA, Title: "a"},
		{ID: "n2", UserID: userA, Title: "b", ExpiresAt: &past},
		{ID: "n3", UserID: userB, Title: "c"},
	}

	items, _, err := svc.List(context.Background(), client, ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].ID != "n1" {
		t.Fatalf("expected only n1, got %+v", items)
	}
	if err := svc.MarkRead(context.Background(), client, "n3"); !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("expected not found for foreign notification, got %v", err)
	}
	if err := svc.Archive(context.Background(), client, "n1"); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if items, _, _ := svc.List(context.Background(), client, ListFilter{}); len(items) != 0 {
		t.Fatalf("archived notification should be hidden")
	}
	if count, _ := svc.MarkAllRead(context.Background(), client); count != 2 {
		t.Fatalf("expected 2 marked read, got %d", count)
	}
	if err := svc.Delete(context.Background(), client, "n1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestMutationsAreAudited(t *testing.T) {
	svc, repo, auditor := newTestService()

	created, err := svc.Create(context.Background(), coordinator, CreateInput{UserID: userA, Title: "Hello", Message: "Welcome"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.CreateBatch(context.Background(), coordinator, []CreateInput{
		{UserID: userB, Title: "Batch", Message: "One"},
		{UserID: userB, Message: "missing title"},
	}); err != nil {
		t.Fatalf("batch: %v", err)
	}
	if _, err := svc.CreateFromTemplate(context.Background(), coordinator, TemplateInput{
		TemplateKey: "task_assigned",
		UserIDs:     []string{userA},
	}); err != nil {
		t.Fatalf("template: %v", err)
	}
	if len(auditor.actions) != 3 || auditor.actions[0] != "notification.created/"+created.ID {
		t.Fatalf("expected one entry per stored notification, got %v", auditor.actions)
	}

	if err := svc.MarkRead(context.Background(), client, created.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if err := svc.Archive(context.Background(), client, created.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if _, err := svc.MarkAllRead(context.Background(), client); err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	if err := svc.Delete(context.Background(), client, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.Delete(context.Background(), client, "missing"); !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	want := []string{
		"notification.read/" + created.ID,
		"notification.archived/" + created.ID,
		"notification.read_all/" + userA,
		"notification.deleted/" + created.ID,
	}
	got := auditor.actions[3:]
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	repo.failUser = userC
	if _, err := svc.Create(context.Background(), coordinator, CreateInput{UserID: userC, Title: "x", Message: "y"}); err == nil {
		t.Fatalf("expected create failure")
	}
	if len(auditor.actions) != 3+len(want) {
		t.Fatalf("failed writes must not be audited, got %v", auditor.actions)
	}
}

func TestDefaultTemplatesRender(t *testing.T) {
	templates := DefaultTemplates()
	for _, key := range []string{"exchange_status_changed", "task_assigned", "document_uploaded", "invitation_accepted", "deadline_approaching", "participant_added"} {
		tmpl, ok := templates.Get(key)
		if !ok {
			t.Fatalf("missing template %s", key)
		}
		if _, err := tmpl.Render(nil); err != nil {
			t.Fatalf("%s: %v", key, err)
		}
	}
	if _, err := LoadTemplates(strings.NewReader("templates:\n  x:\n    category: bogus\n    priority: low\n    title: t\n    message: m\n")); err == nil {
		t.Fatalf("expected unknown category rejected")
	}
}
