package inmemory

import (
	"context"
	"testing"
	"time"

	"exchange-hub-go/internal/domain/permission"
)

func TestInMemoryPermissionCacheExpiry(t *testing.T) {
	c := NewInMemoryPermissionCache()
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }
	ctx := context.Background()

	c.Set(ctx, "ex1", "u1", permission.Effective{Role: permission.RoleClient, Permissions: permission.PermissionSet{permission.CanViewTasks: true}}, time.Minute)
	got, ok := c.Get(ctx, "ex1", "u1")
	if !ok || !got.Can(permission.CanViewTasks) {
		t.Fatalf("expected hit, got %+v", got)
	}

	got.Permissions[permission.CanEdit] = true
	again, _ := c.Get(ctx, "ex1", "u1")
	if again.Can(permission.CanEdit) {
		t.Fatalf("cached entry must not be shared with callers")
	}

	clock = clock.Add(2 * time.Minute)
	if _, ok := c.Get(ctx, "ex1", "u1"); ok {
		t.Fatalf("expected expired entry")
	}
	if len(c.items) != 0 {
		t.Fatalf("expected expired entry removed")
	}
}

func TestInMemoryPermissionCacheDeleteExchange(t *testing.T) {
	c := NewInMemoryPermissionCache()
	ctx := context.Background()
	entry := permission.Effective{Role: permission.RoleAgency}

	c.Set(ctx, "ex1", "u1", entry, time.Minute)
	c.Set(ctx, "ex1", "u2", entry, time.Minute)
	c.Set(ctx, "ex2", "u1", entry, time.Minute)

	c.DeleteExchange(ctx, "ex1")
	if _, ok := c.Get(ctx, "ex1", "u2"); ok {
		t.Fatalf("expected ex1 cleared")
	}
	if _, ok := c.Get(ctx, "ex2", "u1"); !ok {
		t.Fatalf("expected ex2 kept")
	}

	c.Set(ctx, "ex2", "u1", entry, 0)
	if _, ok := c.Get(ctx, "ex2", "u1"); ok {
		t.Fatalf("zero ttl should delete")
	}
}
