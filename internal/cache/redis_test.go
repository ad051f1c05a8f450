package cache

import (
	"context"
	"testing"
	"time"

	"exchange-hub-go/internal/domain/permission"
	"exchange-hub-go/pkg/logger"
	"github.com/alicebob/miniredis/v2"
)

func setupPermissionCache(t *testing.T) (*PermissionCache, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client, err := Connect(context.Background(), "redis://"+s.Addr())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return NewPermissionCache(client, logger.Discard()), s
}

func sampleEffective() permission.Effective {
	return permission.Effective{
		Role:          permission.RoleClient,
		Permissions:   permission.PermissionSet{permission.CanUploadDocuments: true, permission.CanEdit: false},
		Tabs:          []permission.Tab{permission.TabOverview, permission.TabDocuments},
		Source:        permission.SourceParticipant,
		IsParticipant: true,
	}
}

func TestPermissionCacheRoundTrip(t *testing.T) {
	c, s := setupPermissionCache(t)
	ctx := context.Background()

	if _, ok := c.Get(ctx, "ex1", "u1"); ok {
		t.Fatalf("expected miss on empty cache")
	}
	c.Set(ctx, "ex1", "u1", sampleEffective(), time.Minute)
	if !s.Exists("perm:ex1:u1") {
		t.Fatalf("expected key perm:ex1:u1")
	}

	got, ok := c.Get(ctx, "ex1", "u1")
	if !ok {
		t.Fatalf("expected hit")
	}
	if got.Role != permission.RoleClient || !got.Can(permission.CanUploadDocuments) || got.Can(permission.CanEdit) {
		t.Fatalf("unexpected entry %+v", got)
	}
	if len(got.Tabs) != 2 || !got.IsParticipant {
		t.Fatalf("unexpected entry %+v", got)
	}

	s.FastForward(2 * time.Minute)
	if _, ok := c.Get(ctx, "ex1", "u1"); ok {
		t.Fatalf("expected entry to expire")
	}
}

func TestPermissionCacheDeleteExchange(t *testing.T) {
	c, s := setupPermissionCache(t)
	ctx := context.Background()

	c.Set(ctx, "ex1", "u1", sampleEffective(), time.Minute)
	c.Set(ctx, "ex1", "u2", sampleEffective(), time.Minute)
	c.Set(ctx, "ex2", "u1", sampleEffective(), time.Minute)

	c.DeleteExchange(ctx, "ex1")
	if s.Exists("perm:ex1:u1") || s.Exists("perm:ex1:u2") {
		t.Fatalf("expected ex1 entries removed")
	}
	if !s.Exists("perm:ex2:u1") {
		t.Fatalf("expected ex2 entry kept")
	}

	c.Delete(ctx, "ex2", "u1")
	if s.Exists("perm:ex2:u1") {
		t.Fatalf("expected entry removed")
	}
}

func TestPermissionCacheDropsCorruptEntry(t *testing.T) {
	c, s := setupPermissionCache(t)
	if err := s.Set("perm:ex1:u1", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, ok := c.Get(context.Background(), "ex1", "u1"); ok {
		t.Fatalf("expected miss for corrupt entry")
	}
	if s.Exists("perm:ex1:u1") {
		t.Fatalf("expected corrupt entry removed")
	}
}

func TestPermissionCacheSurvivesRedisOutage(t *testing.T) {
	c, s := setupPermissionCache(t)
	s.Close()
	ctx := context.Background()

	c.Set(ctx, "ex1", "u1", sampleEffective(), time.Minute)
	if _, ok := c.Get(ctx, "ex1", "u1"); ok {
		t.Fatalf("expected miss while redis is down")
	}
	c.DeleteExchange(ctx, "ex1")
}
