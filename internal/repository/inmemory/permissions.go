package inmemory

import (
	"context"
	"sync"
	"time"

	"exchange-hub-go/internal/domain/permission"
)

// InMemoryPermissionCache keeps resolved permissions per exchange and user
// for a single process.
type InMemoryPermissionCache struct {
	mu    sync.RWMutex
	items map[string]map[string]permissionItem
	now   func() time.Time
}

type permissionItem struct {
	value     permission.Effective
	expiresAt time.Time
}

func NewInMemoryPermissionCache() *InMemoryPermissionCache {
	return &InMemoryPermissionCache{
		items: make(map[string]map[string]permissionItem),
		now:   time.Now,
	}
}

func (c *InMemoryPermissionCache) Get(_ context.Context, exchangeID, userID string) (*permission.Effective, bool) {
	now := c.now()

	c.mu.RLock()
	item, ok := c.items[exchangeID][userID]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if !item.expiresAt.After(now) {
		c.mu.Lock()
		item, ok = c.items[exchangeID][userID]
		if ok && !item.expiresAt.After(now) {
			c.deleteLocked(exchangeID, userID)
		}
		c.mu.Unlock()
		return nil, false
	}

	value := item.value
	value.Permissions = item.value.Permissions.Clone()
	return &value, true
}

func (c *InMemoryPermissionCache) Set(ctx context.Context, exchangeID, userID string, effective permission.Effective, ttl time.Duration) {
	if ttl <= 0 {
		c.Delete(ctx, exchangeID, userID)
		return
	}

	effective.Permissions = effective.Permissions.Clone()
	c.mu.Lock()
	users, ok := c.items[exchangeID]
	if !ok {
		users = make(map[string]permissionItem)
		c.items[exchangeID] = users
	}
	users[userID] = permissionItem{
		value:     effective,
		expiresAt: c.now().Add(ttl),
	}
	c.mu.Unlock()
}

func (c *InMemoryPermissionCache) Delete(_ context.Context, exchangeID, userID string) {
	c.mu.Lock()
	c.deleteLocked(exchangeID, userID)
	c.mu.Unlock()
}

func (c *InMemoryPermissionCache) DeleteExchange(_ context.Context, exchangeID string) {
	c.mu.Lock()
	delete(c.items, exchangeID)
	c.mu.Unlock()
}

func (c *InMemoryPermissionCache) Clear() {
	c.mu.Lock()
	c.items = make(map[string]map[string]permissionItem)
	c.mu.Unlock()
}

func (c *InMemoryPermissionCache) deleteLocked(exchangeID, userID string) {
	users, ok := c.items[exchangeID]
	if !ok {
		return
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(c.items, exchangeID)
	}
}
