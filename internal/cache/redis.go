// Package cache holds the Redis-backed caches.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"exchange-hub-go/internal/domain/permission"
	"exchange-hub-go/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	permissionPrefix = "perm:"
	scanBatch        = 200
)

// Connect builds a client from a redis:// URL or a bare host:port and
// verifies it answers.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opts)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// PermissionCache stores resolved permissions under perm:{exchange}:{user}.
// Redis errors are logged and treated as misses.
type PermissionCache struct {
	client *redis.Client
	log    logger.Logger
}

func NewPermissionCache(client *redis.Client, log logger.Logger) *PermissionCache {
	return &PermissionCache{client: client, log: log}
}

func permissionKey(exchangeID, userID string) string {
	return permissionPrefix + exchangeID + ":" + userID
}

func (c *PermissionCache) Get(ctx context.Context, exchangeID, userID string) (*permission.Effective, bool) {
	raw, err := c.client.Get(ctx, permissionKey(exchangeID, userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.FromContext(ctx, c.log).Warn("cache.permissions: get failed", "error", err)
		}
		return nil, false
	}
	var effective permission.Effective
	if err := json.Unmarshal(raw, &effective); err != nil {
		logger.FromContext(ctx, c.log).Warn("cache.permissions: corrupt entry dropped", "error", err)
		c.Delete(ctx, exchangeID, userID)
		return nil, false
	}
	return &effective, true
}

func (c *PermissionCache) Set(ctx context.Context, exchangeID, userID string, effective permission.Effective, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(effective)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, permissionKey(exchangeID, userID), raw, ttl).Err(); err != nil {
		logger.FromContext(ctx, c.log).Warn("cache.permissions: set failed", "error", err)
	}
}

func (c *PermissionCache) Delete(ctx context.Context, exchangeID, userID string) {
	if err := c.client.Del(ctx, permissionKey(exchangeID, userID)).Err(); err != nil {
		logger.FromContext(ctx, c.log).Warn("cache.permissions: delete failed", "error", err)
	}
}

// DeleteExchange drops every cached entry of one exchange.
func (c *PermissionCache) DeleteExchange(ctx context.Context, exchangeID string) {
	pattern := permissionPrefix + exchangeID + ":*"
	iter := c.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		logger.FromContext(ctx, c.log).Warn("cache.permissions: scan failed", "error", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		logger.FromContext(ctx, c.log).Warn("cache.permissions: delete failed", "error", err)
	}
}
