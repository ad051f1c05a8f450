package permission

import (
	"context"
	"time"
)

// Cache stores resolved permissions per (exchange, user).
type Cache interface {
	Get(ctx context.Context, exchangeID, userID string) (*Effective, bool)
	Set(ctx context.Context, exchangeID, userID string, effective Effective, ttl time.Duration)
	Delete(ctx context.Context, exchangeID, userID string)
	DeleteExchange(ctx context.Context, exchangeID string)
}

type noopCache struct{}

func (noopCache) Get(context.Context, string, string) (*Effective, bool) {
	return nil, false
}

func (noopCache) Set(context.Context, string, string, Effective, time.Duration) {}

func (noopCache) Delete(context.Context, string, string) {}

func (noopCache) DeleteExchange(context.Context, string) {}
