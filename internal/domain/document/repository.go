package document

import (
	"context"
	"io"
	"time"
)

type Repository interface {
	Create(ctx context.Context, doc *Document) error
	GetByID(ctx context.Context, id string) (*Document, error)
	ListByExchange(ctx context.Context, exchangeID string) ([]Document, error)
	SoftDelete(ctx context.Context, id string) error
}

// Storage holds document content in an object store.
type Storage interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	PresignGet(ctx context.Context, key, fileName string, ttl time.Duration) (string, error)
	Remove(ctx context.Context, key string) error
}
