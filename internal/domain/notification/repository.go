package notification

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, n *Notification) error
	CreateMany(ctx context.Context, items []Notification) error
	List(ctx context.Context, filter ListFilter) ([]Notification, int64, error)
	CountUnread(ctx context.Context, userID string, now time.Time) (int64, error)
	// The per-notification operations only touch rows owned by userID and
	// report false when there is none.
	MarkRead(ctx context.Context, userID, id string, at time.Time) (bool, error)
	MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error)
	Archive(ctx context.Context, userID, id string, at time.Time) (bool, error)
	Delete(ctx context.Context, userID, id string) (bool, error)
	// ExchangeRecipients lists the user ids of an exchange's active
	// participants, including its coordinator and client.
	ExchangeRecipients(ctx context.Context, exchangeID string) ([]string, error)
}
