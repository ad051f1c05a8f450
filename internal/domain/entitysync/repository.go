package entitysync

import (
	"context"
	"time"

	"exchange-hub-go/internal/domain/exchange"
)

type Repository interface {
	GetExchange(ctx context.Context, id string) (*exchange.Exchange, error)
	// ListForSync returns up to limit exchanges that carry PracticePanther
	// data, least recently synced first.
	ListForSync(ctx context.Context, limit int, skipCompleted bool) ([]exchange.Exchange, error)
	SaveMatter(ctx context.Context, exchangeID string, data map[string]any) error
	MarkSynced(ctx context.Context, exchangeID, status string, syncErr *string, at time.Time) error
	StatusSummary(ctx context.Context) (*StatusSummary, error)

	FindUser(ctx context.Context, ppID, email string) (*MatchedRecord, error)
	FindContact(ctx context.Context, ppID, email string) (*MatchedRecord, error)
	UpdateUserPP(ctx context.Context, id, ppID string, data map[string]any) error
	UpdateContactPP(ctx context.Context, id, ppID string, data map[string]any) error
	CreateContact(ctx context.Context, input ContactInput) (string, error)
}

// MatterFetcher loads a matter from PracticePanther.
type MatterFetcher interface {
	GetMatter(ctx context.Context, matterID string) (map[string]any, error)
}
