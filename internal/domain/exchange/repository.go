package exchange

import (
	"context"

	"exchange-hub-go/internal/domain/audit"
	"exchange-hub-go/internal/domain/participant"
)

type Repository interface {
	Transaction(ctx context.Context, fn func(Repository) error) error
	Create(ctx context.Context, exchange *Exchange) error
	GetByID(ctx context.Context, id string) (*Exchange, error)
	List(ctx context.Context, filter ListFilter) ([]Exchange, int64, error)
	// UpdateFields writes fields when the stored version still equals
	// version and bumps it. It reports false when the row moved on.
	UpdateFields(ctx context.Context, id string, version int, fields map[string]any) (bool, error)
	// SwapStatus writes change when the stored status and version still
	// equal the given ones. It reports false on a lost race.
	SwapStatus(ctx context.Context, id string, from Status, version int, change StatusChange) (bool, error)
	SoftDelete(ctx context.Context, id string) error
	AddParticipant(ctx context.Context, p *participant.Participant) error
	AppendAudit(ctx context.Context, entry *audit.Entry) error
}
