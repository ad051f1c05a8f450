package invitation

import (
	"context"
	"time"
)

type Repository interface {
	// Create returns ErrDuplicateInvitation when a pending invitation for the
	// same exchange and email exists.
	Create(ctx context.Context, invitation *Invitation) error
	GetByID(ctx context.Context, id string) (*Invitation, error)
	GetByTokenHash(ctx context.Context, hash string) (*Invitation, error)
	ListByExchange(ctx context.Context, exchangeID string) ([]Invitation, error)
	// SwapStatus applies t only while the stored status is still t.From.
	SwapStatus(ctx context.Context, id string, t Transition) (bool, error)
	// ExpireStale marks pending invitations past their expiry as expired.
	// An empty exchangeID sweeps every exchange.
	ExpireStale(ctx context.Context, exchangeID string, now time.Time) (int64, error)
	ExchangeName(ctx context.Context, exchangeID string) (string, error)
}
