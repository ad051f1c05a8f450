package participant

import "context"

type Repository interface {
	Transaction(ctx context.Context, fn func(Repository) error) error
	// LockExchange serialises participant changes on one exchange for the
	// rest of the transaction.
	LockExchange(ctx context.Context, exchangeID string) error
	List(ctx context.Context, exchangeID string) ([]View, error)
	Get(ctx context.Context, exchangeID, id string) (*Participant, error)
	FindByUser(ctx context.Context, exchangeID, userID string) (*Participant, error)
	// ExchangeRoleOf reports the implicit role a user has on an exchange as
	// its coordinator ("coordinator") or client ("client"), or "".
	ExchangeRoleOf(ctx context.Context, exchangeID, userID string) (string, error)
	Create(ctx context.Context, participant *Participant) error
	Update(ctx context.Context, participant *Participant) error
	SoftDelete(ctx context.Context, id string) error
	// ReleaseExchangeRoles clears the exchange's coordinator and client
	// columns where they point at userID.
	ReleaseExchangeRoles(ctx context.Context, exchangeID, userID string) error
	CountElevated(ctx context.Context, exchangeID string) (int64, error)
}
