package exchanges

import (
	"context"

	auditdomain "exchange-hub-go/internal/domain/audit"
	exchangedomain "exchange-hub-go/internal/domain/exchange"
	participantdomain "exchange-hub-go/internal/domain/participant"
	"exchange-hub-go/internal/domain/permission"
	"exchange-hub-go/pkg/logger"
)

type ExchangeService interface {
	List(ctx context.Context, actor permission.Subject, filter exchangedomain.ListFilter) (*exchangedomain.Page, error)
	Get(ctx context.Context, actor permission.Subject, id string) (*exchangedomain.Exchange, permission.Effective, error)
	Create(ctx context.Context, actor permission.Subject, input exchangedomain.CreateInput) (*exchangedomain.Exchange, error)
	Update(ctx context.Context, actor permission.Subject, id string, input exchangedomain.UpdateInput) (*exchangedomain.Exchange, error)
	Delete(ctx context.Context, actor permission.Subject, id string) error
	Permissions(ctx context.Context, actor permission.Subject, id string) (permission.Effective, error)
	Transitions(ctx context.Context, actor permission.Subject, id string) (exchangedomain.Status, []exchangedomain.TransitionOption, error)
	ValidateTransition(ctx context.Context, actor permission.Subject, id, target string) (exchangedomain.Validation, error)
	ExecuteTransition(ctx context.Context, actor permission.Subject, id string, input exchangedomain.TransitionInput) (*exchangedomain.Exchange, error)
}

type ParticipantService interface {
	List(ctx context.Context, actor permission.Subject, exchangeID string) ([]participantdomain.View, error)
	Add(ctx context.Context, actor permission.Subject, exchangeID string, input participantdomain.AddInput) (*participantdomain.Participant, error)
	Update(ctx context.Context, actor permission.Subject, exchangeID, id string, input participantdomain.UpdateInput) (*participantdomain.Participant, error)
	Remove(ctx context.Context, actor permission.Subject, exchangeID, id string) error
}

type AuditService interface {
	ListForExchange(ctx context.Context, actor permission.Subject, exchangeID string, filter auditdomain.ListFilter) ([]auditdomain.Entry, error)
}

type Handlers struct {
	Exchanges    ExchangeService
	Participants ParticipantService
	Audit        AuditService
	log          logger.Logger
}

func New(exchanges ExchangeService, participants ParticipantService, audit AuditService, log logger.Logger) *Handlers {
	return &Handlers{
		Exchanges:    exchanges,
		Participants: participants,
		Audit:        audit,
		log:          log,
	}
}
