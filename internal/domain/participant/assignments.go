package participant

import (
	"context"
	"errors"

	"exchange-hub-go/internal/domain/permission"
)

// AssignmentSource feeds the permission resolver from participant records,
// falling back to the exchange's coordinator/client columns.
type AssignmentSource struct {
	repo Repository
}

func NewAssignmentSource(repo Repository) *AssignmentSource {
	return &AssignmentSource{repo: repo}
}

func (a *AssignmentSource) FindAssignment(ctx context.Context, exchangeID, userID string) (*permission.Assignment, error) {
	participant, err := a.repo.FindByUser(ctx, exchangeID, userID)
	if err == nil {
		return &permission.Assignment{Role: participant.Role, Overrides: participant.Permissions}, nil
	}
	if !errors.Is(err, ErrParticipantNotFound) {
		return nil, err
	}

	role, err := a.repo.ExchangeRoleOf(ctx, exchangeID, userID)
	if err != nil {
		return nil, err
	}
	if role == "" {
		return nil, nil
	}
	return &permission.Assignment{Role: role}, nil
}
