package exchange

import "exchange-hub-go/internal/apperror"

var (
	ErrExchangeNotFound       = apperror.NotFound("exchange_not_found", "exchange not found")
	ErrStatusConflict         = apperror.Conflict("status_conflict", "exchange status changed concurrently, reload and retry")
	ErrConcurrentModification = apperror.Conflict("exchange_modified", "exchange was modified concurrently, reload and retry")
	ErrStatusNotUpdatable     = apperror.Validation("status_not_updatable", "status changes go through the transition endpoint")
	ErrTransitionRejected     = apperror.Validation("invalid_transition", "transition not allowed")
	ErrCreateForbidden        = apperror.Forbidden("exchange_create_forbidden", "only admins and coordinators can create exchanges")
)

func transitionRejected(v Validation) error {
	details := make([]apperror.FieldError, 0, len(v.FailedConditions))
	for _, condition := range v.FailedConditions {
		details = append(details, apperror.FieldError{Field: "to_status", Message: condition})
	}
	return apperror.Validation(ErrTransitionRejected.Code, v.Message, details...)
}
