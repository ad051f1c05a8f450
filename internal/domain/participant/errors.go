package participant

import "exchange-hub-go/internal/apperror"

var (
	ErrParticipantNotFound     = apperror.NotFound("participant_not_found", "participant not found")
	ErrDuplicateParticipant    = apperror.Conflict("duplicate_participant", "already a participant of this exchange")
	ErrLastElevatedParticipant = apperror.Conflict("last_elevated_participant", "an exchange must keep at least one admin or coordinator")
	ErrSubjectRequired         = apperror.Validation("invalid_participant", "exactly one of user_id or contact_id is required")
	ErrInvalidRole             = apperror.Validation("invalid_role", "unknown role", apperror.FieldError{Field: "role", Message: "unknown role"})
	ErrAdminGrantForbidden     = apperror.Forbidden("admin_grant_forbidden", "only admins can add admin participants")
)
