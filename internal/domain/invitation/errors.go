package invitation

import "exchange-hub-go/internal/apperror"

var (
	ErrInvitationNotFound   = apperror.NotFound("invitation_not_found", "invitation not found")
	ErrDuplicateInvitation  = apperror.Conflict("duplicate_invitation", "a pending invitation already exists for this email")
	ErrInvitationNotPending = apperror.Conflict("invitation_not_pending", "invitation is no longer pending")
	ErrInvitationExpired    = apperror.Conflict("invitation_expired", "invitation has expired")
	ErrContactRequired      = apperror.Validation("invalid_invitation", "email or phone is required")
	ErrEmailMismatch        = apperror.Forbidden("invitation_email_mismatch", "invitation was sent to a different email address")
	ErrAdminInviteForbidden = apperror.Forbidden("admin_grant_forbidden", "only admins can invite admins")
	ErrInvalidRole          = apperror.Validation("invalid_role", "unknown role", apperror.FieldError{Field: "role", Message: "unknown role"})
)
