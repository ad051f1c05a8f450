package user

import "exchange-hub-go/internal/apperror"

var (
	ErrUserNotFound         = apperror.NotFound("user_not_found", "user not found")
	ErrUserInactive         = apperror.Forbidden("user_inactive", "account is deactivated")
	ErrUserIDRequired       = apperror.Validation("invalid_user", "user id is required")
	ErrAdminFieldsForbidden = apperror.Forbidden("admin_fields_forbidden", "only admins can change role or active status")
	ErrCannotDeactivateSelf = apperror.Conflict("cannot_deactivate_self", "admins cannot deactivate their own account")
	ErrNotSelf              = apperror.Forbidden("not_self", "you can only access your own account")
)
