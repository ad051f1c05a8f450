package permission

import "exchange-hub-go/internal/apperror"

var (
	ErrPermissionDenied = apperror.Forbidden("permission_denied", "permission denied")
	ErrNoExchangeAccess = apperror.Forbidden("no_exchange_access", "no access to this exchange")
	ErrAdminOnly        = apperror.Forbidden("admin_only", "admin role required")
)
