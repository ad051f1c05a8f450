package notification

import "exchange-hub-go/internal/apperror"

var (
	ErrNotificationNotFound = apperror.NotFound("notification_not_found", "notification not found")
	ErrUnknownTemplate      = apperror.Validation("unknown_template", "unknown notification template", apperror.FieldError{Field: "template_key", Message: "unknown template"})
	ErrRecipientsRequired   = apperror.Validation("recipients_required", "at least one recipient is required", apperror.FieldError{Field: "user_ids", Message: "is required"})
	ErrBatchTooLarge        = apperror.Validation("batch_too_large", "too many notifications in one batch")
)
