package task

import "exchange-hub-go/internal/apperror"

var (
	ErrTaskNotFound  = apperror.NotFound("task_not_found", "task not found")
	ErrTitleRequired = apperror.Validation("title_required", "title is required", apperror.FieldError{Field: "title", Message: "is required"})
)
