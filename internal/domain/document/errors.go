package document

import "exchange-hub-go/internal/apperror"

var (
	ErrDocumentNotFound    = apperror.NotFound("document_not_found", "document not found")
	ErrFileRequired        = apperror.Validation("file_required", "a file is required", apperror.FieldError{Field: "file", Message: "is required"})
	ErrFileTooLarge        = apperror.Validation("file_too_large", "file exceeds the upload limit", apperror.FieldError{Field: "file", Message: "is too large"})
	ErrStorageNotAvailable = apperror.New(apperror.KindUpstream, "storage_unavailable", "document storage is not configured")
)
