package document

import (
	"context"
	"io"
	"path"
	"strings"
	"time"

	"exchange-hub-go/internal/apperror"
	"exchange-hub-go/internal/domain/audit"
	"exchange-hub-go/internal/domain/permission"
	"exchange-hub-go/internal/events"
	"exchange-hub-go/pkg/logger"
	"github.com/google/uuid"
)

const (
	DefaultMaxUploadBytes int64 = 50 << 20
	DefaultPresignTTL           = 15 * time.Minute
	maxFileNameLength           = 255
)

type Permissions interface {
	Require(ctx context.Context, subject permission.Subject, exchangeID string, capability permission.Capability) (permission.Effective, error)
}

type Notifier interface {
	NotifyExchange(ctx context.Context, exchangeID, excludeUserID, templateKey string, vars map[string]string) error
}

type Auditor interface {
	Record(ctx context.Context, action, entityType, entityID, exchangeID string, details map[string]any)
}

type Options struct {
	MaxUploadBytes int64
	PresignTTL     time.Duration
}

type Service struct {
	repo        Repository
	storage     Storage
	permissions Permissions
	notifier    Notifier
	publisher   events.Publisher
	audit       Auditor
	log         logger.Logger
	opts        Options
	now         func() time.Time
}

// NewService builds the document service. storage may be nil when no object
// store is configured; uploads and downloads then fail with
// ErrStorageNotAvailable while listing keeps working.
func NewService(repo Repository, storage Storage, permissions Permissions, notifier Notifier, publisher events.Publisher, auditor Auditor, opts Options, log logger.Logger) *Service {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.PresignTTL <= 0 {
		opts.PresignTTL = DefaultPresignTTL
	}
	return &Service{
		repo:        repo,
		storage:     storage,
		permissions: permissions,
		notifier:    notifier,
		publisher:   publisher,
		audit:       auditor,
		log:         log,
		opts:        opts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) MaxUploadBytes() int64 {
	return s.opts.MaxUploadBytes
}

func (s *Service) List(ctx context.Context, actor permission.Subject, exchangeID string) ([]Document, error) {
	if _, err := s.permissions.Require(ctx, actor, exchangeID, permission.CanViewDocuments); err != nil {
		return nil, err
	}
	docs, err := s.repo.ListByExchange(ctx, exchangeID)
	if err != nil {
		return nil, apperror.Upstream("document_list_failed", err)
	}
	return docs, nil
}

// Upload stores the content first and the row second. If the row cannot be
// written the object is removed again.
func (s *Service) Upload(ctx context.Context, actor permission.Subject, exchangeID string, input UploadInput) (*Document, error) {
	if _, err := s.permissions.Require(ctx, actor, exchangeID, permission.CanUploadDocuments); err != nil {
		return nil, err
	}
	if s.storage == nil {
		return nil, ErrStorageNotAvailable
	}
	name := cleanFileName(input.FileName)
	if input.Body == nil || name == "" {
		return nil, ErrFileRequired
	}
	if input.Size > s.opts.MaxUploadBytes {
		return nil, ErrFileTooLarge
	}
	contentType := strings.TrimSpace(input.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	doc := Document{
		ID:          uuid.NewString(),
		ExchangeID:  exchangeID,
		FileName:    name,
		ContentType: contentType,
		SizeBytes:   input.Size,
		Category:    trimmed(input.Category),
		Description: trimmed(input.Description),
		UploadedBy:  actor.UserID,
	}
	doc.StorageKey = path.Join("exchanges", exchangeID, doc.ID, name)

	body := io.LimitReader(input.Body, s.opts.MaxUploadBytes+1)
	if err := s.storage.Put(ctx, doc.StorageKey, body, input.Size, contentType); err != nil {
		return nil, apperror.Upstream("document_store_failed", err)
	}
	if err := s.repo.Create(ctx, &doc); err != nil {
		if rmErr := s.storage.Remove(ctx, doc.StorageKey); rmErr != nil {
			logger.FromContext(ctx, s.log).InternalError("documents.upload: orphaned object", rmErr, "storage_key", doc.StorageKey)
		}
		return nil, apperror.Upstream("document_create_failed", err)
	}

	if s.audit != nil {
		s.audit.Record(ctx, audit.ActionDocumentUploaded, audit.EntityDocument, doc.ID, exchangeID, map[string]any{
			"file_name":  doc.FileName,
			"size_bytes": doc.SizeBytes,
		})
	}
	if s.publisher != nil {
		payload := map[string]any{"document_id": doc.ID, "file_name": doc.FileName}
		if err := s.publisher.Publish(ctx, events.New(events.DocumentUploaded, exchangeID, actor.UserID, payload)); err != nil {
			logger.FromContext(ctx, s.log).InternalError("documents.publish: publish failed", err, "document_id", doc.ID)
		}
	}
	if s.notifier != nil {
		vars := map[string]string{"FileName": doc.FileName}
		if err := s.notifier.NotifyExchange(ctx, exchangeID, actor.UserID, "document_uploaded", vars); err != nil {
			logger.FromContext(ctx, s.log).InternalError("documents.notify: notify failed", err, "document_id", doc.ID)
		}
	}
	return &doc, nil
}

func (s *Service) Download(ctx context.Context, actor permission.Subject, id string) (*Download, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.permissions.Require(ctx, actor, doc.ExchangeID, permission.CanDownloadDocuments); err != nil {
		return nil, err
	}
	if s.storage == nil {
		return nil, ErrStorageNotAvailable
	}
	url, err := s.storage.PresignGet(ctx, doc.StorageKey, doc.FileName, s.opts.PresignTTL)
	if err != nil {
		return nil, apperror.Upstream("document_presign_failed", err)
	}
	if s.audit != nil {
		s.audit.Record(ctx, audit.ActionDocumentDownloaded, audit.EntityDocument, doc.ID, doc.ExchangeID, nil)
	}
	return &Download{Document: *doc, URL: url, ExpiresAt: s.now().Add(s.opts.PresignTTL)}, nil
}

// Delete soft-deletes the row and then removes the object. A failed object
// removal is logged; the document is already gone for callers.
func (s *Service) Delete(ctx context.Context, actor permission.Subject, id string) error {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.permissions.Require(ctx, actor, doc.ExchangeID, permission.CanDeleteDocuments); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return apperror.Upstream("document_delete_failed", err)
	}
	if s.storage != nil {
		if err := s.storage.Remove(ctx, doc.StorageKey); err != nil {
			logger.FromContext(ctx, s.log).InternalError("documents.delete: object removal failed", err, "storage_key", doc.StorageKey)
		}
	}
	if s.audit != nil {
		s.audit.Record(ctx, audit.ActionDocumentDeleted, audit.EntityDocument, doc.ID, doc.ExchangeID, map[string]any{
			"file_name": doc.FileName,
		})
	}
	return nil
}

// cleanFileName keeps the base name and drops characters that do not belong
// in an object key.
func cleanFileName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	name = path.Base(name)
	if name == "." || name == ".." || name == "/" {
		return ""
	}
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	if len(name) > maxFileNameLength {
		ext := path.Ext(name)
		if len(ext) > 16 {
			ext = ""
		}
		name = name[:maxFileNameLength-len(ext)] + ext
	}
	return name
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
