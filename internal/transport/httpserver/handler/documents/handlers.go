package documents

import (
	"context"
	"errors"
	"net/http"
	"strings"

	documentdomain "exchange-hub-go/internal/domain/document"
	"exchange-hub-go/internal/domain/permission"
	commonhandler "exchange-hub-go/internal/transport/httpserver/handler/common"
	"exchange-hub-go/pkg/logger"
	"github.com/go-chi/chi/v5"
)

const (
	multipartMemory = 8 << 20
	formOverhead    = 1 << 20
)

type Service interface {
	List(ctx context.Context, actor permission.Subject, exchangeID string) ([]documentdomain.Document, error)
	Upload(ctx context.Context, actor permission.Subject, exchangeID string, input documentdomain.UploadInput) (*documentdomain.Document, error)
	Download(ctx context.Context, actor permission.Subject, id string) (*documentdomain.Download, error)
	Delete(ctx context.Context, actor permission.Subject, id string) error
	MaxUploadBytes() int64
}

type Handlers struct {
	Documents Service
	log       logger.Logger
}

func New(documents Service, log logger.Logger) *Handlers {
	return &Handlers{Documents: documents, log: log}
}

func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := commonhandler.Actor(w, r)
	if !ok {
		return
	}
	items, err := h.Documents.List(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		commonhandler.WriteError(w, r, h.log, err)
		return
	}
	commonhandler.WriteSuccess(w, r, http.StatusOK, map[string]any{"documents": items})
}

// Upload takes a multipart form with a "file" part and optional "category"
// and "description" fields.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	actor, ok := commonhandler.Actor(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.Documents.MaxUploadBytes()+formOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			commonhandler.WriteError(w, r, h.log, documentdomain.ErrFileTooLarge)
			return
		}
		commonhandler.WriteError(w, r, h.log, documentdomain.ErrFileRequired)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		commonhandler.WriteError(w, r, h.log, documentdomain.ErrFileRequired)
		return
	}
	defer file.Close()

	created, err := h.Documents.Upload(r.Context(), actor, chi.URLParam(r, "id"), documentdomain.UploadInput{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
		Category:    formValue(r, "category"),
		Description: formValue(r, "description"),
	})
	if err != nil {
		commonhandler.WriteError(w, r, h.log, err)
		return
	}
	commonhandler.WriteSuccess(w, r, http.StatusCreated, map[string]any{"document": created})
}

func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	actor, ok := commonhandler.Actor(w, r)
	if !ok {
		return
	}
	download, err := h.Documents.Download(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		commonhandler.WriteError(w, r, h.log, err)
		return
	}
	commonhandler.WriteSuccess(w, r, http.StatusOK, map[string]any{
		"document":   download.Document,
		"url":        download.URL,
		"expires_at": download.ExpiresAt,
	})
}

func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := commonhandler.Actor(w, r)
	if !ok {
		return
	}
	if err := h.Documents.Delete(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		commonhandler.WriteError(w, r, h.log, err)
		return
	}
	commonhandler.WriteSuccess(w, r, http.StatusOK, map[string]any{"message": "document deleted"})
}

func formValue(r *http.Request, key string) *string {
	value := strings.TrimSpace(r.FormValue(key))
	if value == "" {
		return nil
	}
	return &value
}
