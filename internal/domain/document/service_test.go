package document

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"exchange-hub-go/internal/domain/permission"
	"exchange-hub-go/internal/events"
	"exchange-hub-go/pkg/logger"
)

type fakeDocumentRepo struct {
	items     map[string]*Document
	createErr error
}

func (r *fakeDocumentRepo) Create(_ context.Context, doc *Document) error {
	if r.createErr != nil {
		return r.createErr
	}
	clone := *doc
	r.items[doc.ID] = &clone
	return nil
}

func (r *fakeDocumentRepo) GetByID(_ context.Context, id string) (*Document, error) {
	doc, ok := r.items[id]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	clone := *doc
	return &clone, nil
}

func (r *fakeDocumentRepo) ListByExchange(_ context.Context, exchangeID string) ([]Document, error) {
	var out []Document
	for _, doc := range r.items {
		if doc.ExchangeID == exchangeID {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (r *fakeDocumentRepo) SoftDelete(_ context.Context, id string) error {
	delete(r.items, id)
	return nil
}

type memStorage struct {
	objects map[string][]byte
}

func (m *memStorage) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *memStorage) PresignGet(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	return "https://objects.test/" + key, nil
}

func (m *memStorage) Remove(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

type fakePermissions struct {
	granted permission.PermissionSet
}

func (p *fakePermissions) Require(_ context.Context, _ permission.Subject, _ string, c permission.Capability) (permission.Effective, error) {
	if !p.granted.Can(c) {
		return permission.Effective{}, permission.ErrPermissionDenied
	}
	return permission.Effective{Permissions: p.granted}, nil
}

type fakeNotifier struct {
	calls []string
}

func (n *fakeNotifier) NotifyExchange(_ context.Context, exchangeID, excludeUserID, templateKey string, _ map[string]string) error {
	n.calls = append(n.calls, exchangeID+"/"+excludeUserID+"/"+templateKey)
	return nil
}

const exchangeID = "ex1"

var actor = permission.Subject{UserID: "user-1", Role: permission.RoleClient}

func newTestService(granted ...permission.Capability) (*Service, *fakeDocumentRepo, *memStorage, *fakeNotifier) {
	set := permission.PermissionSet{}
	for _, c := range granted {
		set[c] = true
	}
	repo := &fakeDocumentRepo{items: map[string]*Document{}}
	store := &memStorage{objects: map[string][]byte{}}
	notifier := &fakeNotifier{}
	svc := NewService(repo, store, &fakePermissions{granted: set}, notifier, &events.Recorder{}, nil,
		Options{MaxUploadBytes: 16}, logger.Discard())
	return svc, repo, store, notifier
}

func TestUploadStoresObjectAndRow(t *testing.T) {
	svc, repo, store, notifier := newTestService(permission.CanUploadDocuments)

	doc, err := svc.Upload(context.Background(), actor, exchangeID, UploadInput{
		FileName: `C:\scans\closing statement.pdf`,
		Size:     5,
		Body:     strings.NewReader("%PDF-"),
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if doc.FileName != "closing statement.pdf" || doc.ContentType != "application/octet-stream" {
		t.Fatalf("unexpected document %+v", doc)
	}
	if !strings.HasPrefix(doc.StorageKey, "exchanges/ex1/"+doc.ID+"/") {
		t.Fatalf("unexpected key %s", doc.StorageKey)
	}
	if !bytes.Equal(store.objects[doc.StorageKey], []byte("%PDF-")) {
		t.Fatalf("object content not stored")
	}
	if _, ok := repo.items[doc.ID]; !ok {
		t.Fatalf("row not stored")
	}
	if len(notifier.calls) != 1 || notifier.calls[0] != "ex1/user-1/document_uploaded" {
		t.Fatalf("unexpected notifications %v", notifier.calls)
	}
}

func TestUploadRejections(t *testing.T) {
	svc, _, store, _ := newTestService(permission.CanUploadDocuments)

	if _, err := svc.Upload(context.Background(), actor, exchangeID, UploadInput{FileName: "big.bin", Size: 17, Body: strings.NewReader("x")}); !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected too large, got %v", err)
	}
	if _, err := svc.Upload(context.Background(), actor, exchangeID, UploadInput{FileName: "..", Size: 1, Body: strings.NewReader("x")}); !errors.Is(err, ErrFileRequired) {
		t.Fatalf("expected file required, got %v", err)
	}
	if len(store.objects) != 0 {
		t.Fatalf("nothing should be stored")
	}

	denied, _, _, _ := newTestService()
	if _, err := denied.Upload(context.Background(), actor, exchangeID, UploadInput{FileName: "a.pdf", Size: 1, Body: strings.NewReader("x")}); !errors.Is(err, permission.ErrPermissionDenied) {
		t.Fatalf("expected denied, got %v", err)
	}
}

func TestUploadRemovesObjectWhenRowFails(t *testing.T) {
	svc, repo, store, _ := newTestService(permission.CanUploadDocuments)
	repo.createErr = errors.New("db down")

	if _, err := svc.Upload(context.Background(), actor, exchangeID, UploadInput{FileName: "a.pdf", Size: 1, Body: strings.NewReader("x")}); err == nil {
		t.Fatalf("expected failure")
	}
	if len(store.objects) != 0 {
		t.Fatalf("expected object cleaned up, got %d", len(store.objects))
	}
}

func TestDownloadAndDelete(t *testing.T) {
	svc, repo, store, _ := newTestService(permission.CanUploadDocuments, permission.CanDownloadDocuments, permission.CanDeleteDocuments)
	doc, err := svc.Upload(context.Background(), actor, exchangeID, UploadInput{FileName: "deed.pdf", Size: 1, Body: strings.NewReader("x")})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	download, err := svc.Download(context.Background(), actor, doc.ID)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if download.URL != "https://objects.test/"+doc.StorageKey {
		t.Fatalf("unexpected url %s", download.URL)
	}

	if err := svc.Delete(context.Background(), actor, doc.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(repo.items) != 0 || len(store.objects) != 0 {
		t.Fatalf("expected row and object removed")
	}
	if _, err := svc.Download(context.Background(), actor, doc.ID); !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStorageNotConfigured(t *testing.T) {
	perms := &fakePermissions{granted: permission.PermissionSet{permission.CanUploadDocuments: true, permission.CanViewDocuments: true}}
	svc := NewService(&fakeDocumentRepo{items: map[string]*Document{}}, nil, perms, nil, nil, nil, Options{}, logger.Discard())

	if _, err := svc.Upload(context.Background(), actor, exchangeID, UploadInput{FileName: "a.pdf", Body: strings.NewReader("x")}); !errors.Is(err, ErrStorageNotAvailable) {
		t.Fatalf("expected storage unavailable, got %v", err)
	}
	if _, err := svc.List(context.Background(), actor, exchangeID); err != nil {
		t.Fatalf("listing should still work: %v", err)
	}
	if svc.MaxUploadBytes() != DefaultMaxUploadBytes {
		t.Fatalf("expected default limit")
	}
}
