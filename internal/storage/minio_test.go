package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"exchange-hub-go/internal/config"
)

func TestContentDisposition(t *testing.T) {
	cases := map[string]string{
		"deed.pdf":         `attachment; filename="deed.pdf"; filename*=UTF-8''deed.pdf`,
		`say "hi".txt`:     `attachment; filename="say _hi_.txt"; filename*=UTF-8''say%20%22hi%22.txt`,
		"résumé final.pdf": `attachment; filename="r_sum_ final.pdf"; filename*=UTF-8''r%C3%A9sum%C3%A9%20final.pdf`,
	}
	for name, want := range cases {
		if got := ContentDisposition(name); got != want {
			t.Fatalf("%s: expected %s, got %s", name, want, got)
		}
	}
}

// A bucket HEAD answered with 200 is enough for the client to consider the
// bucket present; presigning is computed locally.
func TestPresignGetIncludesDisposition(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store, err := NewMinioStore(context.Background(), config.StorageConfig{
		Endpoint:        srv.URL,
		AccessKeyID:     "access",
		SecretAccessKey: "secret",
		Bucket:          "docs",
		Region:          "us-east-1",
	})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	raw, err := store.PresignGet(context.Background(), "exchanges/ex1/d1/deed.pdf", "deed.pdf", 15*time.Minute)
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !strings.HasSuffix(u.Path, "/docs/exchanges/ex1/d1/deed.pdf") {
		t.Fatalf("unexpected path %s", u.Path)
	}
	q := u.Query()
	if q.Get("X-Amz-Expires") != "900" {
		t.Fatalf("expected 900s expiry, got %s", q.Get("X-Amz-Expires"))
	}
	if !strings.Contains(q.Get("response-content-disposition"), `filename="deed.pdf"`) {
		t.Fatalf("expected disposition, got %s", q.Get("response-content-disposition"))
	}
}
