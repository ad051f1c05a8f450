package db

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestListMigrationsSortedAndFiltered(t *testing.T) {
	fsys := fstest.MapFS{
		"m/0002_b.sql":   {Data: []byte("select 2")},
		"m/0001_a.sql":   {Data: []byte("select 1")},
		"m/README.md":    {Data: []byte("docs")},
		"m/sub/0003.sql": {Data: []byte("select 3")},
	}

	files, err := listMigrations(fsys, "m")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(files) != 2 || files[0] != "0001_a.sql" || files[1] != "0002_b.sql" {
		t.Fatalf("unexpected files %v", files)
	}
}

func TestEmbeddedMigrationsCoverTables(t *testing.T) {
	files, err := listMigrations(migrationFiles, "migrations")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(files) == 0 {
		t.Fatalf("expected embedded migrations")
	}

	var all strings.Builder
	for _, name := range files {
		data, err := migrationFiles.ReadFile("migrations/" + name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		all.Write(data)
	}

	for _, table := range []string{"users", "contacts", "exchanges", "exchange_participants", "invitations", "tasks", "documents", "notifications", "audit_logs"} {
		if !strings.Contains(all.String(), "CREATE TABLE IF NOT EXISTS "+table+" ") {
			t.Fatalf("expected migration creating %s", table)
		}
	}
}
