package sqliteschema

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func TestEnsureCreatesTables(t *testing.T) {
	db := openTempDB(t)

	schema := fstest.MapFS{
		"001_items.sql": &fstest.MapFile{Data: []byte("CREATE TABLE IF NOT EXISTS items(id INTEGER PRIMARY KEY);")},
		"002_index.sql": &fstest.MapFile{Data: []byte("CREATE INDEX IF NOT EXISTS idx_items_id ON items(id);")},
		"README.md":     &fstest.MapFile{Data: []byte("not sql")},
	}
	if err := Ensure(context.Background(), db, schema, ""); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if !tableExists(t, db, "items") {
		t.Fatal("expected items table to exist")
	}
}

func TestEnsureIsIdempotent(t *testing.T) {
	db := openTempDB(t)

	schema := fstest.MapFS{
		"001_items.sql": &fstest.MapFile{Data: []byte("CREATE TABLE IF NOT EXISTS items(id INTEGER PRIMARY KEY);")},
	}
	for i := 0; i < 3; i++ {
		if err := Ensure(context.Background(), db, schema, "."); err != nil {
			t.Fatalf("ensure schema pass %d: %v", i+1, err)
		}
	}
	if _, err := db.Exec("INSERT INTO items(id) VALUES (1)"); err != nil {
		t.Fatalf("insert after replay: %v", err)
	}
}

func TestEnsureToleratesPlainCreateReplay(t *testing.T) {
	db := openTempDB(t)

	schema := fstest.MapFS{
		"001_items.sql": &fstest.MapFile{Data: []byte("CREATE TABLE items(id INTEGER PRIMARY KEY);")},
	}
	if err := Ensure(context.Background(), db, schema, ""); err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	if err := Ensure(context.Background(), db, schema, ""); err != nil {
		t.Fatalf("second ensure should tolerate existing table: %v", err)
	}
}

func TestEnsureRollsBackOnFailure(t *testing.T) {
	db := openTempDB(t)

	schema := fstest.MapFS{
		"001_items.sql":  &fstest.MapFile{Data: []byte("CREATE TABLE IF NOT EXISTS items(id INTEGER PRIMARY KEY);")},
		"002_broken.sql": &fstest.MapFile{Data: []byte("CREATE TABLE nope(")},
	}
	if err := Ensure(context.Background(), db, schema, ""); err == nil {
		t.Fatal("expected broken schema error")
	}
	if tableExists(t, db, "items") {
		t.Fatal("expected items table to be rolled back")
	}
}

func TestEnsureRequiresInputs(t *testing.T) {
	if err := Ensure(context.Background(), nil, fstest.MapFS{}, ""); err == nil {
		t.Fatal("expected nil db error")
	}
	db := openTempDB(t)
	if err := Ensure(context.Background(), db, nil, ""); err == nil {
		t.Fatal("expected nil fs error")
	}
	if err := Ensure(context.Background(), db, fstest.MapFS{}, "missing"); err == nil {
		t.Fatal("expected missing root error")
	}
}

func TestIsAlreadyExistsError(t *testing.T) {
	if !IsAlreadyExistsError(errors.New("table items already exists")) {
		t.Fatal("expected already exists classification")
	}
	if IsAlreadyExistsError(errors.New("syntax error")) {
		t.Fatal("unexpected classification")
	}
	if IsAlreadyExistsError(nil) {
		t.Fatal("nil error is not an already-exists error")
	}
}

func openTempDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "schema.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Fatalf("close db: %v", err)
		}
	})
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&count); err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	return count > 0
}
