package migrations

import (
	"context"
	"database/sql"
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"

	_ "github.com/mattn/go-sqlite3"
)

func TestProfileSchema_PairsForBothDialects(t *testing.T) {
	for _, dialect := range []string{DialectPostgres, DialectSQLite, " SQLite "} {
		dir, err := ProfileSchema(dialect)
		if err != nil {
			t.Fatalf("%s schema: %v", dialect, err)
		}
		for _, name := range []string{"00001_vault_profiles.up.sql", "00001_vault_profiles.down.sql"} {
			content, err := fs.ReadFile(dir, name)
			if err != nil {
				t.Fatalf("read %s %s: %v", dialect, name, err)
			}
			if !strings.Contains(string(content), "vault_profiles") {
				t.Fatalf("expected %s %s to touch vault_profiles", dialect, name)
			}
		}
	}
}

func TestProfileSchema_PostgresUsesBinaryKeyColumn(t *testing.T) {
	dir, err := ProfileSchema(DialectPostgres)
	if err != nil {
		t.Fatalf("postgres schema: %v", err)
	}
	content, err := fs.ReadFile(dir, "00001_vault_profiles.up.sql")
	if err != nil {
		t.Fatalf("read up migration: %v", err)
	}
	if !strings.Contains(string(content), "BYTEA") {
		t.Fatalf("expected postgres schema to store sealed keys as BYTEA")
	}
	if _, err := fs.Stat(dir, "sqlite"); err != nil {
		t.Fatalf("expected postgres root to sit above the sqlite directory: %v", err)
	}
}

func TestProfileSchema_RejectsUnknownDialect(t *testing.T) {
	if _, err := ProfileSchema("mysql"); err == nil {
		t.Fatalf("expected unsupported dialect to fail")
	}
}

func TestProfileSchema_RequiresDownForEveryUp(t *testing.T) {
	source := fstest.MapFS{
		"data/sql/migrations/00001_a.up.sql":          {Data: []byte("CREATE TABLE a (id TEXT);")},
		"data/sql/migrations/00001_a.down.sql":        {Data: []byte("DROP TABLE a;")},
		"data/sql/migrations/00002_b.up.sql":          {Data: []byte("CREATE TABLE b (id TEXT);")},
		"data/sql/migrations/sqlite/00001_a.up.sql":   {Data: []byte("CREATE TABLE a (id TEXT);")},
		"data/sql/migrations/sqlite/00001_a.down.sql": {Data: []byte("DROP TABLE a;")},
	}
	if _, err := profileSchema(source, DialectPostgres); err == nil || !strings.Contains(err.Error(), "00002_b.down.sql") {
		t.Fatalf("expected missing down migration error, got %v", err)
	}
	if _, err := profileSchema(source, DialectSQLite); err != nil {
		t.Fatalf("expected complete sqlite schema, got %v", err)
	}

	empty := fstest.MapFS{"data/sql/migrations/sqlite/README": {Data: []byte("x")}}
	if _, err := profileSchema(empty, DialectSQLite); err == nil {
		t.Fatalf("expected empty schema to fail")
	}
}

func TestSQLiteProfileSchema_ApplyAndRollback(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:migrations-vault-profiles?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(1)

	dir, err := ProfileSchema(DialectSQLite)
	if err != nil {
		t.Fatalf("sqlite schema: %v", err)
	}
	ctx := context.Background()
	if err := execSQLFile(ctx, db, dir, "00001_vault_profiles.up.sql"); err != nil {
		t.Fatalf("apply profiles migration up: %v", err)
	}

	insert := `INSERT INTO vault_profiles (id, name, base_url, encrypted_api_key) VALUES (?, ?, ?, ?)`
	if _, err := db.ExecContext(ctx, insert, "p1", "work", "https://127.0.0.1:27124", []byte("sealed")); err != nil {
		t.Fatalf("insert profile: %v", err)
	}
	if _, err := db.ExecContext(ctx, insert, "p2", "work", "https://127.0.0.1:27125", []byte("sealed")); err == nil {
		t.Fatalf("expected unique profile name violation")
	}

	var ignoreTLS bool
	if err := db.QueryRowContext(ctx, `SELECT ignore_tls_errors FROM vault_profiles WHERE id = ?`, "p1").Scan(&ignoreTLS); err != nil {
		t.Fatalf("read default ignore_tls_errors: %v", err)
	}
	if !ignoreTLS {
		t.Fatalf("expected ignore_tls_errors to default to true")
	}

	if err := execSQLFile(ctx, db, dir, "00001_vault_profiles.down.sql"); err != nil {
		t.Fatalf("apply profiles migration down: %v", err)
	}
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, "vault_profiles").Scan(&count); err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected vault_profiles to be dropped after down migration")
	}
}

// execSQLFile runs each --bun:split statement of a migration file.
func execSQLFile(ctx context.Context, db *sql.DB, dir fs.FS, name string) error {
	content, err := fs.ReadFile(dir, name)
	if err != nil {
		return err
	}
	for _, stmt := range strings.Split(string(content), "--bun:split") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
