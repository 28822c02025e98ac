// Package migrations locates the embedded vault_profiles schema for each
// supported SQL dialect.
package migrations

import (
	"fmt"
	"io/fs"
	"strings"

	vaultrest "github.com/goliatone/go-vaultrest"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

const schemaRoot = "data/sql/migrations"

// ProfileSchema returns the vault_profiles migrations for dialect. Postgres
// files live at the root of the migrations tree, SQLite files under sqlite/.
func ProfileSchema(dialect string) (fs.FS, error) {
	return profileSchema(vaultrest.GetMigrationsFS(), dialect)
}

func profileSchema(source fs.FS, dialect string) (fs.FS, error) {
	root, err := fs.Sub(source, schemaRoot)
	if err != nil {
		return nil, fmt.Errorf("migrations: open %s: %w", schemaRoot, err)
	}

	var dir fs.FS
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case DialectPostgres:
		dir = root
	case DialectSQLite:
		dir, err = fs.Sub(root, "sqlite")
		if err != nil {
			return nil, fmt.Errorf("migrations: open sqlite schema: %w", err)
		}
	default:
		return nil, fmt.Errorf("migrations: unsupported dialect %q", dialect)
	}

	if err := checkPairs(dir); err != nil {
		return nil, fmt.Errorf("migrations: %s schema: %w", dialect, err)
	}
	return dir, nil
}

// checkPairs requires at least one migration and a down file for every up.
func checkPairs(dir fs.FS) error {
	ups, err := fs.Glob(dir, "*.up.sql")
	if err != nil {
		return err
	}
	if len(ups) == 0 {
		return fmt.Errorf("no *.up.sql files")
	}
	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		if _, err := fs.Stat(dir, down); err != nil {
			return fmt.Errorf("%s has no matching %s", up, down)
		}
	}
	return nil
}
