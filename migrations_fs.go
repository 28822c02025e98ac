package vaultrest

import (
	"embed"
	"io/fs"
)

// migrationsFS holds the profile schema, with the SQLite variant under
// data/sql/migrations/sqlite.
//
//go:embed data/sql/migrations/*.sql data/sql/migrations/sqlite/*.sql
var migrationsFS embed.FS

func GetMigrationsFS() fs.FS {
	return migrationsFS
}
