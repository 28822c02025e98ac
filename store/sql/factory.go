package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-vaultrest/core"
	"github.com/goliatone/go-vaultrest/migrations"
	"github.com/hashicorp/go-multierror"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"

	defaultPingTimeout = 5 * time.Second
)

// StoreConfig selects the database a profile store runs against.
type StoreConfig struct {
	Driver         string
	DSN            string
	Debug          bool
	PingTimeout    time.Duration
	OtelIdentifier string
	AutoMigrate    bool
}

func (c StoreConfig) GetDebug() bool {
	return c.Debug
}

func (c StoreConfig) GetDriver() string {
	return c.Driver
}

func (c StoreConfig) GetServer() string {
	return c.DSN
}

func (c StoreConfig) GetPingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return defaultPingTimeout
	}
	return c.PingTimeout
}

func (c StoreConfig) GetOtelIdentifier() string {
	if strings.TrimSpace(c.OtelIdentifier) == "" {
		return "go-vaultrest"
	}
	return c.OtelIdentifier
}

// Validate reports every problem with the config at once.
func (c StoreConfig) Validate() error {
	var result *multierror.Error
	if strings.TrimSpace(c.DSN) == "" {
		result = multierror.Append(result, fmt.Errorf("sqlstore: dsn is required"))
	}
	if _, _, err := dialectFor(strings.ToLower(strings.TrimSpace(c.Driver))); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// Open connects through go-persistence-bun and, when AutoMigrate is set,
// applies the migrations for the configured dialect.
func Open(ctx context.Context, cfg StoreConfig) (*persistence.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Driver = strings.ToLower(strings.TrimSpace(cfg.Driver))
	dialect, migrationDialect, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", cfg.Driver, err)
	}
	if cfg.Driver == DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(cfg, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: new persistence client: %w", err)
	}
	if !cfg.AutoMigrate {
		return client, nil
	}

	profileMigrations, err := migrations.ProfileSchema(migrationDialect)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("sqlstore: load migrations: %w", err)
	}
	client.RegisterSQLMigrations(profileMigrations)
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return client, nil
}

func dialectFor(driver string) (schema.Dialect, string, error) {
	switch driver {
	case DriverPostgres:
		return pgdialect.New(), migrations.DialectPostgres, nil
	case DriverSQLite, "sqlite":
		return sqlitedialect.New(), migrations.DialectSQLite, nil
	default:
		return nil, "", fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
}

// RepositoryFactory builds the profile stores over a shared bun DB.
type RepositoryFactory struct {
	db *bun.DB

	profileStore *ProfileStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, secrets core.SecretProvider) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if err := factory.BuildStores(client, secrets); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, secrets core.SecretProvider) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if err := factory.BuildStores(db, secrets); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any, secrets core.SecretProvider) error {
	if f == nil {
		return fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return err
		}
		f.db = db
	}
	if f.profileStore != nil {
		return nil
	}
	store, err := NewProfileStore(f.db, secrets)
	if err != nil {
		return err
	}
	f.profileStore = store
	return nil
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) ProfileStore() *ProfileStore {
	if f == nil {
		return nil
	}
	return f.profileStore
}

// CachedProfileStore wraps the profile store with cacheService.
func (f *RepositoryFactory) CachedProfileStore(cacheService repositorycache.CacheService) (*CachedProfileStore, error) {
	if f == nil || f.profileStore == nil {
		return nil, fmt.Errorf("sqlstore: profile store is not built")
	}
	return NewCachedProfileStore(f.profileStore, cacheService)
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
