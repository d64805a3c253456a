package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"time"

	servicemigrations "github.com/goliatone/go-idp-services/migrations"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// ClientConfig describes the database backing the directory store. It
// satisfies the configuration contract of go-persistence-bun.
type ClientConfig struct {
	Driver        string
	DSN           string
	Debug         bool
	PingTimeout   time.Duration
	OtelName      string
	SkipMigration bool
}

func (c ClientConfig) GetDebug() bool {
	return c.Debug
}

func (c ClientConfig) GetDriver() string {
	return c.driver()
}

func (c ClientConfig) GetServer() string {
	return c.DSN
}

func (c ClientConfig) GetPingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return 5 * time.Second
	}
	return c.PingTimeout
}

func (c ClientConfig) GetOtelIdentifier() string {
	if strings.TrimSpace(c.OtelName) == "" {
		return "go-idp-services"
	}
	return c.OtelName
}

func (c ClientConfig) driver() string {
	driver := strings.ToLower(strings.TrimSpace(c.Driver))
	switch driver {
	case "", "sqlite", DriverSQLite:
		return DriverSQLite
	case "postgresql", "pg", DriverPostgres:
		return DriverPostgres
	default:
		return driver
	}
}

func (c ClientConfig) dialect() (schema.Dialect, error) {
	switch c.driver() {
	case DriverSQLite:
		return sqlitedialect.New(), nil
	case DriverPostgres:
		return pgdialect.New(), nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", c.Driver)
	}
}

// Open connects to the configured database, registers the embedded
// migrations for its dialect and applies them unless SkipMigration is set.
func Open(ctx context.Context, cfg ClientConfig) (*persistence.Client, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("sqlstore: dsn is required")
	}
	dialect, err := cfg.dialect()
	if err != nil {
		return nil, err
	}
	sqlDB, err := sql.Open(cfg.driver(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", cfg.driver(), err)
	}
	if cfg.driver() == DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(cfg, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: new persistence client: %w", err)
	}

	target, err := servicemigrations.DialectForDriver(cfg.driver())
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	_, err = servicemigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != target {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, servicemigrations.WithValidationTargets(target))
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if cfg.SkipMigration {
		return client, nil
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return client, nil
}
