// Package persistence opens the bun database used by the auth core and
// runs the embedded per dialect migrations through go-persistence-bun.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/schema"

	auth "github.com/goliatone/go-course-auth"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	migrationsRoot = "data/sql/migrations"
)

// Config is the database configuration
type Config interface {
	GetDriver() string
	GetDSN() string
}

// Client owns the database handle and its migrations
type Client struct {
	*persistence.Client
}

// clientConfig adapts Config to what go-persistence-bun reads
type clientConfig struct {
	driver string
	dsn    string
	debug  bool
	ping   time.Duration
}

func (c clientConfig) GetDebug() bool                { return c.debug }
func (c clientConfig) GetDriver() string             { return c.driver }
func (c clientConfig) GetServer() string             { return c.dsn }
func (c clientConfig) GetPingTimeout() time.Duration { return c.ping }
func (c clientConfig) GetOtelIdentifier() string     { return "" }

func init() {
	persistence.RegisterModel((*auth.User)(nil))
	persistence.RegisterModel((*auth.TrainerApplication)(nil))
}

// New connects to the configured database and registers the embedded
// migrations. The driver is inferred from the DSN when not set explicitly.
func New(cfg Config) (*Client, error) {
	driver := Driver(cfg)
	dsn := strings.TrimSpace(cfg.GetDSN())

	var (
		sqldb   *sql.DB
		dialect schema.Dialect
		err     error
	)

	switch driver {
	case DriverPostgres:
		sqldb, err = sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		dialect = pgdialect.New()
	case DriverSQLite:
		if dsn == "" {
			dsn = ":memory:"
		}
		sqldb, err = sql.Open(sqliteshim.ShimName, dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// sqlite serializes writers, an in-memory database also lives
		// and dies with its single connection
		sqldb.SetMaxOpenConns(1)
		dialect = sqlitedialect.New()
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	ccfg := clientConfig{driver: driver, dsn: dsn, ping: 5 * time.Second}
	if d, ok := cfg.(interface{ GetDebug() bool }); ok {
		ccfg.debug = d.GetDebug()
	}
	if p, ok := cfg.(interface{ GetPingTimeout() time.Duration }); ok && p.GetPingTimeout() > 0 {
		ccfg.ping = p.GetPingTimeout()
	}

	client, err := persistence.New(ccfg, sqldb, dialect)
	if err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("persistence client: %w", err)
	}

	migrationsFS, err := fs.Sub(auth.GetMigrationsFS(), migrationsRoot)
	if err != nil {
		return nil, err
	}

	client.RegisterDialectMigrations(
		migrationsFS,
		persistence.WithDialectSourceLabel(migrationsRoot),
		persistence.WithValidationTargets(DriverPostgres, DriverSQLite),
	)

	return &Client{Client: client}, nil
}

// Migrate validates that every dialect carries the same migrations and
// applies the pending ones
func (c *Client) Migrate(ctx context.Context) error {
	if err := c.Client.ValidateDialects(ctx); err != nil {
		return fmt.Errorf("validate migrations: %w", err)
	}
	if err := c.Client.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Open connects to the database and applies the migrations
func Open(ctx context.Context, cfg Config) (*bun.DB, error) {
	client, err := New(cfg)
	if err != nil {
		return nil, err
	}

	if err := client.Migrate(ctx); err != nil {
		_ = client.DB().Close()
		return nil, err
	}

	return client.DB(), nil
}

// Driver resolves the driver name for cfg
func Driver(cfg Config) string {
	if d := strings.ToLower(strings.TrimSpace(cfg.GetDriver())); d != "" {
		if d == "postgresql" || d == "pgx" {
			return DriverPostgres
		}
		if d == "sqlite3" {
			return DriverSQLite
		}
		return d
	}

	dsn := strings.ToLower(cfg.GetDSN())
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return DriverPostgres
	}
	return DriverSQLite
}
