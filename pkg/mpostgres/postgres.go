// Package mpostgres is a thin connection hub over primary/replica Postgres
// pools, grounded on the teacher's mpostgres connector: a singleton
// *dbresolver.DB wrapping a primary pool (writes, and reads that must never
// see replica lag) and a replica pool (everything else).
package mpostgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"

	"github.com/bxcodec/dbresolver/v2"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/creatorplatform/gateway-core/pkg/mlog"
)

// Connection is a hub which deals with Postgres primary/replica connections
// and runs schema migrations on first connect.
type Connection struct {
	PrimaryDSN    string
	ReplicaDSN    string
	MigrationsDir string
	Logger        mlog.Logger

	db        *dbresolver.DB
	primaryDB *sql.DB
	connected bool
}

// Connect opens the primary and replica pools, runs pending migrations
// against the primary, and pings both.
func (c *Connection) Connect() error {
	c.Logger.Info("connecting to postgres primary and replica...")

	primary, err := sql.Open("pgx", c.PrimaryDSN)
	if err != nil {
		return fmt.Errorf("open primary: %w", err)
	}

	replicaDSN := c.ReplicaDSN
	if replicaDSN == "" {
		replicaDSN = c.PrimaryDSN
	}

	replica, err := sql.Open("pgx", replicaDSN)
	if err != nil {
		return fmt.Errorf("open replica: %w", err)
	}

	resolved := dbresolver.New(
		dbresolver.WithPrimaryDBs(primary),
		dbresolver.WithReplicaDBs(replica),
		dbresolver.WithLoadBalancer(dbresolver.RoundRobinLB),
	)

	if c.MigrationsDir != "" {
		if err := c.migrate(primary); err != nil {
			return err
		}
	}

	if err := resolved.Ping(); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}

	c.db = &resolved
	c.primaryDB = primary
	c.connected = true

	c.Logger.Info("connected to postgres")

	return nil
}

func (c *Connection) migrate(primary *sql.DB) error {
	abs, err := filepath.Abs(c.MigrationsDir)
	if err != nil {
		return fmt.Errorf("resolve migrations dir: %w", err)
	}

	u := &url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}

	driver, err := postgres.WithInstance(primary, &postgres.Config{
		MultiStatementEnabled: true,
		SchemaName:            "public",
	})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(u.String(), "postgres", driver)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// DB returns the resolver, connecting lazily on first use.
func (c *Connection) DB(ctx context.Context) (dbresolver.DB, error) {
	if !c.connected {
		if err := c.Connect(); err != nil {
			return nil, err
		}
	}

	return *c.db, nil
}

// Primary returns the raw primary *sql.DB, used by repositories that must
// bypass the replica entirely (balance reads - spec.md §5: "no in-process
// caches of user balance, balance reads always hit the DB under the same
// conditional-UPDATE pattern so as to avoid stale-read anomalies").
func (c *Connection) Primary(ctx context.Context) (*sql.DB, error) {
	if !c.connected {
		if err := c.Connect(); err != nil {
			return nil, err
		}
	}

	return c.primaryDB, nil
}
