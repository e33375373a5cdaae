package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/artisancrate/billing-engine/pkg/config"
	"github.com/artisancrate/billing-engine/pkg/logger"
)

// Client owns the pooled GORM connection every service shares.
type Client struct {
	conn *gorm.DB
}

// Pinger is what health checks need from a datastore.
type Pinger interface {
	Ping(ctx context.Context) error
}

// New opens the configured database, applies pool limits and verifies the
// connection before returning.
func New(ctx context.Context, cfg config.DBConfig, logg *logger.Logger) (*Client, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 newQueryLogger(logg, cfg.SlowQueryThreshold),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening db connection: %w", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql db handle: %w", err)
	}
	limitPool(sqlDB, cfg)

	client := &Client{conn: conn}
	if err := client.Ping(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("pinging %s: %w", dialector.Name(), err)
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"driver":         dialector.Name(),
			"max_open_conns": cfg.MaxOpenConns,
		}), "database connection established")
	}
	return client, nil
}

// NewFromGorm wraps an already open connection.
func NewFromGorm(conn *gorm.DB) *Client {
	return &Client{conn: conn}
}

func dialectorFor(cfg config.DBConfig) (gorm.Dialector, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", config.DriverPostgres:
		// Simple protocol keeps pgbouncer in transaction mode happy.
		return postgres.New(postgres.Config{DSN: cfg.DSN, PreferSimpleProtocol: true}), nil
	case config.DriverSQLite:
		return sqlite.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.Driver)
	}
}

func limitPool(sqlDB *sql.DB, cfg config.DBConfig) {
	if n := cfg.MaxOpenConns; n > 0 {
		sqlDB.SetMaxOpenConns(n)
	}
	if n := cfg.MaxIdleConns; n > 0 {
		sqlDB.SetMaxIdleConns(n)
	}
	if d := cfg.ConnMaxLifetime; d > 0 {
		sqlDB.SetConnMaxLifetime(d)
	}
	if d := cfg.ConnMaxIdleTime; d > 0 {
		sqlDB.SetConnMaxIdleTime(d)
	}
}

func (c *Client) DB() *gorm.DB {
	return c.conn
}

func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (c *Client) Close() error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTx runs fn in a transaction that commits only when fn returns nil. A
// panic in fn rolls back and keeps unwinding.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return c.conn.WithContext(ctx).Transaction(fn)
}
