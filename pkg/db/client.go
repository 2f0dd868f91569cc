// Package db owns the shared GORM connection and transaction helpers.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorflow-backend/pkg/config"
	"github.com/angelmondragon/vendorflow-backend/pkg/logger"
)

type Client struct {
	conn *gorm.DB
}

// New opens the Postgres pool described by cfg. Queries slower than
// cfg.SlowQuery are logged at warn level through logg.
func New(ctx context.Context, cfg config.DBConfig, logg *logger.Logger) (*Client, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database DSN is required")
	}
	conn, err := gorm.Open(
		postgres.New(postgres.Config{DSN: cfg.DSN, PreferSimpleProtocol: true}),
		&gorm.Config{
			Logger:                 newQueryLogger(logg, cfg.SlowQuery),
			SkipDefaultTransaction: true,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	configurePool(sqlDB, cfg)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"max_open_conns": cfg.MaxOpenConns,
			"slow_query":     cfg.SlowQuery.String(),
		}), "database connection established")
	}
	return &Client{conn: conn}, nil
}

// Wrap adopts an already opened handle such as a sqlite test database.
func Wrap(conn *gorm.DB) *Client {
	return &Client{conn: conn}
}

func configurePool(sqlDB *sql.DB, cfg config.DBConfig) {
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
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

// WithTx runs fn in a transaction. A returned error or a panic rolls back.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return c.WithTxOptions(ctx, nil, fn)
}

// WithTxOptions is WithTx with an explicit isolation level or read-only flag.
func (c *Client) WithTxOptions(ctx context.Context, opts *sql.TxOptions, fn func(tx *gorm.DB) error) error {
	return c.conn.WithContext(ctx).Transaction(fn, opts)
}

// Dialect returns the dialector name, e.g. "postgres" or "sqlite".
func Dialect(tx *gorm.DB) string {
	if tx == nil || tx.Dialector == nil {
		return ""
	}
	return tx.Dialector.Name()
}

// SetLocalTimeouts bounds lock waits and statements for the rest of the
// transaction. Only Postgres supports it; other dialects are left untouched.
func SetLocalTimeouts(tx *gorm.DB, timeout time.Duration) error {
	if Dialect(tx) != "postgres" || timeout <= 0 {
		return nil
	}
	ms := timeout.Milliseconds()
	for _, setting := range []string{"lock_timeout", "statement_timeout"} {
		if err := tx.Exec(fmt.Sprintf("SET LOCAL %s = %d", setting, ms)).Error; err != nil {
			return fmt.Errorf("set %s: %w", setting, err)
		}
	}
	return nil
}
