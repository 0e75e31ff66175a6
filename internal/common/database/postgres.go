package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"center-onboarding/internal/common/config"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// PostgresClient wraps a pooled PostgreSQL connection.
type PostgresClient struct {
	DB   *sql.DB
	name string
}

// NewPostgres opens a pool for cfg. name labels the pool in errors and logs
// ("conversations" or "provisioning").
func NewPostgres(name string, cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres %s: %w", name, err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db, name: name}, nil
}

// Name returns the pool label.
func (c *PostgresClient) Name() string {
	return c.name
}

// Ping tests the database connection
func (c *PostgresClient) Ping(ctx context.Context) error {
	if err := c.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres %s ping failed: %w", c.name, err)
	}
	return nil
}

// Close closes the database connection
func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// SQLX returns an sqlx handle sharing the same pool.
func (c *PostgresClient) SQLX() *sqlx.DB {
	return sqlx.NewDb(c.DB, "postgres")
}
