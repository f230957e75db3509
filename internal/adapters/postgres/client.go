package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"crimewatch/internal/adapters/config"
	"crimewatch/pkg/errors"
)

// Client owns the sqlx pool used by the report and subscriber repositories
type Client struct {
	db *sqlx.DB
}

// NewClient connects, sizes the pool and pings once
func NewClient(ctx context.Context, cfg config.PostgresConfig) (*Client, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to postgres")
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(max(1, cfg.MaxConns/2))
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to ping postgres")
	}
	return &Client{db: db}, nil
}

// DB returns the pool
func (c *Client) DB() *sqlx.DB {
	return c.db
}

// Close closes the pool
func (c *Client) Close() error {
	return c.db.Close()
}

// Health pings the database
func (c *Client) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}
