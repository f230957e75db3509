package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"crimewatch/internal/adapters/config"
	"crimewatch/pkg/errors"
)

// Client wraps the ClickHouse connection used for audit and training history
type Client struct {
	conn driver.Conn
}

// NewClient opens an LZ4-compressed native connection and pings it
func NewClient(ctx context.Context, cfg config.ClickHouseConfig) (*Client, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to clickhouse")
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "failed to ping clickhouse")
	}
	return &Client{conn: conn}, nil
}

// Conn returns the driver connection
func (c *Client) Conn() driver.Conn {
	return c.conn
}

// Close closes the connection
func (c *Client) Close() error {
	return c.conn.Close()
}

// Health pings ClickHouse
func (c *Client) Health(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

// InsertBatch appends every item to one batch and sends it
func InsertBatch[T any](ctx context.Context, conn driver.Conn, query string, items []T) error {
	if len(items) == 0 {
		return nil
	}
	batch, err := conn.PrepareBatch(ctx, query)
	if err != nil {
		return errors.Wrap(err, "prepare batch")
	}
	for i := range items {
		if err := batch.AppendStruct(&items[i]); err != nil {
			_ = batch.Abort()
			return errors.Wrap(err, "append to batch")
		}
	}
	return errors.Wrap(batch.Send(), "send batch")
}
