package testsupport

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"

	"crimewatch/internal/adapters/postgres"
)

// PostgresTestHelper wraps a transaction that is always rolled back
type PostgresTestHelper struct {
	client     *postgres.Client
	tx         *sqlx.Tx
	rolledBack bool
}

// NewPostgresTestHelper opens a connection and begins a transaction.
// Skips when the Postgres environment is missing.
func NewPostgresTestHelper(t *testing.T) *PostgresTestHelper {
	t.Helper()
	cfg := PostgresConfigFromEnv(t)

	client, err := postgres.NewClient(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to create postgres client: %v", err)
	}

	tx, err := client.DB().BeginTxx(context.Background(), nil)
	if err != nil {
		_ = client.Close()
		t.Fatalf("failed to start transaction: %v", err)
	}

	helper := &PostgresTestHelper{client: client, tx: tx}
	t.Cleanup(func() { _ = client.Close() })
	t.Cleanup(helper.Rollback)
	return helper
}

// Tx returns the active transaction
func (h *PostgresTestHelper) Tx() *sqlx.Tx {
	return h.tx
}

// DB returns the underlying pool
func (h *PostgresTestHelper) DB() *sqlx.DB {
	return h.client.DB()
}

// Rollback rolls back the transaction once
func (h *PostgresTestHelper) Rollback() {
	if h.rolledBack {
		return
	}
	_ = h.tx.Rollback()
	h.rolledBack = true
}
