package testsupport

import (
	"context"
	"fmt"
	"testing"
	"time"

	"crimewatch/internal/adapters/clickhouse"
)

// ClickHouseTestHelper creates throwaway copies of the audit and model run
// tables on a live ClickHouse
type ClickHouseTestHelper struct {
	client *clickhouse.Client
}

// NewClickHouseTestHelper connects to ClickHouse or skips the test
func NewClickHouseTestHelper(t *testing.T) *ClickHouseTestHelper {
	t.Helper()
	cfg := ClickHouseConfigFromEnv(t)

	client, err := clickhouse.NewClient(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to connect to clickhouse: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return &ClickHouseTestHelper{client: client}
}

// Client returns the connected client
func (h *ClickHouseTestHelper) Client() *clickhouse.Client {
	return h.client
}

// TempTable creates a uniquely named copy of a table from its DDL template
// (one %s verb for the name) and drops it when the test ends
func (h *ClickHouseTestHelper) TempTable(t *testing.T, base, ddl string) string {
	t.Helper()
	ctx := context.Background()

	table := fmt.Sprintf("%s_test_%d", base, time.Now().UnixNano())
	if err := h.client.Conn().Exec(ctx, fmt.Sprintf(ddl, table)); err != nil {
		t.Fatalf("failed to create %s: %v", table, err)
	}
	t.Cleanup(func() {
		_ = h.client.Conn().Exec(context.Background(), "DROP TABLE IF EXISTS "+table)
	})
	return table
}
