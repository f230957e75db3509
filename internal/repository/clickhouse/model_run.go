package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	chclient "crimewatch/internal/adapters/clickhouse"
	"crimewatch/internal/domain/modelrun"
	"crimewatch/pkg/errors"
)

var _ modelrun.Repository = (*ModelRunRepository)(nil)

// ModelRunRepository keeps training run history
type ModelRunRepository struct {
	conn  driver.Conn
	table string
}

// NewModelRunRepository creates the repository
func NewModelRunRepository(conn driver.Conn) *ModelRunRepository {
	return &ModelRunRepository{conn: conn, table: modelRunTable}
}

// Save appends one run
func (r *ModelRunRepository) Save(ctx context.Context, run *modelrun.Run) error {
	err := chclient.InsertBatch(ctx, r.conn, fmt.Sprintf("INSERT INTO %s", r.table), []modelrun.Run{*run})
	return errors.Wrap(err, "insert model run")
}

// Latest returns the most recent runs, newest first
func (r *ModelRunRepository) Latest(ctx context.Context, limit int) ([]modelrun.Run, error) {
	var runs []modelrun.Run
	query := fmt.Sprintf(`
		SELECT
			bundle_version, started_at, finished_at, status, error,
			rows_read, rows_retained, num_classes, selected_trees,
			holdout_f1, cv_mean_f1, cv_std_f1, accuracy,
			pruned_labels, candidate_trees, candidate_f1
		FROM %s
		ORDER BY started_at DESC
		LIMIT ?`, r.table)
	if err := r.conn.Select(ctx, &runs, query, limit); err != nil {
		return nil, errors.Wrap(err, "query model runs")
	}
	return runs, nil
}
