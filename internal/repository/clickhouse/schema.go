package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"crimewatch/pkg/errors"
)

const (
	predictionLogTable = "prediction_log"
	modelRunTable      = "model_runs"
)

const predictionLogDDL = `
CREATE TABLE IF NOT EXISTS %s (
	timestamp      DateTime64(3, 'UTC'),
	bundle_version LowCardinality(String),
	city           LowCardinality(String),
	age_group      LowCardinality(String),
	gender         LowCardinality(String),
	time_of_day    LowCardinality(String),
	month          LowCardinality(String),
	day_of_week    LowCardinality(String),
	predicted      LowCardinality(String),
	confidence     Float64,
	latency_us     UInt32
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(timestamp)
ORDER BY (city, timestamp)
TTL toDateTime(timestamp) + INTERVAL 180 DAY`

const modelRunDDL = `
CREATE TABLE IF NOT EXISTS %s (
	bundle_version  String,
	started_at      DateTime64(3, 'UTC'),
	finished_at     DateTime64(3, 'UTC'),
	status          LowCardinality(String),
	error           String,
	rows_read       UInt32,
	rows_retained   UInt32,
	num_classes     UInt16,
	selected_trees  UInt16,
	holdout_f1      Float64,
	cv_mean_f1      Float64,
	cv_std_f1       Float64,
	accuracy        Float64,
	pruned_labels   Array(String),
	candidate_trees Array(UInt16),
	candidate_f1    Array(Float64)
) ENGINE = MergeTree()
ORDER BY started_at`

// Migrate creates the analytics tables when they do not exist
func Migrate(ctx context.Context, conn driver.Conn) error {
	for table, ddl := range map[string]string{
		predictionLogTable: predictionLogDDL,
		modelRunTable:      modelRunDDL,
	} {
		if err := conn.Exec(ctx, fmt.Sprintf(ddl, table)); err != nil {
			return errors.Wrapf(err, "create table %s", table)
		}
	}
	return nil
}
