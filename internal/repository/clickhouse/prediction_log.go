package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	chclient "crimewatch/internal/adapters/clickhouse"
	"crimewatch/internal/domain/prediction"
	"crimewatch/internal/metrics"
	"crimewatch/pkg/errors"
)

var _ prediction.Repository = (*PredictionLogRepository)(nil)

// PredictionLogRepository stores served predictions in ClickHouse
type PredictionLogRepository struct {
	conn  driver.Conn
	table string
}

// NewPredictionLogRepository creates the repository
func NewPredictionLogRepository(conn driver.Conn) *PredictionLogRepository {
	return &PredictionLogRepository{conn: conn, table: predictionLogTable}
}

// InsertBatch writes logs with one native batch INSERT
func (r *PredictionLogRepository) InsertBatch(ctx context.Context, logs []prediction.Log) error {
	start := time.Now()
	err := chclient.InsertBatch(ctx, r.conn, fmt.Sprintf("INSERT INTO %s", r.table), logs)
	metrics.RecordDBQuery("clickhouse", "insert_prediction_log", time.Since(start), err)
	return errors.Wrap(err, "insert prediction logs")
}

// StatsByCity aggregates predictions served in the last sinceHours hours
func (r *PredictionLogRepository) StatsByCity(ctx context.Context, sinceHours int) ([]prediction.CityStat, error) {
	query := fmt.Sprintf(`
		SELECT
			city,
			count() AS predictions,
			avg(confidence) AS avg_confidence
		FROM %s
		WHERE timestamp >= now() - toIntervalHour(?)
		GROUP BY city
		ORDER BY predictions DESC`, r.table)

	var stats []prediction.CityStat
	start := time.Now()
	err := r.conn.Select(ctx, &stats, query, sinceHours)
	metrics.RecordDBQuery("clickhouse", "prediction_stats", time.Since(start), err)
	if err != nil {
		return nil, errors.Wrap(err, "query prediction stats")
	}
	return stats, nil
}
