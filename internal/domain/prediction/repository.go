package prediction

import "context"

// Repository persists prediction audit logs
// Implementation is in internal/repository/clickhouse/prediction_log.go
type Repository interface {
	InsertBatch(ctx context.Context, logs []Log) error
	StatsByCity(ctx context.Context, sinceHours int) ([]CityStat, error)
}
