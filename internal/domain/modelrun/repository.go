package modelrun

import "context"

// Repository stores training run history
// Implementation is in internal/repository/clickhouse/model_run.go
type Repository interface {
	Save(ctx context.Context, run *Run) error
	Latest(ctx context.Context, limit int) ([]Run, error)
}
