package prediction

import (
	"context"
	"time"

	"crimewatch/internal/domain/prediction"
	"crimewatch/pkg/clickhouse"
	"crimewatch/pkg/logger"
)

// AuditRecorder buffers prediction logs and writes them in batches.
// Write failures are logged and never reach the caller.
type AuditRecorder struct {
	writer *clickhouse.BatchWriter[prediction.Log]
	log    *logger.Logger
}

// NewAuditRecorder creates a recorder over repo
func NewAuditRecorder(repo prediction.Repository, batchSize int, maxAge time.Duration, log *logger.Logger) *AuditRecorder {
	return &AuditRecorder{
		writer: clickhouse.NewBatchWriter(clickhouse.Config[prediction.Log]{
			FlushFunc:    repo.InsertBatch,
			TableName:    "prediction_log",
			MaxBatchSize: batchSize,
			MaxAge:       maxAge,
		}),
		log: log.With("component", "prediction_audit"),
	}
}

// Start begins periodic flushing
func (r *AuditRecorder) Start(ctx context.Context) {
	r.writer.Start(ctx)
}

// Record implements Recorder
func (r *AuditRecorder) Record(ctx context.Context, entry prediction.Log) {
	// request ctx may be cancelled before a size-triggered flush finishes
	if err := r.writer.Add(context.WithoutCancel(ctx), entry); err != nil {
		r.log.Warnw("Prediction audit write failed", "error", err)
	}
}

// Stop flushes pending logs
func (r *AuditRecorder) Stop(ctx context.Context) error {
	return r.writer.Stop(ctx)
}
