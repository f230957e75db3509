package bootstrap

import (
	"context"
	"sync"
	"time"

	chclient "crimewatch/internal/adapters/clickhouse"
	"crimewatch/internal/adapters/kafka"
	pgclient "crimewatch/internal/adapters/postgres"
	redisclient "crimewatch/internal/adapters/redis"
	"crimewatch/internal/api"
	"crimewatch/internal/services/prediction"
	"crimewatch/pkg/errors"
	"crimewatch/pkg/logger"
)

// Lifecycle manages graceful startup and shutdown of components
type Lifecycle struct {
	shutdownTimeout time.Duration
}

// NewLifecycle creates a new lifecycle manager
func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		shutdownTimeout: 60 * time.Second,
	}
}

// ShutdownTargets lists what Shutdown closes. Nil entries are skipped.
type ShutdownTargets struct {
	HTTPServer    *api.Server
	HTTPTimeout   time.Duration
	AlertConsumer *kafka.Consumer
	KafkaProducer *kafka.Producer
	Audit         *prediction.AuditRecorder
	PG            *pgclient.Client
	CH            *chclient.Client
	Redis         *redisclient.Client
	ErrorTracker  errors.Tracker
}

// Shutdown performs coordinated cleanup of all components in order:
// 1. No new requests accepted
// 2. Kafka consumer unblocks before waiting for goroutines
// 3. Producer closes after consumers
// 4. Buffered prediction audit rows are flushed while ClickHouse is still open
// 5. Logs and errors flushed
// 6. Database connections last
func (l *Lifecycle) Shutdown(wg *sync.WaitGroup, t ShutdownTargets, log *logger.Logger) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), l.shutdownTimeout)
	defer shutdownCancel()

	// ========================================
	// Step 1: Stop HTTP Server
	// ========================================
	log.Info("[1/7] Stopping HTTP server...")
	if t.HTTPServer != nil {
		timeout := t.HTTPTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		httpCtx, httpCancel := context.WithTimeout(shutdownCtx, timeout)
		if err := t.HTTPServer.Shutdown(httpCtx); err != nil {
			log.Errorw("HTTP server shutdown failed", "error", err)
		}
		httpCancel()
	}

	// ========================================
	// Step 2: Close Kafka Consumer
	// Critical: close BEFORE waiting for goroutines, this unblocks Fetch()
	// ========================================
	log.Info("[2/7] Closing Kafka consumer...")
	if t.AlertConsumer != nil {
		if err := t.AlertConsumer.Close(); err != nil {
			log.Errorw("Kafka consumer close failed", "consumer", "alerts", "error", err)
		} else {
			log.Info("✓ Kafka consumer closed")
		}
	}

	// ========================================
	// Step 3: Wait for Goroutines
	// ========================================
	log.Info("[3/7] Waiting for goroutines...")
	l.waitForGoroutines(wg, 5*time.Second, log)

	// ========================================
	// Step 4: Close Kafka Producer
	// ========================================
	log.Info("[4/7] Closing Kafka producer...")
	if t.KafkaProducer != nil {
		if err := t.KafkaProducer.Close(); err != nil {
			log.Errorw("Kafka producer close failed", "error", err)
		} else {
			log.Info("✓ Kafka producer closed")
		}
	}

	// ========================================
	// Step 5: Flush Prediction Audit Buffer
	// ========================================
	log.Info("[5/7] Flushing prediction audit log...")
	if t.Audit != nil {
		auditCtx, auditCancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		if err := t.Audit.Stop(auditCtx); err != nil {
			log.Errorw("Prediction audit flush failed", "error", err)
		} else {
			log.Info("✓ Prediction audit log flushed")
		}
		auditCancel()
	}

	// ========================================
	// Step 6: Flush Error Tracker & Sync Logs
	// ========================================
	log.Info("[6/7] Flushing error tracker and logs...")
	l.flushErrorTracker(shutdownCtx, t.ErrorTracker, log)
	if err := logger.Sync(); err != nil {
		log.Warn("Log sync completed with warnings")
	}

	// ========================================
	// Step 7: Close Database Connections
	// LAST - other components may need them during shutdown
	// ========================================
	log.Info("[7/7] Closing database connections...")
	l.closeDatabases(t.PG, t.CH, t.Redis, log)

	log.Info("✅ Graceful shutdown complete")
}

// waitForGoroutines waits for all goroutines with a timeout
func (l *Lifecycle) waitForGoroutines(wg *sync.WaitGroup, timeout time.Duration, log *logger.Logger) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("✓ All goroutines finished")
	case <-time.After(timeout):
		log.Warnw("⚠ Some goroutines did not finish within timeout", "timeout", timeout)
	}
}

// flushErrorTracker flushes the error tracker (Sentry, etc.)
func (l *Lifecycle) flushErrorTracker(ctx context.Context, tracker errors.Tracker, log *logger.Logger) {
	if tracker == nil {
		return
	}

	flushCtx, flushCancel := context.WithTimeout(ctx, 3*time.Second)
	defer flushCancel()

	if err := tracker.Flush(flushCtx); err != nil {
		log.Errorw("Error tracker flush failed", "error", err)
	} else {
		log.Info("✓ Error tracker flushed")
	}
}

// closeDatabases closes all database connections
func (l *Lifecycle) closeDatabases(
	pg *pgclient.Client,
	ch *chclient.Client,
	rdb *redisclient.Client,
	log *logger.Logger,
) {
	var dbErrors []error

	if pg != nil {
		if err := pg.Close(); err != nil {
			dbErrors = append(dbErrors, errors.Wrap(err, "postgres"))
		}
	}

	if ch != nil {
		if err := ch.Close(); err != nil {
			dbErrors = append(dbErrors, errors.Wrap(err, "clickhouse"))
		}
	}

	if rdb != nil {
		if err := rdb.Close(); err != nil {
			dbErrors = append(dbErrors, errors.Wrap(err, "redis"))
		}
	}

	if len(dbErrors) > 0 {
		log.Errorw("Database close errors", "errors", dbErrors)
	} else {
		log.Info("✓ Database connections closed")
	}
}
