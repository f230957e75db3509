package clickhouse

import (
	"context"
	"sync"
	"time"

	"crimewatch/pkg/logger"
)

// FlushFunc performs the INSERT for one batch
type FlushFunc[T any] func(ctx context.Context, batch []T) error

// BatchWriter buffers rows and hands them to FlushFunc when the buffer is
// full or MaxAge has elapsed. Single-row inserts are slow in ClickHouse.
type BatchWriter[T any] struct {
	flush  FlushFunc[T]
	table  string
	size   int
	maxAge time.Duration
	log    *logger.Logger

	mu        sync.Mutex
	buffer    []T
	lastFlush time.Time
	dropped   int
	running   bool
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// Config configures a BatchWriter
type Config[T any] struct {
	FlushFunc    FlushFunc[T]
	TableName    string
	MaxBatchSize int           // Default: 500
	MaxAge       time.Duration // Default: 5s
}

// NewBatchWriter creates a writer; call Start to enable periodic flushing
func NewBatchWriter[T any](cfg Config[T]) *BatchWriter[T] {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 500
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 5 * time.Second
	}
	return &BatchWriter[T]{
		flush:     cfg.FlushFunc,
		table:     cfg.TableName,
		size:      cfg.MaxBatchSize,
		maxAge:    cfg.MaxAge,
		buffer:    make([]T, 0, cfg.MaxBatchSize),
		lastFlush: time.Now(),
		stopCh:    make(chan struct{}),
		log:       logger.Get().With("component", "batch_writer", "table", cfg.TableName),
	}
}

// Start launches the flush loop. It exits on ctx cancellation or Stop,
// flushing whatever is left.
func (w *BatchWriter[T]) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.loop(ctx)
	w.log.Infof("Batch writer started (batch=%d, max_age=%v)", w.size, w.maxAge)
}

// Add buffers one row, flushing synchronously when the buffer fills up
func (w *BatchWriter[T]) Add(ctx context.Context, item T) error {
	w.mu.Lock()
	w.buffer = append(w.buffer, item)
	full := len(w.buffer) >= w.size
	w.mu.Unlock()

	if full {
		return w.Flush(ctx)
	}
	return nil
}

// Flush writes buffered rows. On failure the batch is dropped and counted;
// a retry buffer would grow without bound while ClickHouse is down.
func (w *BatchWriter[T]) Flush(ctx context.Context) error {
	w.mu.Lock()
	if len(w.buffer) == 0 {
		w.mu.Unlock()
		return nil
	}
	batch := w.buffer
	w.buffer = make([]T, 0, w.size)
	w.lastFlush = time.Now()
	w.mu.Unlock()

	start := time.Now()
	if err := w.flush(ctx, batch); err != nil {
		w.mu.Lock()
		w.dropped += len(batch)
		w.mu.Unlock()
		w.log.Errorf("Failed to flush %d rows to %s: %v", len(batch), w.table, err)
		return err
	}
	w.log.Debugf("Flushed %d rows to %s in %v", len(batch), w.table, time.Since(start))
	return nil
}

func (w *BatchWriter[T]) loop(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.maxAge)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.finalFlush()
			return
		case <-w.stopCh:
			w.finalFlush()
			return
		case <-ticker.C:
			if err := w.Flush(ctx); err != nil && ctx.Err() == nil {
				w.log.Warnf("Periodic flush failed: %v", err)
			}
		}
	}
}

func (w *BatchWriter[T]) finalFlush() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := w.Flush(ctx); err != nil {
		w.log.Errorf("Final flush failed: %v", err)
	}
}

// Stop flushes remaining rows and waits for the loop to exit
func (w *BatchWriter[T]) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.Flush(ctx)
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		w.log.Warn("Batch writer stop timed out")
		return ctx.Err()
	}
}

// Stats is a point-in-time view of the writer
type Stats struct {
	Buffered     int
	Dropped      int
	LastFlushAge time.Duration
	Running      bool
}

// Stats returns current counters
func (w *BatchWriter[T]) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Stats{
		Buffered:     len(w.buffer),
		Dropped:      w.dropped,
		LastFlushAge: time.Since(w.lastFlush),
		Running:      w.running,
	}
}
