package clickhouse

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crimewatch/pkg/errors"
)

type sink struct {
	mu      sync.Mutex
	batches [][]int
	err     error
}

func (s *sink) flush(_ context.Context, batch []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, batch)
	return nil
}

func (s *sink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func TestBatchWriter_FlushOnMaxSize(t *testing.T) {
	s := &sink{}
	w := NewBatchWriter(Config[int]{FlushFunc: s.flush, TableName: "t", MaxBatchSize: 3, MaxAge: time.Hour})
	ctx := context.Background()

	require.NoError(t, w.Add(ctx, 1))
	require.NoError(t, w.Add(ctx, 2))
	assert.Equal(t, 0, s.count())

	require.NoError(t, w.Add(ctx, 3))
	assert.Equal(t, [][]int{{1, 2, 3}}, s.batches)
	assert.Equal(t, 0, w.Stats().Buffered)
}

func TestBatchWriter_FlushOnTimer(t *testing.T) {
	s := &sink{}
	w := NewBatchWriter(Config[int]{FlushFunc: s.flush, TableName: "t", MaxBatchSize: 100, MaxAge: 20 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w.Start(ctx)
	require.NoError(t, w.Add(ctx, 7))

	assert.Eventually(t, func() bool { return s.count() == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, w.Stop(context.Background()))
}

func TestBatchWriter_StopFlushesRemainder(t *testing.T) {
	s := &sink{}
	w := NewBatchWriter(Config[int]{FlushFunc: s.flush, TableName: "t", MaxBatchSize: 100, MaxAge: time.Hour})
	w.Start(context.Background())

	for i := 0; i < 5; i++ {
		require.NoError(t, w.Add(context.Background(), i))
	}
	require.NoError(t, w.Stop(context.Background()))

	assert.Equal(t, 5, s.count())
	assert.False(t, w.Stats().Running)
}

func TestBatchWriter_FailedFlushDropsBatch(t *testing.T) {
	s := &sink{err: errors.New("connection refused")}
	w := NewBatchWriter(Config[int]{FlushFunc: s.flush, TableName: "t", MaxBatchSize: 2})

	require.NoError(t, w.Add(context.Background(), 1))
	assert.Error(t, w.Add(context.Background(), 2))

	stats := w.Stats()
	assert.Equal(t, 0, stats.Buffered)
	assert.Equal(t, 2, stats.Dropped)
}

func TestBatchWriter_StopWithoutStart(t *testing.T) {
	s := &sink{}
	w := NewBatchWriter(Config[int]{FlushFunc: s.flush, TableName: "t"})
	require.NoError(t, w.Add(context.Background(), 1))
	require.NoError(t, w.Stop(context.Background()))
	assert.Equal(t, 1, s.count())
}
