package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"lobbyetl/internal/metrics"
	"lobbyetl/internal/schema"
)

// Default batch sizes per delivery mechanism.
const (
	CopyBatchSize   = 10000
	InsertBatchSize = 1000
)

// Loader groups rows into fixed-size batches and delivers them to a Store,
// logging progress at batch boundaries. Rows are accepted through Add and the
// final partial batch is flushed (and the store committed, when it supports
// transactions) by Finish.
type Loader struct {
	store     Store
	copier    BulkCopier // non-nil when the store's bulk-copy path is used
	cols      []schema.Column
	batchSize int

	batch   [][]string
	total   int64
	batches int64
	start   time.Time
	lastTS  time.Time
}

// NewLoader builds a Loader for store. When useCopy is set and the store
// implements BulkCopier, batches go through the bulk-copy protocol.
func NewLoader(store Store, cols []schema.Column, batchSize int, useCopy bool) (*Loader, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batchSize must be > 0")
	}
	l := &Loader{
		store:     store,
		cols:      cols,
		batchSize: batchSize,
		batch:     make([][]string, 0, batchSize),
		start:     time.Now(),
	}
	l.lastTS = l.start
	if useCopy {
		if c, ok := store.(BulkCopier); ok {
			l.copier = c
		}
	}
	return l, nil
}

// Add appends one row, flushing when the batch is full.
func (l *Loader) Add(ctx context.Context, row []string) error {
	l.batch = append(l.batch, row)
	if len(l.batch) >= l.batchSize {
		return l.flush(ctx)
	}
	return nil
}

// Finish flushes the remaining partial batch, commits when the store is
// transactional, and returns the total number of rows delivered.
func (l *Loader) Finish(ctx context.Context) (int64, error) {
	if err := l.flush(ctx); err != nil {
		return l.total, err
	}
	if c, ok := l.store.(Committer); ok {
		if err := c.Commit(ctx); err != nil {
			return l.total, fmt.Errorf("commit: %w", err)
		}
	}
	log.Printf("loader: done total=%d batches=%d elapsed=%s",
		l.total, l.batches, time.Since(l.start).Truncate(time.Millisecond))
	return l.total, nil
}

func (l *Loader) flush(ctx context.Context) error {
	if len(l.batch) == 0 {
		return nil
	}
	n := int64(len(l.batch))
	var err error
	if l.copier != nil {
		n, err = l.copier.CopyBatch(ctx, l.cols, l.batch)
	} else {
		err = l.store.InsertBatch(ctx, l.cols, l.batch)
	}
	// Reuse the allocated slice to avoid churn.
	l.batch = l.batch[:0]
	if err != nil {
		log.Printf("loader: batch failed total=%d err=%v", l.total, err)
		return err
	}

	l.total += n
	l.batches++
	metrics.RecordBatches("lobbyetl", 1)
	metrics.RecordRow("lobbyetl", "inserted", n)

	now := time.Now()
	sinceLast := now.Sub(l.lastTS)
	rps := float64(0)
	if sinceLast > 0 {
		rps = float64(n) / sinceLast.Seconds()
	}
	log.Printf("batch #%d: inserted=%d total_inserted=%d rps=%.0f elapsed=%s",
		l.batches, n, l.total, rps, now.Sub(l.start).Truncate(time.Millisecond))
	l.lastTS = now
	return nil
}
