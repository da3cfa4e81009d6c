// Package storage contains the destination-agnostic contracts: the Store
// interface implemented by the Postgres and REST backends, the batched
// loader that streams filtered rows to a Store, and the connection-method
// selector.
package storage

import (
	"context"

	"lobbyetl/internal/schema"
)

// Method enumerates the connection methods. It is selected once per run and
// fixed for its duration.
type Method int

const (
	MethodLocalPostgres Method = iota
	MethodRemotePostgres
	MethodRESTAPI
)

func (m Method) String() string {
	switch m {
	case MethodLocalPostgres:
		return "local_postgres"
	case MethodRemotePostgres:
		return "remote_postgres"
	case MethodRESTAPI:
		return "rest_api"
	}
	return "unknown"
}

// Store is the destination capability shared by all delivery variants.
type Store interface {
	// EnsureTable drops and recreates the staging table from the column
	// descriptors (or, for destinations that cannot create tables, verifies
	// existence and instructs the operator otherwise).
	EnsureTable(ctx context.Context, cols []schema.Column) error

	// InsertBatch delivers one batch of rows aligned with cols.
	InsertBatch(ctx context.Context, cols []schema.Column, rows [][]string) error

	// Close releases the connection. Safe to call after a failed run.
	Close(ctx context.Context) error
}

// BulkCopier is implemented by stores with a native bulk-copy protocol. The
// loader prefers it over InsertBatch when available.
type BulkCopier interface {
	CopyBatch(ctx context.Context, cols []schema.Column, rows [][]string) (int64, error)
}

// Committer is implemented by stores that accumulate batches inside a single
// transaction committed after the final partial batch.
type Committer interface {
	Commit(ctx context.Context) error
}
