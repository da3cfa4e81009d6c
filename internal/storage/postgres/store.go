// Package postgres implements the staging-table destination over a direct
// pgx v5 connection. Batches are delivered either through the COPY protocol
// or through parameterized multi-row INSERTs; all batches of one run share a
// single transaction committed after the final partial batch.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"lobbyetl/internal/schema"
)

// Store is a Postgres-backed destination.
type Store struct {
	conn  *pgx.Conn
	table string
	tx    pgx.Tx
}

// Connect opens a connection for the remainder of the run.
func Connect(ctx context.Context, dsn, table string) (*Store, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	return &Store{conn: conn, table: table}, nil
}

// Probe attempts a real connection with a short timeout and closes it again.
// Success is binary; the caller decides what to try next.
func Probe(ctx context.Context, dsn string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	return conn.Close(ctx)
}

// EnsureTable drops and recreates the staging table with one TEXT column per
// descriptor plus the well-known secondary indexes.
func (s *Store) EnsureTable(ctx context.Context, cols []schema.Column) error {
	if _, err := s.conn.Exec(ctx, schema.CreateTableSQL(s.table, cols)); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// CopyBatch streams one batch through the COPY protocol.
func (s *Store) CopyBatch(ctx context.Context, cols []schema.Column, rows [][]string) (int64, error) {
	tx, err := s.ensureTx(ctx)
	if err != nil {
		return 0, err
	}
	anyRows := make([][]any, len(rows))
	for i, r := range rows {
		vals := make([]any, len(cols))
		for j := range cols {
			if j < len(r) {
				vals[j] = r[j]
			} else {
				vals[j] = ""
			}
		}
		anyRows[i] = vals
	}
	n, err := tx.CopyFrom(ctx, pgx.Identifier{s.table}, schema.Names(cols), pgx.CopyFromRows(anyRows))
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", s.table, err)
	}
	return n, nil
}

// maxBindParams is the Postgres wire-protocol limit on bind parameters per
// statement (uint16).
const maxBindParams = 65535

// InsertBatch delivers one batch as parameterized multi-row INSERTs. A batch
// whose rows*columns would exceed the bind-parameter limit is split into
// multiple statements inside the same transaction.
func (s *Store) InsertBatch(ctx context.Context, cols []schema.Column, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	limit := maxRowsPerInsert(len(cols))
	for len(rows) > limit {
		if err := s.insertChunk(ctx, cols, rows[:limit]); err != nil {
			return err
		}
		rows = rows[limit:]
	}
	return s.insertChunk(ctx, cols, rows)
}

func (s *Store) insertChunk(ctx context.Context, cols []schema.Column, rows [][]string) error {
	tx, err := s.ensureTx(ctx)
	if err != nil {
		return err
	}
	sql := insertSQL(s.table, schema.Names(cols), len(rows))
	args := make([]any, 0, len(rows)*len(cols))
	for _, r := range rows {
		for j := range cols {
			if j < len(r) {
				args = append(args, r[j])
			} else {
				args = append(args, "")
			}
		}
	}
	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert into %s: %w", s.table, err)
	}
	return nil
}

// Commit commits the run's transaction.
func (s *Store) Commit(ctx context.Context) error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Commit(ctx)
	s.tx = nil
	return err
}

// Close rolls back any uncommitted work and closes the connection.
func (s *Store) Close(ctx context.Context) error {
	if s.tx != nil {
		_ = s.tx.Rollback(ctx)
		s.tx = nil
	}
	return s.conn.Close(ctx)
}

func (s *Store) ensureTx(ctx context.Context) (pgx.Tx, error) {
	if s.tx != nil {
		return s.tx, nil
	}
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	s.tx = tx
	return tx, nil
}

// maxRowsPerInsert caps the rows of one INSERT so its placeholder count stays
// within maxBindParams. Always at least 1.
func maxRowsPerInsert(nCols int) int {
	if nCols <= 0 {
		return 1
	}
	n := maxBindParams / nCols
	if n < 1 {
		return 1
	}
	return n
}

// insertSQL builds INSERT INTO t (c1,c2) VALUES ($1,$2),($3,$4),... for
// nRows rows.
func insertSQL(table string, cols []string, nRows int) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = schema.Ident(c)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", schema.Ident(table), strings.Join(quoted, ","))
	arg := 1
	for r := 0; r < nRows; r++ {
		if r > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('(')
		for c := range cols {
			if c > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, "$%d", arg)
			arg++
		}
		b.WriteByte(')')
	}
	return b.String()
}
