// Package rest implements the staging-table destination over the Supabase
// REST data API. Tables cannot be created through this API: EnsureTable
// probes existence with a filtered read and, when the table is absent, prints
// the exact creation statement for manual execution and fails.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"lobbyetl/internal/httpds"
	"lobbyetl/internal/schema"
)

// ErrManualTable signals that the staging table must be created by hand
// before the loader can run.
var ErrManualTable = errors.New("staging table must be created manually")

const (
	probeTimeout  = 10 * time.Second
	insertTimeout = 60 * time.Second
)

// Store is a REST-backed destination.
type Store struct {
	client  *httpds.Client
	restURL string // {base}/rest/v1
	table   string
	out     io.Writer // operator-facing output (manual DDL)
}

// New builds a Store for the Supabase endpoint at baseURL, authenticating
// every request with serviceKey as both bearer credential and API key.
func New(baseURL, serviceKey, table string) *Store {
	hdr := http.Header{}
	hdr.Set("apikey", serviceKey)
	hdr.Set("Authorization", "Bearer "+serviceKey)
	hdr.Set("Content-Type", "application/json")
	hdr.Set("Prefer", "return=minimal")
	return &Store{
		client:  httpds.NewClient(hdr),
		restURL: strings.TrimRight(baseURL, "/") + "/rest/v1",
		table:   table,
		out:     os.Stdout,
	}
}

// SetOutput redirects operator-facing output (used by tests).
func (s *Store) SetOutput(w io.Writer) { s.out = w }

// Probe checks that the REST API answers at all.
func (s *Store) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	resp, err := s.client.Get(ctx, s.restURL+"/")
	if err != nil {
		return fmt.Errorf("rest probe: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rest probe: status %d", resp.StatusCode)
	}
	return nil
}

// TableExists reports whether the staging table answers a filtered read.
func (s *Store) TableExists(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	resp, err := s.client.Get(ctx, fmt.Sprintf("%s/%s?limit=1", s.restURL, s.table))
	if err != nil {
		return false, fmt.Errorf("table probe: %w", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

// EnsureTable verifies the staging table exists. When it does not, the exact
// creation statement is printed for manual execution and ErrManualTable is
// returned; nothing is loaded.
func (s *Store) EnsureTable(ctx context.Context, cols []schema.Column) error {
	exists, err := s.TableExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		fmt.Fprintf(s.out, "table %s already exists\n", s.table)
		return nil
	}
	fmt.Fprintf(s.out, "table %s does not exist\n", s.table)
	fmt.Fprintf(s.out, "\nRun this SQL against the destination, then rerun:\n")
	fmt.Fprintln(s.out, strings.Repeat("=", 60))
	fmt.Fprint(s.out, schema.ManualCreateSQL(s.table, cols))
	fmt.Fprintln(s.out, strings.Repeat("=", 60))
	return ErrManualTable
}

// InsertBatch posts one batch as a JSON array of column-name → value objects.
// Any request error or non-2xx status is fatal to the run.
func (s *Store) InsertBatch(ctx context.Context, cols []schema.Column, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	recs := make([]map[string]string, len(rows))
	for i, r := range rows {
		rec := make(map[string]string, len(cols))
		for j, c := range cols {
			if j < len(r) {
				rec[c.Name] = r[j]
			} else {
				rec[c.Name] = ""
			}
		}
		recs[i] = rec
	}
	body, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, insertTimeout)
	defer cancel()
	resp, err := s.client.Post(ctx, s.restURL+"/"+s.table, body, nil)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return nil
	}
	return fmt.Errorf("insert batch: status %d", resp.StatusCode)
}

// Close is a no-op; the REST destination holds no connection.
func (s *Store) Close(ctx context.Context) error { return nil }
