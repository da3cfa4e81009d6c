// Package pipeline wires the sequential run: fetch the archive, extract and
// decode the primary CSV, commit to a destination, ensure the staging table,
// and stream the recency-filtered rows in batches. Every step blocks until it
// returns; temporary files are removed on success and on every fatal path.
package pipeline

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"lobbyetl/internal/archive"
	"lobbyetl/internal/config"
	"lobbyetl/internal/fetch"
	"lobbyetl/internal/httpds"
	"lobbyetl/internal/metrics"
	"lobbyetl/internal/rowfilter"
	"lobbyetl/internal/schema"
	"lobbyetl/internal/storage"
	"lobbyetl/internal/textenc"
)

const job = "lobbyetl"

// encodingSampleSize bounds how much of the extracted file the encoding
// detector inspects.
const encodingSampleSize = 512 * 1024

// pickStore is a seam so tests can substitute the destination.
var pickStore = storage.Pick

// Result summarizes a completed run for the operator report.
type Result struct {
	Method   storage.Method
	Columns  []schema.Column
	Loaded   int64
	Stats    rowfilter.Stats
	Duration time.Duration
}

// Run executes the full pipeline. Any returned error is fatal to the process.
func Run(ctx context.Context, cfg *config.Config, out io.Writer) (Result, error) {
	start := time.Now()
	var res Result

	// Fetch.
	fmt.Fprintln(out, "Downloading lobbying data...")
	stepStart := time.Now()
	zipPath, err := fetch.Download(ctx, httpds.NewClient(nil), cfg.SourceURL)
	metrics.RecordStep(job, "fetch", err, time.Since(stepStart))
	if err != nil {
		return res, err
	}
	defer os.Remove(zipPath)

	// Extract.
	stepStart = time.Now()
	csvPath, cols, positions, enc, err := extract(zipPath, cfg)
	metrics.RecordStep(job, "extract", err, time.Since(stepStart))
	if err != nil {
		return res, err
	}
	defer os.Remove(csvPath)
	fmt.Fprintf(out, "Extracted CSV with %d columns (encoding: %s)\n", len(cols), enc.Name)
	res.Columns = cols

	// Locate the date column and fix the filtering policy per variant.
	cutoff := rowfilter.Cutoff(start)
	dateIdx, policy, err := dateColumn(cols, cfg, out)
	if err != nil {
		return res, err
	}
	if dateIdx >= 0 {
		fmt.Fprintf(out, "Filtering to registrations since %s\n", cutoff.Format("2006-01-02"))
	}

	// Commit to a destination.
	stepStart = time.Now()
	store, method, err := pickStore(ctx, storage.PickConfig{
		Mode:        storage.Mode(cfg.Method),
		LocalDSN:    cfg.LocalDSN,
		SupabaseURL: cfg.SupabaseURL,
		ServiceKey:  cfg.ServiceKey,
		Table:       cfg.Table,
	})
	metrics.RecordStep(job, "connect", err, time.Since(stepStart))
	if err != nil {
		return res, err
	}
	defer store.Close(ctx)
	res.Method = method
	fmt.Fprintf(out, "Using connection method: %s\n", method)

	if err := store.EnsureTable(ctx, cols); err != nil {
		return res, err
	}

	// Stream filtered rows in batches.
	stepStart = time.Now()
	loaded, stats, err := load(ctx, cfg, store, cols, rowfilter.Options{
		DateIndex: dateIdx,
		Policy:    policy,
		Cutoff:    cutoff,
		Project:   positions,
	}, csvPath, enc)
	metrics.RecordStep(job, "load", err, time.Since(stepStart))
	metrics.RecordRow(job, "scanned", stats.Total)
	metrics.RecordRow(job, "included", stats.Included)
	if err != nil {
		return res, err
	}
	res.Loaded = loaded
	res.Stats = stats
	res.Duration = time.Since(start)

	fmt.Fprintf(out, "Filtered %d rows from %d total rows\n", stats.Included, stats.Total)
	fmt.Fprintf(out, "Loaded %d rows into %s via %s in %s\n",
		loaded, cfg.Table, method, res.Duration.Truncate(time.Millisecond))
	return res, nil
}

// extract locates the target member, materializes it, detects its encoding,
// and derives the destination column descriptors. In fixed-column mode the
// returned positions project each source row onto the configured subset.
func extract(zipPath string, cfg *config.Config) (csvPath string, cols []schema.Column, positions []int, enc textenc.Candidate, err error) {
	members, err := archive.ListMembers(zipPath)
	if err != nil {
		return "", nil, nil, enc, err
	}
	member, err := archive.SelectMember(members, cfg.MemberSubstring)
	if err != nil {
		return "", nil, nil, enc, err
	}
	csvPath, err = archive.ExtractMember(zipPath, member)
	if err != nil {
		return "", nil, nil, enc, err
	}
	fail := func(e error) (string, []schema.Column, []int, textenc.Candidate, error) {
		os.Remove(csvPath)
		return "", nil, nil, enc, e
	}

	sample, err := readSample(csvPath, encodingSampleSize)
	if err != nil {
		return fail(err)
	}
	enc, err = textenc.Detect(sample)
	if err != nil {
		return fail(err)
	}

	header, closeFn, err := readHeader(csvPath, enc)
	if err != nil {
		return fail(err)
	}
	closeFn()

	if len(cfg.Columns) > 0 {
		positions, err = schema.ResolveRequired(header, cfg.Columns)
		if err != nil {
			return fail(err)
		}
		cols = make([]schema.Column, len(cfg.Columns))
		for i, name := range cfg.Columns {
			cols[i] = schema.Column{Name: schema.Normalize(name), Index: i}
		}
		return csvPath, cols, positions, enc, nil
	}
	return csvPath, schema.FromHeader(header), nil, enc, nil
}

// dateColumn resolves the filter's date column index within the (projected)
// row, along with the inclusion policy for that variant.
func dateColumn(cols []schema.Column, cfg *config.Config, out io.Writer) (int, rowfilter.Policy, error) {
	if cfg.DateColumn != "" {
		idx := schema.Find(cols, schema.Normalize(cfg.DateColumn))
		if idx < 0 {
			return 0, 0, fmt.Errorf("designated date column %q not among selected columns", cfg.DateColumn)
		}
		return idx, rowfilter.ExcludeUnparsed, nil
	}
	idx := rowfilter.DetectDateColumn(cols)
	if idx < 0 {
		fmt.Fprintln(out, "Warning: no date column found, loading all rows")
	}
	return idx, rowfilter.IncludeUnparsed, nil
}

// load drives the row filter into the batched loader. The parameterized
// insert delivery collects every filtered row before the first insert; the
// other deliveries stream.
func load(ctx context.Context, cfg *config.Config, store storage.Store, cols []schema.Column,
	opts rowfilter.Options, csvPath string, enc textenc.Candidate) (int64, rowfilter.Stats, error) {

	bulk := false
	if cfg.Delivery == config.DeliveryCopy {
		_, bulk = store.(storage.BulkCopier)
	}
	loader, err := storage.NewLoader(store, cols, cfg.EffectiveBatchSize(bulk), bulk)
	if err != nil {
		return 0, rowfilter.Stats{}, err
	}

	r, closeFn, err := openCSV(csvPath, enc)
	if err != nil {
		return 0, rowfilter.Stats{}, err
	}
	defer closeFn()
	if _, err := r.Read(); err != nil { // skip header
		return 0, rowfilter.Stats{}, fmt.Errorf("skip header: %w", err)
	}

	var stats rowfilter.Stats
	if cfg.Delivery == config.DeliveryInsert {
		var rows [][]string
		stats, err = rowfilter.Scan(r, opts, func(row []string) error {
			rows = append(rows, row)
			return nil
		})
		if err != nil {
			return 0, stats, err
		}
		for _, row := range rows {
			if err := loader.Add(ctx, row); err != nil {
				return 0, stats, err
			}
		}
	} else {
		stats, err = rowfilter.Scan(r, opts, func(row []string) error {
			return loader.Add(ctx, row)
		})
		if err != nil {
			return 0, stats, err
		}
	}

	total, err := loader.Finish(ctx)
	return total, stats, err
}

func openCSV(path string, enc textenc.Candidate) (*csv.Reader, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open csv: %w", err)
	}
	r := csv.NewReader(textenc.NewReader(f, enc))
	r.FieldsPerRecord = -1
	return r, func() { f.Close() }, nil
}

// readHeader returns the raw header row with a UTF-8 BOM stripped from the
// first cell.
func readHeader(path string, enc textenc.Candidate) ([]string, func(), error) {
	r, closeFn, err := openCSV(path, enc)
	if err != nil {
		return nil, nil, err
	}
	header, err := r.Read()
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("read csv header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}
	return header, closeFn, nil
}

func readSample(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	buf := make([]byte, n)
	m, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("sample csv: %w", err)
	}
	return buf[:m], nil
}
