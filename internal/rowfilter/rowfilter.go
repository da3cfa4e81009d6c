// Package rowfilter restricts data rows to a trailing recency window using a
// designated date column. Two inclusion policies exist for rows whose date
// value is missing or unparseable; the divergence between them matches the
// original per-variant behavior and is deliberately not unified:
//
//   - IncludeUnparsed (heuristic date-column detection): a value matching no
//     known format, including empty and the literal "null", passes through.
//   - ExcludeUnparsed (fixed-column mode): the same values are dropped.
package rowfilter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"lobbyetl/internal/schema"
)

// Policy selects the fate of rows whose date value cannot be parsed.
type Policy int

const (
	IncludeUnparsed Policy = iota
	ExcludeUnparsed
)

// WindowDays is the width of the trailing recency window.
const WindowDays = 730

// dateKeywords drive heuristic date-column detection.
var dateKeywords = []string{"date", "created", "registered", "filed"}

// dateFormats are tried in order; the first successful parse wins.
var dateFormats = []string{"2006-01-02", "2006/01/02", "01/02/2006", "02/01/2006"}

// DetectDateColumn returns the position of the first column whose normalized
// name contains a recognized date keyword, or -1 when none matches.
func DetectDateColumn(cols []schema.Column) int {
	for i, c := range cols {
		for _, kw := range dateKeywords {
			if strings.Contains(c.Name, kw) {
				return i
			}
		}
	}
	return -1
}

// Cutoff returns the fixed inclusion threshold for a run starting at now.
func Cutoff(now time.Time) time.Time {
	return now.Add(-WindowDays * 24 * time.Hour)
}

// Options configures one filtering pass.
type Options struct {
	// DateIndex is the position of the date column in the (projected) row.
	// A negative value disables filtering: every row is yielded.
	DateIndex int

	// Policy applies when the date value is missing or unparseable.
	Policy Policy

	// Cutoff is the fixed inclusion threshold; rows with a parsed date at or
	// after it are included.
	Cutoff time.Time

	// Project, when non-nil, lists the source positions to keep, in target
	// order. Projection happens before the date test; positions beyond the
	// end of a short row become empty strings.
	Project []int
}

// Stats reports the outcome of a pass. Included + excluded = Total.
type Stats struct {
	Included int64
	Total    int64
}

// Scan reads data rows from r (the header must already be consumed), applies
// opt, and calls yield for each included row. The pass is single and forward
// only; restarting requires reopening the source. A yield error aborts the
// scan immediately.
func Scan(r *csv.Reader, opt Options, yield func(row []string) error) (Stats, error) {
	var st Stats
	for {
		row, err := r.Read()
		if err == io.EOF {
			return st, nil
		}
		if err != nil {
			return st, fmt.Errorf("read row: %w", err)
		}
		st.Total++

		if opt.Project != nil {
			row = project(row, opt.Project)
		}

		if !opt.include(row) {
			continue
		}
		st.Included++
		if err := yield(row); err != nil {
			return st, err
		}
	}
}

func (opt Options) include(row []string) bool {
	if opt.DateIndex < 0 {
		return true
	}
	if len(row) <= opt.DateIndex {
		// Short row: the date cannot be inspected at all. Neither variant
		// yields these.
		return false
	}
	val := row[opt.DateIndex]

	if opt.Policy == ExcludeUnparsed {
		if val == "" || strings.EqualFold(val, "null") {
			return false
		}
	}

	for _, layout := range dateFormats {
		if d, err := time.Parse(layout, val); err == nil {
			return !d.Before(opt.Cutoff)
		}
	}
	// No format matched.
	return opt.Policy == IncludeUnparsed
}

func project(row []string, positions []int) []string {
	out := make([]string, len(positions))
	for i, p := range positions {
		if p >= 0 && p < len(row) {
			out[i] = row[p]
		}
	}
	return out
}
