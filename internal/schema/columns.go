// Package schema derives destination column descriptors from a source CSV
// header and generates the staging-table DDL.
//
// Column names are normalized once per run: lowercased, with every run of
// characters that are not letters or digits collapsed to a single underscore,
// and leading/trailing underscores trimmed. Normalization is idempotent.
package schema

import (
	"fmt"
	"strings"
	"unicode"
)

// Column pairs a normalized destination name with its position in the source
// record. Descriptors are immutable for the duration of one run.
type Column struct {
	Name  string // normalized name, e.g. "reg_id_enr"
	Index int    // 0-based position in the source record
}

// Normalize converts a raw header cell into a destination column name.
func Normalize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	prevUnderscore := false
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			prevUnderscore = false
		default:
			// Underscores, spaces, and punctuation all collapse to one '_'.
			if !prevUnderscore {
				b.WriteRune('_')
				prevUnderscore = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}

// FromHeader builds ordered column descriptors from a raw header row.
func FromHeader(header []string) []Column {
	cols := make([]Column, len(header))
	for i, h := range header {
		cols[i] = Column{Name: Normalize(h), Index: i}
	}
	return cols
}

// Names returns the normalized names of cols, in order.
func Names(cols []Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}

// Find returns the position of the column whose normalized name equals name,
// or -1 when absent.
func Find(cols []Column, name string) int {
	for i, c := range cols {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// previewLimit caps how many header names a resolution error reports.
const previewLimit = 8

// ResolveRequired maps each required source column name to its position in
// header by exact match (after trimming surrounding whitespace). A missing
// column is an error reporting which column was absent and a preview of the
// available headers.
func ResolveRequired(header []string, required []string) ([]int, error) {
	trimmed := make([]string, len(header))
	for i, h := range header {
		trimmed[i] = strings.TrimSpace(h)
	}
	positions := make([]int, len(required))
	for i, want := range required {
		pos := -1
		for j, h := range trimmed {
			if h == strings.TrimSpace(want) {
				pos = j
				break
			}
		}
		if pos < 0 {
			return nil, fmt.Errorf("required column %q not found in header (available: %s)",
				want, headerPreview(trimmed))
		}
		positions[i] = pos
	}
	return positions, nil
}

func headerPreview(header []string) string {
	if len(header) <= previewLimit {
		return strings.Join(header, ", ")
	}
	return strings.Join(header[:previewLimit], ", ") +
		fmt.Sprintf(", ... (%d more)", len(header)-previewLimit)
}
