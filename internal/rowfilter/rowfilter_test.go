package rowfilter

import (
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"lobbyetl/internal/schema"
)

func scanAll(t *testing.T, data string, opt Options) ([][]string, Stats) {
	t.Helper()
	r := csv.NewReader(strings.NewReader(data))
	r.FieldsPerRecord = -1
	var rows [][]string
	st, err := Scan(r, opt, func(row []string) error {
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	return rows, st
}

func TestDetectDateColumn(t *testing.T) {
	tests := []struct {
		header []string
		want   int
	}{
		{[]string{"reg_id", "effective_date", "country"}, 1},
		{[]string{"created_at", "reg_id"}, 0},
		{[]string{"registered_on"}, 0},
		{[]string{"filed_ts", "x"}, 0},
		{[]string{"reg_id", "country"}, -1},
		{nil, -1},
	}
	for _, tc := range tests {
		cols := make([]schema.Column, len(tc.header))
		for i, h := range tc.header {
			cols[i] = schema.Column{Name: h, Index: i}
		}
		if got := DetectDateColumn(cols); got != tc.want {
			t.Errorf("DetectDateColumn(%v) = %d, want %d", tc.header, got, tc.want)
		}
	}
}

func TestCutoff(t *testing.T) {
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	got := Cutoff(now)
	if want := now.Add(-730 * 24 * time.Hour); !got.Equal(want) {
		t.Errorf("Cutoff = %v, want %v", got, want)
	}
}

func TestScanWindow(t *testing.T) {
	cutoff := time.Date(2024, 8, 24, 0, 0, 0, 0, time.UTC)
	data := "R1,2025-01-15\n" + // inside window
		"R2,2023-01-15\n" + // outside
		"R3,2024-08-24\n" + // exactly at cutoff: included
		"R4,2024/09/01\n" + // slash format, inside
		"R5,12/31/2024\n" // US format, inside

	rows, st := scanAll(t, data, Options{DateIndex: 1, Policy: ExcludeUnparsed, Cutoff: cutoff})
	if st.Total != 5 || st.Included != 4 {
		t.Fatalf("stats = %+v, want Total=5 Included=4", st)
	}
	want := []string{"R1", "R3", "R4", "R5"}
	for i, w := range want {
		if rows[i][0] != w {
			t.Errorf("row %d = %v, want id %s", i, rows[i], w)
		}
	}
}

func TestScanUnparseablePolicies(t *testing.T) {
	cutoff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	data := "R1,2025-01-01\n" +
		"R2,\n" + // empty
		"R3,null\n" + // literal null
		"R4,NULL\n" + // case variant
		"R5,not-a-date\n" +
		"R6,2020-01-01\n" // parseable, out of window

	include, stInc := scanAll(t, data, Options{DateIndex: 1, Policy: IncludeUnparsed, Cutoff: cutoff})
	if stInc.Included != 5 || stInc.Total != 6 {
		t.Errorf("IncludeUnparsed stats = %+v, want Included=5 Total=6", stInc)
	}
	if len(include) != 5 {
		t.Fatalf("IncludeUnparsed yielded %d rows", len(include))
	}

	exclude, stExc := scanAll(t, data, Options{DateIndex: 1, Policy: ExcludeUnparsed, Cutoff: cutoff})
	if stExc.Included != 1 || stExc.Total != 6 {
		t.Errorf("ExcludeUnparsed stats = %+v, want Included=1 Total=6", stExc)
	}
	if len(exclude) != 1 || exclude[0][0] != "R1" {
		t.Errorf("ExcludeUnparsed rows = %v, want only R1", exclude)
	}
}

func TestScanShortRows(t *testing.T) {
	cutoff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	data := "R1,2025-01-01\nR2\n"
	for _, policy := range []Policy{IncludeUnparsed, ExcludeUnparsed} {
		rows, st := scanAll(t, data, Options{DateIndex: 1, Policy: policy, Cutoff: cutoff})
		if len(rows) != 1 || rows[0][0] != "R1" {
			t.Errorf("policy %d: rows = %v, want only R1", policy, rows)
		}
		if st.Total != 2 || st.Included != 1 {
			t.Errorf("policy %d: stats = %+v", policy, st)
		}
	}
}

func TestScanNoDateColumn(t *testing.T) {
	data := "R1,x\nR2,y\nR3,z\n"
	rows, st := scanAll(t, data, Options{DateIndex: -1})
	if len(rows) != 3 || st.Included != 3 || st.Total != 3 {
		t.Errorf("DateIndex=-1 should pass everything: rows=%d stats=%+v", len(rows), st)
	}
}

func TestScanProjection(t *testing.T) {
	cutoff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	// Source layout: id, junk, date. Project onto (date, id); the filter's
	// DateIndex addresses the projected row.
	data := "R1,junk,2025-01-01\nR2,junk,2020-01-01\nR3\n"
	rows, st := scanAll(t, data, Options{
		DateIndex: 0,
		Policy:    ExcludeUnparsed,
		Cutoff:    cutoff,
		Project:   []int{2, 0},
	})
	if st.Total != 3 || st.Included != 1 {
		t.Fatalf("stats = %+v, want Total=3 Included=1", st)
	}
	if len(rows) != 1 || rows[0][0] != "2025-01-01" || rows[0][1] != "R1" {
		t.Errorf("projected row = %v", rows[0])
	}
}

func TestScanYieldErrorAborts(t *testing.T) {
	boom := errors.New("boom")
	r := csv.NewReader(strings.NewReader("R1,a\nR2,b\nR3,c\n"))
	r.FieldsPerRecord = -1
	calls := 0
	st, err := Scan(r, Options{DateIndex: -1}, func(row []string) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want yield error", err)
	}
	if calls != 2 {
		t.Errorf("yield called %d times, want 2", calls)
	}
	if st.Total != 2 {
		t.Errorf("stats = %+v, want Total=2 at abort", st)
	}
}
