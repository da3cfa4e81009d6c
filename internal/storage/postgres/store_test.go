package postgres

import (
	"strings"
	"testing"
)

func TestInsertSQL(t *testing.T) {
	sql := insertSQL("lobby_staging", []string{"reg_id", "effective_date"}, 2)
	want := `INSERT INTO "lobby_staging" ("reg_id","effective_date") VALUES ($1,$2),($3,$4)`
	if sql != want {
		t.Errorf("insertSQL =\n%s\nwant\n%s", sql, want)
	}
}

func TestInsertSQLSingleRow(t *testing.T) {
	sql := insertSQL("t", []string{"a"}, 1)
	if sql != `INSERT INTO "t" ("a") VALUES ($1)` {
		t.Errorf("insertSQL = %s", sql)
	}
}

func TestMaxRowsPerInsert(t *testing.T) {
	tests := []struct {
		nCols int
		want  int
	}{
		{2, 32767},
		{66, 992},
		{65535, 1},
		{70000, 1}, // wider than the limit still inserts one row at a time
		{0, 1},
	}
	for _, tc := range tests {
		if got := maxRowsPerInsert(tc.nCols); got != tc.want {
			t.Errorf("maxRowsPerInsert(%d) = %d, want %d", tc.nCols, got, tc.want)
		}
	}
	// The cap keeps every generated statement within the bind-parameter limit.
	for _, nCols := range []int{1, 2, 66, 500} {
		if maxRowsPerInsert(nCols)*nCols > maxBindParams {
			t.Errorf("cap for %d columns exceeds %d parameters", nCols, maxBindParams)
		}
	}
}

func TestInsertSQLPlaceholderCount(t *testing.T) {
	cols := []string{"a", "b", "c"}
	sql := insertSQL("t", cols, 1000)
	if got := strings.Count(sql, "$"); got != 3000 {
		t.Errorf("placeholder count = %d, want 3000", got)
	}
	if !strings.Contains(sql, "$3000)") {
		t.Errorf("last placeholder should be $3000:\n...%s", sql[len(sql)-40:])
	}
}
