package schema

import (
	"fmt"
	"strings"
)

// Well-known attributes that get secondary indexes when present in the
// column set.
const (
	RegIDColumn   = "reg_id_enr"
	CountryColumn = "country_pays"
)

// CreateTableSQL returns the full drop-and-recreate DDL for the staging
// table: every column is TEXT, plus secondary indexes on the registration
// identifier and country attributes when those columns exist.
func CreateTableSQL(table string, cols []Column) string {
	var b strings.Builder
	fmt.Fprintf(&b, "DROP TABLE IF EXISTS %s;\n", Ident(table))
	b.WriteString(createStatement(table, cols))
	b.WriteString(indexStatements(table, cols))
	return b.String()
}

// ManualCreateSQL returns the statement an operator must run by hand when the
// destination cannot be created programmatically. It deliberately omits the
// DROP so a rerun cannot destroy data outside the loader's control.
func ManualCreateSQL(table string, cols []Column) string {
	return createStatement(table, cols) + indexStatements(table, cols)
}

func createStatement(table string, cols []Column) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = fmt.Sprintf("    %s TEXT", Ident(c.Name))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n%s\n);\n", Ident(table), strings.Join(defs, ",\n"))
}

func indexStatements(table string, cols []Column) string {
	var b strings.Builder
	if Find(cols, RegIDColumn) >= 0 {
		fmt.Fprintf(&b, "CREATE INDEX IF NOT EXISTS %s ON %s(%s);\n",
			Ident("idx_"+table+"_reg_id"), Ident(table), Ident(RegIDColumn))
	}
	if Find(cols, CountryColumn) >= 0 {
		fmt.Fprintf(&b, "CREATE INDEX IF NOT EXISTS %s ON %s(%s);\n",
			Ident("idx_"+table+"_country"), Ident(table), Ident(CountryColumn))
	}
	return b.String()
}

// Ident quotes a single identifier for Postgres.
func Ident(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
