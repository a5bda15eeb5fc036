package db

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertSQL builds an INSERT ... ON CONFLICT (key) DO UPDATE statement for a
// single row. Only the listed columns are inserted and updated, so columns a
// caller omits are never touched on an existing row. Placeholders are
// $1..$n in column order, with the key column first.
func UpsertSQL(table, key string, cols []string) (string, error) {
	if table == "" || key == "" {
		return "", eris.New("db: upsert: table and key required")
	}

	all := append([]string{key}, cols...)
	placeholders := make([]string, len(all))
	for i := range all {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	var setClauses []string
	for _, col := range cols {
		setClauses = append(setClauses, fmt.Sprintf("%s = EXCLUDED.%s",
			pgx.Identifier{col}.Sanitize(), pgx.Identifier{col}.Sanitize()))
	}
	if len(setClauses) == 0 {
		return "", eris.Errorf("db: upsert: no columns to update for %s", table)
	}

	sql := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		sanitizeTable(table),
		quoteAndJoin(all),
		strings.Join(placeholders, ", "),
		pgx.Identifier{key}.Sanitize(),
		strings.Join(setClauses, ", "),
	)
	return sql, nil
}

// sanitizeTable handles schema-qualified table names like "outreach.prospect_cache".
func sanitizeTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

// quoteAndJoin quotes each column name and joins with commas.
func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
