// Package fetcher reads tabular prospect lists from CSV and XLSX files.
package fetcher

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Table is a parsed spreadsheet: one header row plus data rows. Cell values
// are plain strings; empty trailing cells may be absent from a row.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadTable parses path by extension. CSV and XLSX are supported.
func ReadTable(path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(path)
	case ".xlsx":
		return ReadXLSX(path)
	default:
		return nil, eris.Errorf("fetcher: unsupported input format %q", filepath.Ext(path))
	}
}

// ColumnIndex resolves required column names to positions, matching headers
// case-insensitively and ignoring surrounding whitespace.
func (t *Table) ColumnIndex(required ...string) (map[string]int, error) {
	idx := make(map[string]int, len(t.Header))
	for i, h := range t.Header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}

	out := make(map[string]int, len(required))
	for _, name := range required {
		i, ok := idx[strings.ToLower(name)]
		if !ok {
			return nil, eris.Errorf("fetcher: input missing required column %q", name)
		}
		out[name] = i
	}
	return out, nil
}

// Cell returns the value at column i of row, or "" when the row is short.
func Cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
