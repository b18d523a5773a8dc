// Package tabfile reads delimited text and XLSX tables into header + rows.
package tabfile

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Extensions recognized by Read, in lookup preference order.
var Extensions = []string{".csv", ".tsv", ".txt", ".xlsx"}

// Records is a table of string cells with a header row.
type Records struct {
	Header []string
	Rows   [][]string
}

// Index returns the position of the first header matching any of the
// candidate names (case-insensitive, surrounding whitespace ignored), or -1.
func (r *Records) Index(candidates ...string) int {
	for _, c := range candidates {
		for i, h := range r.Header {
			if strings.EqualFold(strings.TrimSpace(h), c) {
				return i
			}
		}
	}
	return -1
}

// Cell returns row[i], or "" when the row is short.
func Cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// Read loads a table file, choosing the parser by extension: .csv is comma
// delimited, .tsv and .txt are tab delimited (Census gazetteer files), .xlsx
// is read with the first sheet's first row as header.
func Read(ctx context.Context, path string) (*Records, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".xlsx":
		return ReadXLSX(path, XLSXOptions{})
	case ".csv", ".tsv", ".txt":
	default:
		return nil, eris.Errorf("tabfile: unsupported extension %q", ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "tabfile: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	opts := CSVOptions{TrimSpace: true, LazyQuotes: true}
	if ext != ".csv" {
		opts.Delimiter = '\t'
	}
	rec, err := ReadCSV(ctx, f, opts)
	if err != nil {
		return nil, eris.Wrapf(err, "tabfile: read %s", path)
	}
	return rec, nil
}
