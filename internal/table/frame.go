// Package table applies crosswalk lookups element-wise over a column of a
// tabular dataset and attaches the results as new columns.
package table

import (
	"slices"

	"github.com/rotisserie/eris"

	"github.com/sells-group/zcta-crosswalk/internal/tabfile"
)

// Frame is the column-oriented view the adapters need. With must return a
// new Frame and leave the receiver untouched.
type Frame interface {
	Len() int
	Columns() []string
	Column(name string) ([]any, bool)
	With(name string, values []any) (Frame, error)
}

// DataFrame is an in-memory Frame. Column slices are shared between frames
// derived with With and must not be modified.
type DataFrame struct {
	cols []string
	data map[string][]any
	n    int
}

// NewDataFrame returns an empty frame with n rows and no columns.
func NewDataFrame(n int) *DataFrame {
	return &DataFrame{data: make(map[string][]any), n: n}
}

// FromRecords builds a frame of string cells. Short rows are padded with "".
func FromRecords(rec *tabfile.Records) *DataFrame {
	df := NewDataFrame(len(rec.Rows))
	for i, name := range rec.Header {
		col := make([]any, len(rec.Rows))
		for r, row := range rec.Rows {
			col[r] = tabfile.Cell(row, i)
		}
		if _, dup := df.data[name]; !dup {
			df.cols = append(df.cols, name)
		}
		df.data[name] = col
	}
	return df
}

// Len returns the row count.
func (f *DataFrame) Len() int { return f.n }

// Columns returns the column names in order.
func (f *DataFrame) Columns() []string { return slices.Clone(f.cols) }

// Column returns the values of a column.
func (f *DataFrame) Column(name string) ([]any, bool) {
	col, ok := f.data[name]
	return col, ok
}

// With returns a shallow copy of f with name set to values. An existing
// column keeps its position.
func (f *DataFrame) With(name string, values []any) (Frame, error) {
	if len(values) != f.n {
		return nil, eris.Errorf("table: column %q has %d values, frame has %d rows", name, len(values), f.n)
	}
	out := &DataFrame{
		cols: slices.Clone(f.cols),
		data: make(map[string][]any, len(f.data)+1),
		n:    f.n,
	}
	for k, v := range f.data {
		out.data[k] = v
	}
	if _, ok := out.data[name]; !ok {
		out.cols = append(out.cols, name)
	}
	out.data[name] = values
	return out, nil
}
