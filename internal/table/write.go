package table

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// ListSeparator joins list cells in CSV output.
const ListSeparator = ";"

// EmptyList is written for a list cell with no elements, such as a ZCTA no
// ZIP maps to, so it never reads the same as a missing value.
const EmptyList = "[]"

// Records returns f as row-major string cells. nil cells become missing.
func Records(f Frame, missing string) [][]string {
	cols := f.Columns()
	data := make([][]any, len(cols))
	for i, c := range cols {
		data[i], _ = f.Column(c)
	}

	rows := make([][]string, f.Len())
	for r := range rows {
		row := make([]string, len(cols))
		for c := range cols {
			row[c] = FormatCell(data[c][r], missing)
		}
		rows[r] = row
	}
	return rows
}

// FormatCell renders one value for text output.
func FormatCell(v any, missing string) string {
	switch x := v.(type) {
	case nil:
		return missing
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case []string:
		if len(x) == 0 {
			return EmptyList
		}
		return strings.Join(x, ListSeparator)
	case [2]float64:
		return FormatCell(x[0], missing) + ListSeparator + FormatCell(x[1], missing)
	default:
		return fmt.Sprint(x)
	}
}

// WriteCSV writes f with a header row.
func WriteCSV(w io.Writer, f Frame, missing string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.Columns()); err != nil {
		return eris.Wrap(err, "table: write csv header")
	}
	if err := cw.WriteAll(Records(f, missing)); err != nil {
		return eris.Wrap(err, "table: write csv")
	}
	return nil
}

// WriteJSON writes f as a JSON array of objects. Missing values are null and
// list cells are arrays.
func WriteJSON(w io.Writer, f Frame) error {
	cols := f.Columns()
	out := make([]map[string]any, f.Len())
	for r := range out {
		out[r] = make(map[string]any, len(cols))
	}
	for _, c := range cols {
		vals, _ := f.Column(c)
		for r, v := range vals {
			out[r][c] = v
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return eris.Wrap(err, "table: write json")
	}
	return nil
}
