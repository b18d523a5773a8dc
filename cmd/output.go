package main

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	formatText    = "text"
	formatJSON    = "json"
	formatYAML    = "yaml"
	formatGeoJSON = "geojson"
)

// render writes v as json or yaml, or calls text for the text format.
func render(w io.Writer, format string, v any, text func(io.Writer) error) error {
	switch format {
	case formatText, "":
		return text(w)
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return enc.Close()
	default:
		return eris.Errorf("unsupported output format %q", format)
	}
}

// missingText is printed in text output for a nil result.
func missingText() string {
	if cfg != nil && cfg.Table.MissingText != "" {
		return cfg.Table.MissingText
	}
	return "-"
}
