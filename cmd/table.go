package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/zcta-crosswalk/internal/crosswalk"
	"github.com/sells-group/zcta-crosswalk/internal/tabfile"
	"github.com/sells-group/zcta-crosswalk/internal/table"
)

// Adapter choices for the table command.
const (
	adapterZCTA     = "zcta"
	adapterZIPs     = "zips"
	adapterCentroid = "centroid"
)

var tableCmd = &cobra.Command{
	Use:   "table <file>",
	Short: "Apply a crosswalk to a column of a CSV or XLSX file",
	Long: `Reads a .csv, .tsv, .txt or .xlsx table and adds result columns:
  --adapter zcta      ZCTA for a ZIP Code column
  --adapter zips      list of ZIP Codes for a ZCTA column
  --adapter centroid  lat and lon of the ZIP Code's ZCTA centroid
Rows that cannot be resolved get an empty cell (or table.missing_text) unless --strict.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		opts, err := tableOptions(cmd)
		if err != nil {
			return err
		}
		adapter, _ := cmd.Flags().GetString("adapter")
		column, _ := cmd.Flags().GetString("column")
		outPath, _ := cmd.Flags().GetString("out")
		outFormat, _ := cmd.Flags().GetString("out-format")

		rec, err := tabfile.Read(ctx, args[0])
		if err != nil {
			return err
		}

		cw, closeFn, err := initCrosswalker(ctx)
		defer closeFn()
		if err != nil {
			return err
		}

		out, rep, err := runAdapter(ctx, cw, adapter, table.FromRecords(rec), column, opts)
		if err != nil {
			return eris.Wrapf(err, "table %s", args[0])
		}
		zap.L().Info("table complete",
			zap.String("file", args[0]),
			zap.String("run_id", rep.RunID),
			zap.String("adapter", rep.Adapter),
			zap.Int("rows", rep.Rows),
			zap.Int("matched", rep.Matched),
			zap.Int("missing", rep.Missing),
			zap.Duration("duration", rep.Duration),
		)

		w := cmd.OutOrStdout()
		if outPath != "" {
			f, err := os.Create(outPath)
			if err != nil {
				return eris.Wrapf(err, "create %s", outPath)
			}
			defer f.Close() //nolint:errcheck
			w = f
		}
		return writeFrame(w, out, tableOutFormat(outFormat, outPath))
	},
}

func init() {
	tableCmd.Flags().String("adapter", adapterZCTA, "zcta, zips or centroid")
	tableCmd.Flags().String("column", "zip", "input column holding ZIP Codes (or ZCTAs for zips)")
	tableCmd.Flags().String("out", "", "output file (default stdout)")
	tableCmd.Flags().String("out-format", "", "csv or json (default from --out extension, else csv)")
	tableCmd.Flags().String("out-column", "", "result column name (zcta and zips adapters)")
	tableCmd.Flags().Bool("keep-coordinates", false, "also emit a coordinates column (centroid adapter)")
	tableCmd.Flags().Bool("normalize-input", false, "rewrite the input ZCTA column in 5-digit form (zips adapter)")
	tableCmd.Flags().Bool("strict", false, "fail on the first row that cannot be resolved")
	tableCmd.Flags().Int("concurrency", 0, "lookup workers (default from config)")
	rootCmd.AddCommand(tableCmd)
}

// tableOptions merges flags over config.
func tableOptions(cmd *cobra.Command) (table.Options, error) {
	v, err := resolveVintage(cmd)
	if err != nil {
		return table.Options{}, err
	}
	opts := table.Options{Vintage: v, Metrics: metrics}
	if cfg != nil {
		opts.Concurrency = cfg.Table.Concurrency
		opts.Strict = cfg.Table.Strict
	}
	if n, _ := cmd.Flags().GetInt("concurrency"); n > 0 {
		opts.Concurrency = n
	}
	if strict, _ := cmd.Flags().GetBool("strict"); strict {
		opts.Strict = true
	}
	opts.OutColumn, _ = cmd.Flags().GetString("out-column")
	opts.KeepCoordinates, _ = cmd.Flags().GetBool("keep-coordinates")
	opts.NormalizeInput, _ = cmd.Flags().GetBool("normalize-input")
	return opts, nil
}

func runAdapter(ctx context.Context, cw *crosswalk.Crosswalker, adapter string, f table.Frame, column string, opts table.Options) (table.Frame, *table.Report, error) {
	switch adapter {
	case adapterZCTA:
		return table.ZIPCrosswalk(ctx, cw, f, column, opts)
	case adapterZIPs:
		return table.ReverseZCTACrosswalk(ctx, cw, f, column, opts)
	case adapterCentroid:
		return table.LatLonCentroids(ctx, cw, f, column, opts)
	default:
		return nil, nil, eris.Errorf("unknown adapter %q (want zcta, zips or centroid)", adapter)
	}
}

func tableOutFormat(format, path string) string {
	if format != "" {
		return format
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return formatJSON
	}
	return "csv"
}

func writeFrame(w io.Writer, f table.Frame, format string) error {
	switch format {
	case "csv":
		return table.WriteCSV(w, f, cfgMissingText())
	case formatJSON:
		return table.WriteJSON(w, f)
	default:
		return eris.Errorf("unsupported table output format %q", format)
	}
}

// cfgMissingText is the CSV cell for a missing value; empty by default.
func cfgMissingText() string {
	if cfg != nil {
		return cfg.Table.MissingText
	}
	return ""
}
