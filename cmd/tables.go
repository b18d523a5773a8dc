package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/zcta-crosswalk/internal/crosswalk"
	"github.com/sells-group/zcta-crosswalk/internal/refdata"
)

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "Show reference table sizes for each vintage",
	Long:  "Loads every supported vintage from the configured source, validates it, and prints ZIP, ZCTA and centroid counts. ZCTAs without a centroid are reported as orphans.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		cw, closeFn, err := initCrosswalker(ctx)
		defer closeFn()
		if err != nil {
			return err
		}

		stats, err := collectStats(ctx, cw, refdata.Vintages)
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		return render(cmd.OutOrStdout(), format, stats, func(w io.Writer) error {
			return formatStats(w, stats)
		})
	},
}

func init() {
	rootCmd.AddCommand(tablesCmd)
}

func collectStats(ctx context.Context, cw *crosswalk.Crosswalker, vintages []refdata.Vintage) ([]crosswalk.Stats, error) {
	out := make([]crosswalk.Stats, 0, len(vintages))
	for _, v := range vintages {
		s, err := cw.Stats(ctx, v)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// formatStats writes one line per vintage.
func formatStats(out io.Writer, stats []crosswalk.Stats) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "VINTAGE\tSOURCE\tZIPS\tZCTAS\tCENTROIDS\tORPHANS")
	for _, s := range stats {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\n", s.Vintage, s.Source, s.ZIPs, s.ZCTAs, s.Centroids, s.Orphans)
	}
	return w.Flush()
}
