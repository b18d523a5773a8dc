package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/zcta-crosswalk/internal/crosswalk"
	"github.com/sells-group/zcta-crosswalk/internal/refdata"
	"github.com/sells-group/zcta-crosswalk/internal/table"
)

var zctaCmd = &cobra.Command{
	Use:   "zcta <zip>...",
	Short: "Look up the ZCTA of each ZIP Code",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLookup(cmd, args, func(ctx context.Context, cw *crosswalk.Crosswalker, v crosswalk.Vintage, strict bool) error {
			res, err := lookupZCTAs(ctx, cw, v, args, strict)
			if err != nil {
				return err
			}
			format, _ := cmd.Flags().GetString("format")
			return render(cmd.OutOrStdout(), format, res, func(w io.Writer) error {
				return writeZCTAText(w, res)
			})
		})
	},
}

var zipsCmd = &cobra.Command{
	Use:   "zips <zcta>...",
	Short: "List the ZIP Codes inside each ZCTA",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLookup(cmd, args, func(ctx context.Context, cw *crosswalk.Crosswalker, v crosswalk.Vintage, strict bool) error {
			res, err := lookupZIPs(ctx, cw, v, args, strict)
			if err != nil {
				return err
			}
			format, _ := cmd.Flags().GetString("format")
			return render(cmd.OutOrStdout(), format, res, func(w io.Writer) error {
				return writeZIPsText(w, res)
			})
		})
	},
}

var centroidCmd = &cobra.Command{
	Use:   "centroid <zip>...",
	Short: "Resolve the ZCTA centroid of each ZIP Code",
	Long:  "Resolves each ZIP Code to its ZCTA and prints the ZCTA centroid as latitude and longitude. With --zcta the arguments are ZCTAs. Supports -o geojson.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		byZCTA, _ := cmd.Flags().GetBool("zcta")
		return runLookup(cmd, args, func(ctx context.Context, cw *crosswalk.Crosswalker, v crosswalk.Vintage, strict bool) error {
			res, err := lookupCentroids(ctx, cw, v, args, byZCTA, strict)
			if err != nil {
				return err
			}
			format, _ := cmd.Flags().GetString("format")
			if format == formatGeoJSON {
				return writeGeoJSON(cmd.OutOrStdout(), res, v)
			}
			return render(cmd.OutOrStdout(), format, res, func(w io.Writer) error {
				return writeCentroidText(w, res)
			})
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{zctaCmd, zipsCmd, centroidCmd} {
		c.Flags().Bool("strict", false, "fail on the first code that cannot be resolved")
		rootCmd.AddCommand(c)
	}
	centroidCmd.Flags().Bool("zcta", false, "treat arguments as ZCTAs instead of ZIP Codes")
}

type lookupFunc func(ctx context.Context, cw *crosswalk.Crosswalker, v crosswalk.Vintage, strict bool) error

// runLookup sets up the crosswalker and vintage shared by the lookup
// commands.
func runLookup(cmd *cobra.Command, _ []string, fn lookupFunc) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	v, err := resolveVintage(cmd)
	if err != nil {
		return err
	}
	cw, closeFn, err := initCrosswalker(ctx)
	defer closeFn()
	if err != nil {
		return err
	}

	strict, _ := cmd.Flags().GetBool("strict")
	if !strict && cfg != nil {
		strict = cfg.Table.Strict
	}
	return fn(ctx, cw, v, strict)
}

type zctaResult struct {
	Input string  `json:"input" yaml:"input"`
	ZCTA  *string `json:"zcta" yaml:"zcta"`
	Error string  `json:"error,omitempty" yaml:"error,omitempty"`
}

type zipsResult struct {
	Input string   `json:"input" yaml:"input"`
	ZIPs  []string `json:"zips" yaml:"zips"`
	Error string   `json:"error,omitempty" yaml:"error,omitempty"`
}

type centroidResult struct {
	Input string   `json:"input" yaml:"input"`
	ZCTA  *string  `json:"zcta" yaml:"zcta"`
	Lat   *float64 `json:"lat" yaml:"lat"`
	Lon   *float64 `json:"lon" yaml:"lon"`
	Error string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// rowFailure decides what a lookup error means for one argument: misses are
// recorded unless strict, anything else aborts.
func rowFailure(input string, err error, strict bool) (string, error) {
	if !crosswalk.IsMiss(err) || strict {
		return "", eris.Wrapf(err, "lookup %q", input)
	}
	return err.Error(), nil
}

func lookupZCTAs(ctx context.Context, cw *crosswalk.Crosswalker, v crosswalk.Vintage, args []string, strict bool) ([]zctaResult, error) {
	out := make([]zctaResult, 0, len(args))
	for _, arg := range args {
		r := zctaResult{Input: arg}
		zcta, err := cw.ZCTA(ctx, arg, v)
		if err != nil {
			if r.Error, err = rowFailure(arg, err, strict); err != nil {
				return nil, err
			}
		} else {
			r.ZCTA = &zcta
		}
		out = append(out, r)
	}
	return out, nil
}

func lookupZIPs(ctx context.Context, cw *crosswalk.Crosswalker, v crosswalk.Vintage, args []string, strict bool) ([]zipsResult, error) {
	out := make([]zipsResult, 0, len(args))
	for _, arg := range args {
		r := zipsResult{Input: arg}
		zips, err := cw.ZIPs(ctx, arg, v)
		if err != nil {
			if r.Error, err = rowFailure(arg, err, strict); err != nil {
				return nil, err
			}
		} else {
			r.ZIPs = zips
		}
		out = append(out, r)
	}
	return out, nil
}

func lookupCentroids(ctx context.Context, cw *crosswalk.Crosswalker, v crosswalk.Vintage, args []string, byZCTA, strict bool) ([]centroidResult, error) {
	out := make([]centroidResult, 0, len(args))
	for _, arg := range args {
		r := centroidResult{Input: arg}

		var pt refdata.Centroid
		var err error
		if byZCTA {
			pt, err = cw.ZCTACentroid(ctx, arg, v)
		} else {
			var zcta string
			zcta, pt, err = cw.Locate(ctx, arg, v)
			if zcta != "" {
				r.ZCTA = &zcta
			}
		}
		if err != nil {
			if r.Error, err = rowFailure(arg, err, strict); err != nil {
				return nil, err
			}
		} else {
			r.Lat, r.Lon = &pt.Lat, &pt.Lon
		}
		out = append(out, r)
	}
	return out, nil
}

func writeZCTAText(out io.Writer, res []zctaResult) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "INPUT\tZCTA")
	for _, r := range res {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", r.Input, strOrMissing(r.ZCTA))
	}
	return w.Flush()
}

func writeZIPsText(out io.Writer, res []zipsResult) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "INPUT\tZIPS")
	for _, r := range res {
		zips := missingText()
		switch {
		case r.ZIPs == nil:
		case len(r.ZIPs) == 0:
			zips = table.EmptyList
		default:
			zips = strings.Join(r.ZIPs, ",")
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\n", r.Input, zips)
	}
	return w.Flush()
}

func writeCentroidText(out io.Writer, res []centroidResult) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "INPUT\tZCTA\tLAT\tLON")
	for _, r := range res {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Input, strOrMissing(r.ZCTA), floatOrMissing(r.Lat), floatOrMissing(r.Lon))
	}
	return w.Flush()
}

// writeGeoJSON writes resolved centroids as a FeatureCollection of points.
// Unresolved inputs have no geometry and are left out.
func writeGeoJSON(w io.Writer, res []centroidResult, v crosswalk.Vintage) error {
	fc := &geojson.FeatureCollection{Features: []*geojson.Feature{}}
	for _, r := range res {
		if r.Lat == nil {
			continue
		}
		props := map[string]interface{}{
			"input":   r.Input,
			"vintage": int(v.OrDefault()),
		}
		if r.ZCTA != nil {
			props["zcta"] = *r.ZCTA
		}
		pt := refdata.Centroid{Lat: *r.Lat, Lon: *r.Lon}.Point()
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         r.Input,
			Geometry:   pt,
			Properties: props,
		})
	}

	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return eris.Wrap(err, "encode geojson")
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func strOrMissing(s *string) string {
	if s == nil {
		return missingText()
	}
	return *s
}

func floatOrMissing(f *float64) string {
	if f == nil {
		return missingText()
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
