package table

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/zcta-crosswalk/internal/crosswalk"
	"github.com/sells-group/zcta-crosswalk/internal/monitoring"
	"github.com/sells-group/zcta-crosswalk/internal/refdata"
	"github.com/sells-group/zcta-crosswalk/internal/zipcode"
)

// Adapter names, used in reports and metric labels.
const (
	AdapterZIPCrosswalk   = "zip_crosswalk"
	AdapterReverseZCTA    = "reverse_zcta_crosswalk"
	AdapterLatLonCentroid = "latlon_centroids"
)

// Default output column names.
const (
	DefaultZCTAColumn        = "zcta"
	DefaultZIPsColumn        = "zip_codes"
	DefaultLatColumn         = "lat"
	DefaultLonColumn         = "lon"
	DefaultCoordinatesColumn = "coordinates"
)

// ErrColumnNotFound is returned when the input column is absent.
var ErrColumnNotFound = eris.New("table: column not found")

// Lookup is the single-record API the adapters apply. *crosswalk.Crosswalker
// implements it.
type Lookup interface {
	ZCTA(ctx context.Context, zip any, v crosswalk.Vintage) (string, error)
	ZIPs(ctx context.Context, zcta any, v crosswalk.Vintage) ([]string, error)
	Centroid(ctx context.Context, zip any, v crosswalk.Vintage) (refdata.Centroid, error)
}

// Options controls an adapter run. The zero value is non-strict, 2020,
// GOMAXPROCS workers and default column names.
type Options struct {
	Vintage crosswalk.Vintage

	// OutColumn names the result column of ZIPCrosswalk and
	// ReverseZCTACrosswalk.
	OutColumn string
	// LatColumn, LonColumn and CoordinatesColumn name the LatLonCentroids
	// outputs.
	LatColumn         string
	LonColumn         string
	CoordinatesColumn string
	// KeepCoordinates also emits a [lat, lon] column from LatLonCentroids.
	KeepCoordinates bool
	// NormalizeInput rewrites the input column of ReverseZCTACrosswalk in
	// canonical 5-digit form. Values that fail to normalize become nil.
	NormalizeInput bool

	// Strict returns the row error with the lowest index instead of
	// substituting nil.
	Strict      bool
	Concurrency int
	Metrics     *monitoring.Metrics
}

func (o Options) concurrency() int {
	if o.Concurrency > 0 {
		return o.Concurrency
	}
	return runtime.GOMAXPROCS(0)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// RowError is a row-level failure: a FormatError or NotFoundError.
type RowError struct {
	Row   int
	Input any
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d (%v): %v", e.Row, e.Input, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Report summarizes an adapter run. Errors are ordered by row.
type Report struct {
	RunID    string        `json:"run_id"`
	Adapter  string        `json:"adapter"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Rows     int           `json:"rows"`
	Matched  int           `json:"matched"`
	Missing  int           `json:"missing"`
	Errors   []RowError    `json:"-"`
}

// ZIPCrosswalk adds a ZCTA column for the ZIP Codes in column.
func ZIPCrosswalk(ctx context.Context, cw Lookup, f Frame, column string, opts Options) (Frame, *Report, error) {
	results, rep, err := apply(ctx, AdapterZIPCrosswalk, f, column, opts, func(ctx context.Context, v any) (any, error) {
		return cw.ZCTA(ctx, v, opts.Vintage)
	})
	if err != nil {
		return nil, rep, err
	}
	out, err := f.With(orDefault(opts.OutColumn, DefaultZCTAColumn), results)
	return out, rep, err
}

// ReverseZCTACrosswalk adds a column holding the []string of ZIP Codes for
// each ZCTA in column.
func ReverseZCTACrosswalk(ctx context.Context, cw Lookup, f Frame, column string, opts Options) (Frame, *Report, error) {
	results, rep, err := apply(ctx, AdapterReverseZCTA, f, column, opts, func(ctx context.Context, v any) (any, error) {
		return cw.ZIPs(ctx, v, opts.Vintage)
	})
	if err != nil {
		return nil, rep, err
	}
	out, err := f.With(orDefault(opts.OutColumn, DefaultZIPsColumn), results)
	if err != nil || !opts.NormalizeInput {
		return out, rep, err
	}

	in, _ := f.Column(column)
	canon := make([]any, len(in))
	for i, v := range in {
		if code, nErr := zipcode.Normalize(v); nErr == nil {
			canon[i] = code
		}
	}
	out, err = out.With(column, canon)
	return out, rep, err
}

// LatLonCentroids adds latitude and longitude columns for the ZIP Codes in
// column. Both are nil for rows without a centroid.
func LatLonCentroids(ctx context.Context, cw Lookup, f Frame, column string, opts Options) (Frame, *Report, error) {
	results, rep, err := apply(ctx, AdapterLatLonCentroid, f, column, opts, func(ctx context.Context, v any) (any, error) {
		return cw.Centroid(ctx, v, opts.Vintage)
	})
	if err != nil {
		return nil, rep, err
	}

	lat := make([]any, len(results))
	lon := make([]any, len(results))
	coords := make([]any, len(results))
	for i, r := range results {
		if c, ok := r.(refdata.Centroid); ok {
			lat[i], lon[i], coords[i] = c.Lat, c.Lon, c.Pair()
		}
	}

	out := f
	if opts.KeepCoordinates {
		if out, err = out.With(orDefault(opts.CoordinatesColumn, DefaultCoordinatesColumn), coords); err != nil {
			return nil, rep, err
		}
	}
	if out, err = out.With(orDefault(opts.LatColumn, DefaultLatColumn), lat); err != nil {
		return nil, rep, err
	}
	if out, err = out.With(orDefault(opts.LonColumn, DefaultLonColumn), lon); err != nil {
		return nil, rep, err
	}
	return out, rep, nil
}

type lookupFunc func(ctx context.Context, v any) (any, error)

// apply runs fn over every value of column with bounded concurrency. Each
// worker writes only its own slot, so results keep row order. Misses become
// nil; any other error aborts the run.
func apply(ctx context.Context, adapter string, f Frame, column string, opts Options, fn lookupFunc) ([]any, *Report, error) {
	rep := &Report{
		RunID:   uuid.NewString(),
		Adapter: adapter,
		Started: clock.Now(),
		Rows:    f.Len(),
	}
	log := zap.L().With(
		zap.String("component", "table"),
		zap.String("adapter", adapter),
		zap.String("run_id", rep.RunID),
	)

	values, ok := f.Column(column)
	if !ok {
		return nil, rep, eris.Wrapf(ErrColumnNotFound, "table: %s: %q", adapter, column)
	}

	results := make([]any, len(values))
	rowErrs := make([]error, len(values))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.concurrency())
	for i, v := range values {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := fn(gctx, v)
			if err != nil {
				if !crosswalk.IsMiss(err) {
					return eris.Wrapf(err, "table: %s: row %d", adapter, i)
				}
				rowErrs[i] = err
				return nil
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		rep.Duration = clock.Since(rep.Started)
		opts.Metrics.ObserveRows(adapter, monitoring.OutcomeError, len(values))
		return nil, rep, err
	}

	for i, err := range rowErrs {
		if err == nil {
			continue
		}
		rep.Errors = append(rep.Errors, RowError{Row: i, Input: values[i], Err: err})
	}
	rep.Missing = len(rep.Errors)
	rep.Matched = rep.Rows - rep.Missing
	rep.Duration = clock.Since(rep.Started)

	opts.Metrics.ObserveRows(adapter, monitoring.OutcomeHit, rep.Matched)
	opts.Metrics.ObserveRows(adapter, monitoring.OutcomeMiss, rep.Missing)
	opts.Metrics.ObserveDuration(adapter, rep.Duration)

	if opts.Strict && len(rep.Errors) > 0 {
		first := rep.Errors[0]
		return nil, rep, &first
	}

	log.Debug("adapter run complete",
		zap.String("column", column),
		zap.Int("rows", rep.Rows),
		zap.Int("matched", rep.Matched),
		zap.Int("missing", rep.Missing),
		zap.Duration("duration", rep.Duration),
	)
	return results, rep, nil
}
