// Package crosswalk converts ZIP Codes to Census ZCTAs and back, and resolves
// ZCTA centroids, against per-vintage reference tables.
package crosswalk

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zcta-crosswalk/internal/monitoring"
	"github.com/sells-group/zcta-crosswalk/internal/refdata"
	"github.com/sells-group/zcta-crosswalk/internal/resilience"
	"github.com/sells-group/zcta-crosswalk/internal/zipcode"
)

// Vintage selects the census geography. The zero value means 2020.
type Vintage = refdata.Vintage

// Supported vintages.
const (
	V2010 = refdata.V2010
	V2020 = refdata.V2020
)

// Option configures a Crosswalker.
type Option func(*Crosswalker)

// WithFallbackToInput makes unknown codes resolve to themselves instead of
// returning a NotFoundError: ZCTA returns the normalized ZIP and ZIPs returns
// a one-element list.
func WithFallbackToInput() Option {
	return func(c *Crosswalker) { c.fallback = true }
}

// WithMetrics records lookup outcomes on m.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(c *Crosswalker) { c.metrics = m }
}

// WithRetry retries table loads that fail with a transient error. Without
// it a load is tried once.
func WithRetry(p resilience.Policy) Option {
	return func(c *Crosswalker) { c.retry = p }
}

// Crosswalker answers lookups against tables loaded lazily from a Source.
// Each vintage is loaded at most once; a failed load is remembered and
// returned on every later call. Safe for concurrent use.
type Crosswalker struct {
	src      refdata.Source
	fallback bool
	metrics  *monitoring.Metrics
	retry    resilience.Policy
	states   map[refdata.Vintage]*vintageState
}

type vintageState struct {
	once   sync.Once
	tables *refdata.Tables
	err    error

	revOnce sync.Once
	reverse map[string][]string
}

// New returns a Crosswalker reading from src.
func New(src refdata.Source, opts ...Option) *Crosswalker {
	c := &Crosswalker{
		src:    src,
		states: make(map[refdata.Vintage]*vintageState, len(refdata.Vintages)),
	}
	for _, v := range refdata.Vintages {
		c.states[v] = &vintageState{}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FromTables returns a Crosswalker over tables already in memory.
func FromTables(tables []*refdata.Tables, opts ...Option) (*Crosswalker, error) {
	src := staticSource{}
	for _, t := range tables {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		src[t.Vintage] = t
	}
	return New(src, opts...), nil
}

// Source returns the reference data source.
func (c *Crosswalker) Source() refdata.Source { return c.src }

// Tables returns the reference tables for v, loading them on first use.
func (c *Crosswalker) Tables(ctx context.Context, v Vintage) (*refdata.Tables, error) {
	st, v, err := c.state(v)
	if err != nil {
		return nil, err
	}
	// The result is shared by every caller, so one caller's cancellation
	// must not become the vintage's load error.
	st.once.Do(func() {
		st.tables, st.err = c.load(context.WithoutCancel(ctx), v)
	})
	return st.tables, st.err
}

func (c *Crosswalker) state(v Vintage) (*vintageState, Vintage, error) {
	v = v.OrDefault()
	st, ok := c.states[v]
	if !ok {
		return nil, v, eris.Wrapf(refdata.ErrUnsupportedVintage, "crosswalk: vintage %d", int(v))
	}
	return st, v, nil
}

func (c *Crosswalker) load(ctx context.Context, v Vintage) (*refdata.Tables, error) {
	log := zap.L().With(zap.String("component", "crosswalk"), zap.String("source", c.src.Name()), zap.Stringer("vintage", v))

	t, err := resilience.Do(ctx, c.retry, "load "+v.String()+" tables", func(ctx context.Context) (*refdata.Tables, error) {
		return c.src.Load(ctx, v)
	})
	if err == nil {
		err = t.Validate()
	}
	c.metrics.ObserveTableLoad(c.src.Name(), int(v), err)
	if err != nil {
		return nil, eris.Wrapf(err, "crosswalk: load %s tables", v)
	}

	if orphans := t.Orphans(); len(orphans) > 0 {
		log.Warn("crosswalk ZCTAs without centroids", zap.Int("count", len(orphans)), zap.Strings("zctas", head(orphans, 10)))
	}
	log.Info("reference tables loaded", zap.Int("zips", len(t.Crosswalk)), zap.Int("centroids", len(t.Centroids)))
	return t, nil
}

func (c *Crosswalker) reverseIndex(ctx context.Context, v Vintage) (map[string][]string, *refdata.Tables, error) {
	t, err := c.Tables(ctx, v)
	if err != nil {
		return nil, nil, err
	}
	st, _, _ := c.state(v)
	st.revOnce.Do(func() {
		st.reverse = invert(t.Crosswalk)
		c.metrics.ObserveReverseBuild(int(t.Vintage))
		zap.L().Debug("reverse index built",
			zap.String("component", "crosswalk"),
			zap.Stringer("vintage", t.Vintage),
			zap.Int("zctas", len(st.reverse)),
		)
	})
	return st.reverse, t, nil
}

// invert builds ZCTA → sorted ZIPs.
func invert(fwd map[string]string) map[string][]string {
	rev := make(map[string][]string, len(fwd))
	for zip, zcta := range fwd {
		rev[zcta] = append(rev[zcta], zip)
	}
	for _, zips := range rev {
		sort.Strings(zips)
	}
	return rev
}

// ZCTA returns the ZCTA for a ZIP Code. zip may be any value
// zipcode.Normalize accepts.
func (c *Crosswalker) ZCTA(ctx context.Context, zip any, v Vintage) (string, error) {
	code, err := zipcode.Normalize(zip)
	if err != nil {
		c.metrics.ObserveLookup(monitoring.OpForward, int(v.OrDefault()), monitoring.OutcomeInvalid)
		return "", err
	}
	t, err := c.Tables(ctx, v)
	if err != nil {
		return "", err
	}

	if zcta, ok := t.Crosswalk[code]; ok {
		c.metrics.ObserveLookup(monitoring.OpForward, int(t.Vintage), monitoring.OutcomeHit)
		return zcta, nil
	}
	if c.fallback {
		c.metrics.ObserveLookup(monitoring.OpForward, int(t.Vintage), monitoring.OutcomeFallback)
		zap.L().Debug("zip not in records, returning input", zap.String("zip", code), zap.Stringer("vintage", t.Vintage))
		return code, nil
	}
	c.metrics.ObserveLookup(monitoring.OpForward, int(t.Vintage), monitoring.OutcomeMiss)
	zap.L().Debug("zip not in records", zap.String("zip", code), zap.Stringer("vintage", t.Vintage))
	return "", &NotFoundError{Code: code, Kind: KindZIP, Vintage: t.Vintage}
}

// ZIPs returns every ZIP Code whose ZCTA is zcta, sorted. A ZCTA in the
// centroid table that no ZIP maps to yields an empty, non-nil slice. The
// returned slice is owned by the caller.
func (c *Crosswalker) ZIPs(ctx context.Context, zcta any, v Vintage) ([]string, error) {
	code, err := zipcode.Normalize(zcta)
	if err != nil {
		c.metrics.ObserveLookup(monitoring.OpReverse, int(v.OrDefault()), monitoring.OutcomeInvalid)
		return nil, err
	}
	rev, t, err := c.reverseIndex(ctx, v)
	if err != nil {
		return nil, err
	}

	if _, ok := t.Centroids[code]; ok {
		c.metrics.ObserveLookup(monitoring.OpReverse, int(t.Vintage), monitoring.OutcomeHit)
		return append([]string{}, rev[code]...), nil
	}
	if c.fallback {
		c.metrics.ObserveLookup(monitoring.OpReverse, int(t.Vintage), monitoring.OutcomeFallback)
		zap.L().Debug("zcta not in records, returning input", zap.String("zcta", code), zap.Stringer("vintage", t.Vintage))
		return []string{code}, nil
	}

	c.metrics.ObserveLookup(monitoring.OpReverse, int(t.Vintage), monitoring.OutcomeMiss)
	nf := &NotFoundError{Code: code, Kind: KindZCTA, Vintage: t.Vintage}
	if _, mapped := rev[code]; mapped {
		nf.Err = &DataConsistencyError{ZCTA: code, Vintage: t.Vintage, Table: "centroid"}
		zap.L().Warn("zcta mapped by crosswalk but has no centroid", zap.String("zcta", code), zap.Stringer("vintage", t.Vintage))
	} else {
		zap.L().Debug("zcta not in records", zap.String("zcta", code), zap.Stringer("vintage", t.Vintage))
	}
	return nil, nf
}

// Centroid resolves a ZIP Code to its ZCTA and returns the ZCTA centroid.
// A NotFoundError from the forward step is returned as is. A ZCTA the
// crosswalk produced but the centroid table lacks yields a NotFoundError
// wrapping a DataConsistencyError.
func (c *Crosswalker) Centroid(ctx context.Context, zip any, v Vintage) (refdata.Centroid, error) {
	_, pt, err := c.Locate(ctx, zip, v)
	return pt, err
}

// Locate is Centroid that also returns the ZCTA it went through. The ZCTA is
// set whenever the forward step succeeded, even if the centroid is missing.
func (c *Crosswalker) Locate(ctx context.Context, zip any, v Vintage) (string, refdata.Centroid, error) {
	code, err := zipcode.Normalize(zip)
	if err != nil {
		c.metrics.ObserveLookup(monitoring.OpCentroid, int(v.OrDefault()), monitoring.OutcomeInvalid)
		return "", refdata.Centroid{}, err
	}
	t, err := c.Tables(ctx, v)
	if err != nil {
		return "", refdata.Centroid{}, err
	}

	zcta, mapped := t.Crosswalk[code]
	switch {
	case mapped:
	case c.fallback:
		zcta = code
	default:
		c.metrics.ObserveLookup(monitoring.OpCentroid, int(t.Vintage), monitoring.OutcomeMiss)
		zap.L().Debug("zip not in records", zap.String("zip", code), zap.Stringer("vintage", t.Vintage))
		return "", refdata.Centroid{}, &NotFoundError{Code: code, Kind: KindZIP, Vintage: t.Vintage}
	}

	if pt, ok := t.Centroids[zcta]; ok {
		outcome := monitoring.OutcomeHit
		if !mapped {
			outcome = monitoring.OutcomeFallback
		}
		c.metrics.ObserveLookup(monitoring.OpCentroid, int(t.Vintage), outcome)
		return zcta, pt, nil
	}

	c.metrics.ObserveLookup(monitoring.OpCentroid, int(t.Vintage), monitoring.OutcomeMiss)
	nf := &NotFoundError{Code: zcta, Kind: KindCentroid, Vintage: t.Vintage}
	if mapped {
		nf.Err = &DataConsistencyError{ZCTA: zcta, Vintage: t.Vintage, Table: "centroid"}
		zap.L().Warn("zcta has no centroid",
			zap.String("zip", code),
			zap.String("zcta", zcta),
			zap.Stringer("vintage", t.Vintage),
		)
	}
	return zcta, refdata.Centroid{}, nf
}

// ZCTACentroid returns the centroid of a ZCTA without going through the
// crosswalk.
func (c *Crosswalker) ZCTACentroid(ctx context.Context, zcta any, v Vintage) (refdata.Centroid, error) {
	code, err := zipcode.Normalize(zcta)
	if err != nil {
		c.metrics.ObserveLookup(monitoring.OpCentroid, int(v.OrDefault()), monitoring.OutcomeInvalid)
		return refdata.Centroid{}, err
	}
	t, err := c.Tables(ctx, v)
	if err != nil {
		return refdata.Centroid{}, err
	}
	pt, ok := t.Centroids[code]
	if !ok {
		c.metrics.ObserveLookup(monitoring.OpCentroid, int(t.Vintage), monitoring.OutcomeMiss)
		return refdata.Centroid{}, &NotFoundError{Code: code, Kind: KindZCTA, Vintage: t.Vintage}
	}
	c.metrics.ObserveLookup(monitoring.OpCentroid, int(t.Vintage), monitoring.OutcomeHit)
	return pt, nil
}

// Stats summarizes one vintage of reference data.
type Stats struct {
	Vintage   Vintage `json:"vintage" yaml:"vintage"`
	Source    string  `json:"source" yaml:"source"`
	ZIPs      int     `json:"zips" yaml:"zips"`
	ZCTAs     int     `json:"zctas" yaml:"zctas"`
	Centroids int     `json:"centroids" yaml:"centroids"`
	Orphans   int     `json:"orphans" yaml:"orphans"`
}

// Stats loads v and returns its table sizes. ZCTAs counts distinct crosswalk
// targets; Orphans counts those without a centroid.
func (c *Crosswalker) Stats(ctx context.Context, v Vintage) (Stats, error) {
	rev, t, err := c.reverseIndex(ctx, v)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Vintage:   t.Vintage,
		Source:    c.src.Name(),
		ZIPs:      len(t.Crosswalk),
		ZCTAs:     len(rev),
		Centroids: len(t.Centroids),
		Orphans:   len(t.Orphans()),
	}, nil
}

// IsMiss reports whether err is a row-level outcome (bad input or a code
// absent from the tables) rather than a failure to load reference data.
func IsMiss(err error) bool {
	var fe *FormatError
	return errors.Is(err, ErrNotFound) || errors.As(err, &fe)
}

func head(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// staticSource serves tables held in memory.
type staticSource map[refdata.Vintage]*refdata.Tables

func (s staticSource) Name() string { return "memory" }

func (s staticSource) Load(_ context.Context, v refdata.Vintage) (*refdata.Tables, error) {
	t, ok := s[v]
	if !ok {
		return nil, eris.Errorf("memory source has no %s tables", v)
	}
	return t, nil
}
