// Package refdata loads the read-only ZIP→ZCTA crosswalk and ZCTA centroid
// reference tables for each census vintage.
package refdata

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/zcta-crosswalk/internal/zipcode"
)

// SRID of centroid coordinates (WGS84).
const SRID = 4326

// Centroid is the representative point of a ZCTA polygon in WGS84 degrees.
type Centroid struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// Pair returns the centroid as [latitude, longitude].
func (c Centroid) Pair() [2]float64 {
	return [2]float64{c.Lat, c.Lon}
}

// Point returns the centroid as a go-geom point. Coordinates are ordered
// X=longitude, Y=latitude.
func (c Centroid) Point() *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{c.Lon, c.Lat}).SetSRID(SRID)
}

// Valid reports whether the coordinates fall inside WGS84 bounds.
func (c Centroid) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// Tables holds one vintage of reference data. Tables are never mutated after
// a Source returns them.
type Tables struct {
	Vintage   Vintage
	Crosswalk map[string]string   // ZIP → ZCTA
	Centroids map[string]Centroid // ZCTA → centroid
}

// Source loads reference tables for a vintage.
type Source interface {
	Name() string
	Load(ctx context.Context, v Vintage) (*Tables, error)
}

// Validate checks that every key and value is a canonical 5-digit code and
// every centroid is within WGS84 bounds.
func (t *Tables) Validate() error {
	if !t.Vintage.Valid() {
		return eris.Wrapf(ErrUnsupportedVintage, "refdata: tables for %d", int(t.Vintage))
	}
	for zip, zcta := range t.Crosswalk {
		if !zipcode.Valid(zip) || !zipcode.Valid(zcta) {
			return eris.Errorf("refdata: %s crosswalk entry %q → %q is not canonical", t.Vintage, zip, zcta)
		}
	}
	for zcta, c := range t.Centroids {
		if !zipcode.Valid(zcta) {
			return eris.Errorf("refdata: %s centroid key %q is not canonical", t.Vintage, zcta)
		}
		if !c.Valid() {
			return eris.Errorf("refdata: %s centroid for %s out of range (%f, %f)", t.Vintage, zcta, c.Lat, c.Lon)
		}
	}
	return nil
}

// Orphans returns the ZCTAs referenced by the crosswalk that have no
// centroid, sorted.
func (t *Tables) Orphans() []string {
	seen := make(map[string]bool)
	var out []string
	for _, zcta := range t.Crosswalk {
		if _, ok := t.Centroids[zcta]; ok || seen[zcta] {
			continue
		}
		seen[zcta] = true
		out = append(out, zcta)
	}
	sort.Strings(out)
	return out
}

// putCrosswalk adds a normalized ZIP → ZCTA entry. Repeated identical
// entries are ignored; conflicting ones are an error.
func putCrosswalk(m map[string]string, rawZIP, rawZCTA any) error {
	zip, err := zipcode.Normalize(rawZIP)
	if err != nil {
		return eris.Wrap(err, "crosswalk zip")
	}
	zcta, err := zipcode.Normalize(rawZCTA)
	if err != nil {
		return eris.Wrapf(err, "crosswalk zcta for %s", zip)
	}
	if prev, ok := m[zip]; ok && prev != zcta {
		return eris.Errorf("conflicting crosswalk entries for %s: %s and %s", zip, prev, zcta)
	}
	m[zip] = zcta
	return nil
}

// putCentroid adds a normalized ZCTA → centroid entry.
func putCentroid(m map[string]Centroid, rawZCTA any, c Centroid) error {
	zcta, err := zipcode.Normalize(rawZCTA)
	if err != nil {
		return eris.Wrap(err, "centroid zcta")
	}
	if prev, ok := m[zcta]; ok && prev != c {
		return eris.Errorf("conflicting centroids for %s", zcta)
	}
	m[zcta] = c
	return nil
}
