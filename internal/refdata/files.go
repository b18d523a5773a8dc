package refdata

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zcta-crosswalk/internal/tabfile"
)

// File name stems, one file per vintage: <stem>_<year>.<ext>.
const (
	CrosswalkStem = "zipzcta_crosswalk"
	CentroidStem  = "zcta_latloncentroid"
)

// Header aliases for tabular reference files. They cover the plain
// zip/zcta/lat/lon layout, the UDS Mapper crosswalk workbook, and the
// Census ZCTA gazetteer and TIGER attribute names.
var (
	zipHeaders  = []string{"zip", "zip_code", "zipcode", "zip5"}
	zctaHeaders = []string{"zcta", "zcta5", "zcta5ce20", "zcta5ce10", "geoid", "geoid20", "geoid10"}
	latHeaders  = []string{"lat", "latitude", "intptlat", "intptlat20", "intptlat10"}
	lonHeaders  = []string{"lon", "lng", "longitude", "intptlon", "intptlong", "intptlon20", "intptlon10"}
)

// FileName returns the reference file name for a stem, vintage and extension.
func FileName(stem string, v Vintage, ext string) string {
	return fmt.Sprintf("%s_%d%s", stem, int(v), ext)
}

// decodeCrosswalkJSON reads a {"ZIP": "ZCTA"} object.
func decodeCrosswalkJSON(r io.Reader) (map[string]string, error) {
	var raw map[string]string
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, eris.Wrap(err, "decode crosswalk json")
	}
	out := make(map[string]string, len(raw))
	for zip, zcta := range raw {
		if err := putCrosswalk(out, zip, zcta); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// decodeCentroidJSON reads a {"ZCTA": [lat, lon]} object. Entries with a
// null coordinate carry no centroid and are skipped.
func decodeCentroidJSON(r io.Reader) (map[string]Centroid, error) {
	var raw map[string][]*float64
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, eris.Wrap(err, "decode centroid json")
	}
	out := make(map[string]Centroid, len(raw))
	var skipped int
	for zcta, pair := range raw {
		if len(pair) != 2 || pair[0] == nil || pair[1] == nil {
			skipped++
			continue
		}
		if err := putCentroid(out, zcta, Centroid{Lat: *pair[0], Lon: *pair[1]}); err != nil {
			return nil, err
		}
	}
	if skipped > 0 {
		zap.L().Debug("refdata: skipped centroid entries without coordinates", zap.Int("skipped", skipped))
	}
	return out, nil
}

// crosswalkFromRecords builds a crosswalk from a table with ZIP and ZCTA
// columns. Rows with a blank ZCTA are ZIPs without a tabulation area and are
// left out.
func crosswalkFromRecords(rec *tabfile.Records) (map[string]string, error) {
	zipIdx, zctaIdx := rec.Index(zipHeaders...), rec.Index(zctaHeaders...)
	if zipIdx < 0 || zctaIdx < 0 {
		return nil, eris.Errorf("crosswalk table needs zip and zcta columns, have %s", strings.Join(rec.Header, ","))
	}

	out := make(map[string]string, len(rec.Rows))
	for i, row := range rec.Rows {
		zip, zcta := tabfile.Cell(row, zipIdx), tabfile.Cell(row, zctaIdx)
		if strings.TrimSpace(zcta) == "" {
			continue
		}
		if err := putCrosswalk(out, zip, zcta); err != nil {
			return nil, eris.Wrapf(err, "row %d", i+2)
		}
	}
	return out, nil
}

// centroidsFromRecords builds a centroid table from a table with ZCTA,
// latitude and longitude columns.
func centroidsFromRecords(rec *tabfile.Records) (map[string]Centroid, error) {
	zctaIdx, latIdx, lonIdx := rec.Index(zctaHeaders...), rec.Index(latHeaders...), rec.Index(lonHeaders...)
	if zctaIdx < 0 || latIdx < 0 || lonIdx < 0 {
		return nil, eris.Errorf("centroid table needs zcta, lat and lon columns, have %s", strings.Join(rec.Header, ","))
	}

	out := make(map[string]Centroid, len(rec.Rows))
	for i, row := range rec.Rows {
		lat, err := strconv.ParseFloat(strings.TrimSpace(tabfile.Cell(row, latIdx)), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "row %d: latitude", i+2)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(tabfile.Cell(row, lonIdx)), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "row %d: longitude", i+2)
		}
		if err := putCentroid(out, tabfile.Cell(row, zctaIdx), Centroid{Lat: lat, Lon: lon}); err != nil {
			return nil, eris.Wrapf(err, "row %d", i+2)
		}
	}
	return out, nil
}
