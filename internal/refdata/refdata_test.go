package refdata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func TestParseVintage(t *testing.T) {
	v, err := ParseVintage(2010)
	require.NoError(t, err)
	assert.Equal(t, V2010, v)

	v, err = ParseVintage(0)
	require.NoError(t, err)
	assert.Equal(t, V2020, v)

	_, err = ParseVintage(2015)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedVintage))
}

func TestNearestVintage(t *testing.T) {
	tests := []struct {
		year     int
		expected Vintage
	}{
		{0, V2020},
		{1999, V2010},
		{2010, V2010},
		{2019, V2010},
		{2020, V2020},
		{2024, V2020},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.year), func(t *testing.T) {
			assert.Equal(t, tt.expected, NearestVintage(tt.year))
		})
	}
}

func TestVintage_OrDefault(t *testing.T) {
	assert.Equal(t, DefaultVintage, Vintage(0).OrDefault())
	assert.Equal(t, V2010, V2010.OrDefault())
	assert.Equal(t, "2010", V2010.String())
}

func TestCentroid_Point(t *testing.T) {
	c := Centroid{Lat: 42.35968, Lon: -71.12966}
	p := c.Point()
	assert.Equal(t, SRID, p.SRID())
	assert.InDelta(t, -71.12966, p.X(), 1e-9)
	assert.InDelta(t, 42.35968, p.Y(), 1e-9)
	assert.Equal(t, [2]float64{42.35968, -71.12966}, c.Pair())
	assert.True(t, c.Valid())
	assert.False(t, Centroid{Lat: 91}.Valid())
}

func TestTables_ValidateAndOrphans(t *testing.T) {
	tables := &Tables{
		Vintage:   V2020,
		Crosswalk: map[string]string{"02134": "02134", "02163": "02134", "99998": "99990"},
		Centroids: map[string]Centroid{"02134": {Lat: 42.36, Lon: -71.13}},
	}
	require.NoError(t, tables.Validate())
	assert.Equal(t, []string{"99990"}, tables.Orphans())

	tables.Crosswalk["2134"] = "02134"
	assert.ErrorContains(t, tables.Validate(), "not canonical")

	bad := &Tables{Vintage: V2020, Centroids: map[string]Centroid{"02134": {Lat: 120}}}
	assert.ErrorContains(t, bad.Validate(), "out of range")

	assert.Error(t, (&Tables{Vintage: 1999}).Validate())
}

func TestEmbedded_LoadsBothVintages(t *testing.T) {
	src := Embedded()
	assert.Equal(t, "embedded", src.Name())

	for _, v := range Vintages {
		tables, err := src.Load(context.Background(), v)
		require.NoError(t, err, "vintage %s", v)
		require.NoError(t, tables.Validate())
		assert.Equal(t, v, tables.Vintage)
		assert.Equal(t, "02134", tables.Crosswalk["02134"])
		assert.Contains(t, tables.Centroids, "02134")
		assert.Empty(t, tables.Orphans())
	}
}

func TestEmbedded_UnsupportedVintage(t *testing.T) {
	_, err := Embedded().Load(context.Background(), 2000)
	assert.True(t, errors.Is(err, ErrUnsupportedVintage))
}

func TestFSSource_NormalizesAndSkipsNullCentroids(t *testing.T) {
	fsys := fstest.MapFS{
		"zipzcta_crosswalk_2020.json":   {Data: []byte(`{"2134": "2134", "02163": "02134"}`)},
		"zcta_latloncentroid_2020.json": {Data: []byte(`{"2134": [42.36, -71.13], "99999": [null, null]}`)},
	}
	tables, err := NewFSSource("test", fsys).Load(context.Background(), V2020)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"02134": "02134", "02163": "02134"}, tables.Crosswalk)
	assert.Equal(t, map[string]Centroid{"02134": {Lat: 42.36, Lon: -71.13}}, tables.Centroids)
}

func TestFSSource_Errors(t *testing.T) {
	fsys := fstest.MapFS{
		"zipzcta_crosswalk_2020.json":   {Data: []byte(`{"02134": "abcde"}`)},
		"zcta_latloncentroid_2020.json": {Data: []byte(`{}`)},
	}
	_, err := NewFSSource("bad", fsys).Load(context.Background(), V2020)
	assert.ErrorContains(t, err, "crosswalk zcta")

	_, err = NewFSSource("bad", fsys).Load(context.Background(), V2010)
	assert.ErrorContains(t, err, "open zipzcta_crosswalk_2010.json")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Embedded().Load(ctx, V2020)
	assert.Error(t, err)
}

func TestDirSource_JSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "zipzcta_crosswalk_2010.json", `{"02134": "02134"}`)
	writeFile(t, dir, "zcta_latloncentroid_2010.json", `{"02134": [42.35, -71.12]}`)

	tables, err := NewDirSource(dir).Load(context.Background(), V2010)
	require.NoError(t, err)
	assert.Equal(t, "02134", tables.Crosswalk["02134"])
	assert.InDelta(t, 42.35, tables.Centroids["02134"].Lat, 1e-9)
}

func TestDirSource_CSVAndGazetteer(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "zipzcta_crosswalk_2020.csv", "zip,zcta\n2134,2134\n2163,2134\n501,\n")
	writeFile(t, dir, "zcta_latloncentroid_2020.txt",
		"GEOID\tALAND\tAWATER\tINTPTLAT\tINTPTLONG   \n02134\t1\t0\t42.359680\t-71.129660\n")

	tables, err := NewDirSource(dir).Load(context.Background(), V2020)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"02134": "02134", "02163": "02134"}, tables.Crosswalk)
	assert.Equal(t, Centroid{Lat: 42.35968, Lon: -71.12966}, tables.Centroids["02134"])
}

func TestDirSource_UDSWorkbook(t *testing.T) {
	dir := t.TempDir()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("ZiptoZCTA")
	require.NoError(t, err)
	for _, r := range [][]string{
		{"ZIP_CODE", "PO_NAME", "STATE", "ZIP_TYPE", "zcta", "zip_join_type"},
		{"02134", "Allston", "MA", "Zip Code Area", "02134", "Zip Matches ZCTA"},
		{"02163", "Boston", "MA", "Post Office or large volume customer", "02134", "Spatial join to ZCTA"},
	} {
		row := sheet.AddRow()
		for _, c := range r {
			row.AddCell().SetString(c)
		}
	}
	require.NoError(t, f.Save(filepath.Join(dir, "zipzcta_crosswalk_2020.xlsx")))
	writeFile(t, dir, "zcta_latloncentroid_2020.csv", "zcta,lat,lon\n02134,42.36,-71.13\n")

	tables, err := NewDirSource(dir).Load(context.Background(), V2020)
	require.NoError(t, err)
	assert.Equal(t, "02134", tables.Crosswalk["02163"])
}

func TestDirSource_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := NewDirSource(dir).Load(context.Background(), V2020)
	assert.ErrorContains(t, err, "no zipzcta_crosswalk file")

	writeFile(t, dir, "zipzcta_crosswalk_2020.csv", "postal,area\n02134,02134\n")
	writeFile(t, dir, "zcta_latloncentroid_2020.csv", "zcta,lat,lon\n02134,x,-71.13\n")
	_, err = NewDirSource(dir).Load(context.Background(), V2020)
	assert.ErrorContains(t, err, "needs zip and zcta columns")

	writeFile(t, dir, "zipzcta_crosswalk_2020.csv", "zip,zcta\n02134,02134\n02134,02135\n")
	_, err = NewDirSource(dir).Load(context.Background(), V2020)
	assert.ErrorContains(t, err, "conflicting crosswalk entries")

	writeFile(t, dir, "zipzcta_crosswalk_2020.csv", "zip,zcta\n02134,02134\n")
	_, err = NewDirSource(dir).Load(context.Background(), V2020)
	assert.ErrorContains(t, err, "latitude")
}

func TestSQLiteSource_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ref.db")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(SQLiteSchema)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO zip_zcta (vintage, zip, zcta) VALUES
		(2020, '02134', '02134'), (2020, '02163', '02134'), (2010, '02134', '02135')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO zcta_centroid (vintage, zcta, lat, lon) VALUES
		(2020, '02134', 42.36, -71.13), (2010, '02135', 42.35, -71.15)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	src, err := OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })
	assert.Equal(t, "sqlite:"+path, src.Name())

	tables, err := src.Load(context.Background(), V2020)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"02134": "02134", "02163": "02134"}, tables.Crosswalk)
	assert.Equal(t, Centroid{Lat: 42.36, Lon: -71.13}, tables.Centroids["02134"])

	tables, err = src.Load(context.Background(), V2010)
	require.NoError(t, err)
	assert.Equal(t, "02135", tables.Crosswalk["02134"])
}

func TestSQLiteSource_MissingTables(t *testing.T) {
	src, err := OpenSQLite(filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })

	_, err = src.Load(context.Background(), V2020)
	assert.ErrorContains(t, err, "sqlite: query zip_zcta")
}

func TestPostgresSource_Load(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT zip, zcta FROM "ref"."zip_zcta" WHERE vintage = \$1`).
		WithArgs(2020).
		WillReturnRows(pgxmock.NewRows([]string{"zip", "zcta"}).
			AddRow("02134", "02134").
			AddRow("2163", "02134"))
	mock.ExpectQuery(`SELECT zcta, lat, lon FROM "ref"."zcta_centroid" WHERE vintage = \$1`).
		WithArgs(2020).
		WillReturnRows(pgxmock.NewRows([]string{"zcta", "lat", "lon"}).
			AddRow("02134", 42.36, -71.13))

	src := NewPostgresFromQuerier(mock, "ref")
	assert.Equal(t, "postgres:ref", src.Name())

	tables, err := src.Load(context.Background(), V2020)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"02134": "02134", "02163": "02134"}, tables.Crosswalk)
	assert.Equal(t, Centroid{Lat: 42.36, Lon: -71.13}, tables.Centroids["02134"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSource_QueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT zip, zcta FROM").
		WithArgs(2010).
		WillReturnError(fmt.Errorf("relation does not exist"))

	_, err = NewPostgresFromQuerier(mock, "").Load(context.Background(), V2010)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"crosswalk"."zip_zcta"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
