package refdata

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteSchema is the layout SQLiteSource reads. The Postgres source uses the
// same tables inside a configurable schema.
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS zip_zcta (
	vintage INTEGER NOT NULL,
	zip     TEXT    NOT NULL,
	zcta    TEXT    NOT NULL,
	PRIMARY KEY (vintage, zip)
);

CREATE TABLE IF NOT EXISTS zcta_centroid (
	vintage INTEGER NOT NULL,
	zcta    TEXT    NOT NULL,
	lat     REAL    NOT NULL,
	lon     REAL    NOT NULL,
	PRIMARY KEY (vintage, zcta)
);
`

// SQLiteSource reads reference tables from a SQLite database using
// modernc.org/sqlite.
type SQLiteSource struct {
	path string
	db   *sql.DB
}

// OpenSQLite opens the database at path for reading.
func OpenSQLite(path string) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA query_only=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteSource{path: path, db: db}, nil
}

// Name implements Source.
func (s *SQLiteSource) Name() string { return "sqlite:" + s.path }

// Close releases the database handle.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

// Load implements Source.
func (s *SQLiteSource) Load(ctx context.Context, v Vintage) (*Tables, error) {
	if !v.Valid() {
		return nil, eris.Wrapf(ErrUnsupportedVintage, "refdata: sqlite source")
	}

	t := &Tables{
		Vintage:   v,
		Crosswalk: make(map[string]string),
		Centroids: make(map[string]Centroid),
	}

	rows, err := s.db.QueryContext(ctx, `SELECT zip, zcta FROM zip_zcta WHERE vintage = ?`, int(v))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query zip_zcta")
	}
	for rows.Next() {
		var zip, zcta string
		if err := rows.Scan(&zip, &zcta); err != nil {
			rows.Close() //nolint:errcheck
			return nil, eris.Wrap(err, "sqlite: scan zip_zcta")
		}
		if err := putCrosswalk(t.Crosswalk, zip, zcta); err != nil {
			rows.Close() //nolint:errcheck
			return nil, eris.Wrap(err, "sqlite: zip_zcta")
		}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate zip_zcta")
	}
	rows.Close() //nolint:errcheck

	rows, err = s.db.QueryContext(ctx, `SELECT zcta, lat, lon FROM zcta_centroid WHERE vintage = ?`, int(v))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query zcta_centroid")
	}
	defer rows.Close() //nolint:errcheck
	for rows.Next() {
		var zcta string
		var c Centroid
		if err := rows.Scan(&zcta, &c.Lat, &c.Lon); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan zcta_centroid")
		}
		if err := putCentroid(t.Centroids, zcta, c); err != nil {
			return nil, eris.Wrap(err, "sqlite: zcta_centroid")
		}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate zcta_centroid")
	}

	return t, nil
}
