package refdata

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// DefaultSchema holds zip_zcta and zcta_centroid in Postgres.
const DefaultSchema = "crosswalk"

// Querier is the subset of *pgxpool.Pool used by PostgresSource.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresSource reads reference tables from Postgres with the same layout
// as SQLiteSchema.
type PostgresSource struct {
	q       Querier
	schema  string
	closeFn func()
}

// NewPostgres connects a small pool to connString.
func NewPostgres(ctx context.Context, connString, schema string) (*PostgresSource, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 2
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	src := NewPostgresFromQuerier(pool, schema)
	src.closeFn = pool.Close
	return src, nil
}

// NewPostgresFromQuerier wraps an existing pool or connection.
func NewPostgresFromQuerier(q Querier, schema string) *PostgresSource {
	if schema == "" {
		schema = DefaultSchema
	}
	return &PostgresSource{q: q, schema: schema}
}

// Name implements Source.
func (s *PostgresSource) Name() string { return "postgres:" + s.schema }

// Close releases the pool if NewPostgres created it.
func (s *PostgresSource) Close() {
	if s.closeFn != nil {
		s.closeFn()
	}
}

// Load implements Source.
func (s *PostgresSource) Load(ctx context.Context, v Vintage) (*Tables, error) {
	if !v.Valid() {
		return nil, eris.Wrapf(ErrUnsupportedVintage, "refdata: postgres source")
	}

	t := &Tables{Vintage: v}

	xwTable := pgx.Identifier{s.schema, "zip_zcta"}.Sanitize()
	rows, err := s.q.Query(ctx, "SELECT zip, zcta FROM "+xwTable+" WHERE vintage = $1", int(v))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query %s", xwTable)
	}
	t.Crosswalk = make(map[string]string)
	var zip, zcta string
	if _, err := pgx.ForEachRow(rows, []any{&zip, &zcta}, func() error {
		return putCrosswalk(t.Crosswalk, zip, zcta)
	}); err != nil {
		return nil, eris.Wrapf(err, "postgres: read %s", xwTable)
	}

	cTable := pgx.Identifier{s.schema, "zcta_centroid"}.Sanitize()
	rows, err = s.q.Query(ctx, "SELECT zcta, lat, lon FROM "+cTable+" WHERE vintage = $1", int(v))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query %s", cTable)
	}
	t.Centroids = make(map[string]Centroid)
	var c Centroid
	if _, err := pgx.ForEachRow(rows, []any{&zcta, &c.Lat, &c.Lon}, func() error {
		return putCentroid(t.Centroids, zcta, c)
	}); err != nil {
		return nil, eris.Wrapf(err, "postgres: read %s", cTable)
	}

	return t, nil
}
