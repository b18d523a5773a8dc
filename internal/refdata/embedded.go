package refdata

import (
	"context"
	"embed"
	"io/fs"

	"github.com/rotisserie/eris"
)

// data holds the bundled reference tables in the JSON layout produced by the
// upstream preprocessing: zipzcta_crosswalk_<year>.json and
// zcta_latloncentroid_<year>.json.
//
//go:embed data/*.json
var data embed.FS

// FSSource loads JSON reference tables from a file system.
type FSSource struct {
	name string
	fsys fs.FS
}

// Embedded returns the source compiled into the binary.
func Embedded() *FSSource {
	sub, err := fs.Sub(data, "data")
	if err != nil {
		// fs.Sub only fails on an invalid path literal.
		panic(err)
	}
	return &FSSource{name: "embedded", fsys: sub}
}

// NewFSSource returns a source reading JSON tables from fsys.
func NewFSSource(name string, fsys fs.FS) *FSSource {
	return &FSSource{name: name, fsys: fsys}
}

// Name implements Source.
func (s *FSSource) Name() string { return s.name }

// Load implements Source.
func (s *FSSource) Load(ctx context.Context, v Vintage) (*Tables, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "refdata: load")
	}
	if !v.Valid() {
		return nil, eris.Wrapf(ErrUnsupportedVintage, "refdata: %s source", s.name)
	}

	xwName := FileName(CrosswalkStem, v, ".json")
	f, err := s.fsys.Open(xwName)
	if err != nil {
		return nil, eris.Wrapf(err, "refdata: %s: open %s", s.name, xwName)
	}
	xw, err := decodeCrosswalkJSON(f)
	_ = f.Close()
	if err != nil {
		return nil, eris.Wrapf(err, "refdata: %s: %s", s.name, xwName)
	}

	cName := FileName(CentroidStem, v, ".json")
	f, err = s.fsys.Open(cName)
	if err != nil {
		return nil, eris.Wrapf(err, "refdata: %s: open %s", s.name, cName)
	}
	centroids, err := decodeCentroidJSON(f)
	_ = f.Close()
	if err != nil {
		return nil, eris.Wrapf(err, "refdata: %s: %s", s.name, cName)
	}

	return &Tables{Vintage: v, Crosswalk: xw, Centroids: centroids}, nil
}
