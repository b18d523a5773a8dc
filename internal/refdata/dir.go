package refdata

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zcta-crosswalk/internal/tabfile"
)

// DirSource loads reference tables from a directory. For each table the
// first file found among <stem>_<year>.json, .csv, .tsv, .txt and .xlsx is
// used, so a directory can mix the JSON layout with CSV exports, Census
// gazetteer files and UDS Mapper crosswalk workbooks.
type DirSource struct {
	Root string
}

// NewDirSource returns a DirSource rooted at root.
func NewDirSource(root string) *DirSource {
	return &DirSource{Root: root}
}

// Name implements Source.
func (s *DirSource) Name() string { return "dir:" + s.Root }

// Load implements Source.
func (s *DirSource) Load(ctx context.Context, v Vintage) (*Tables, error) {
	if !v.Valid() {
		return nil, eris.Wrapf(ErrUnsupportedVintage, "refdata: dir source")
	}

	xwPath, err := s.find(CrosswalkStem, v)
	if err != nil {
		return nil, err
	}
	cPath, err := s.find(CentroidStem, v)
	if err != nil {
		return nil, err
	}

	log := zap.L().With(zap.String("component", "refdata.dir"), zap.Int("vintage", int(v)))
	log.Debug("loading reference files", zap.String("crosswalk", xwPath), zap.String("centroids", cPath))

	t := &Tables{Vintage: v}
	if filepath.Ext(xwPath) == ".json" {
		t.Crosswalk, err = readJSON(xwPath, decodeCrosswalkJSON)
	} else {
		t.Crosswalk, err = readTable(ctx, xwPath, crosswalkFromRecords)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "refdata: %s", xwPath)
	}

	if filepath.Ext(cPath) == ".json" {
		t.Centroids, err = readJSON(cPath, decodeCentroidJSON)
	} else {
		t.Centroids, err = readTable(ctx, cPath, centroidsFromRecords)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "refdata: %s", cPath)
	}

	return t, nil
}

// find returns the first existing reference file for stem and vintage.
func (s *DirSource) find(stem string, v Vintage) (string, error) {
	exts := append([]string{".json"}, tabfile.Extensions...)
	for _, ext := range exts {
		p := filepath.Join(s.Root, FileName(stem, v, ext))
		_, err := os.Stat(p)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", eris.Wrapf(err, "refdata: stat %s", p)
		}
	}
	return "", eris.Wrapf(fs.ErrNotExist, "refdata: no %s file for %s in %s", stem, v, s.Root)
}

func readJSON[T any](path string, decode func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, eris.Wrap(err, "open")
	}
	defer f.Close() //nolint:errcheck
	return decode(f)
}

func readTable[T any](ctx context.Context, path string, build func(*tabfile.Records) (T, error)) (T, error) {
	var zero T
	rec, err := tabfile.Read(ctx, path)
	if err != nil {
		return zero, err
	}
	return build(rec)
}
