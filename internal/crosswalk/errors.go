package crosswalk

import (
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/zcta-crosswalk/internal/refdata"
	"github.com/sells-group/zcta-crosswalk/internal/zipcode"
)

// FormatError reports input that cannot be normalized to a 5-digit code.
type FormatError = zipcode.FormatError

// ErrNotFound matches every *NotFoundError via errors.Is.
var ErrNotFound = eris.New("crosswalk: not found")

// Kind names the table a lookup missed in.
type Kind string

// Lookup kinds.
const (
	KindZIP      Kind = "zip"
	KindZCTA     Kind = "zcta"
	KindCentroid Kind = "centroid"
)

// NotFoundError reports a well-formed code that is absent from the reference
// table for the requested vintage. It is an expected outcome.
type NotFoundError struct {
	Code    string
	Kind    Kind
	Vintage refdata.Vintage
	// Err is the underlying cause, set when a centroid is missing for a
	// ZCTA the crosswalk produced.
	Err error
}

func (e *NotFoundError) Error() string {
	switch e.Kind {
	case KindZCTA:
		return fmt.Sprintf("crosswalk: ZCTA %s not in %s records", e.Code, e.Vintage)
	case KindCentroid:
		return fmt.Sprintf("crosswalk: no %s centroid for %s", e.Vintage, e.Code)
	default:
		return fmt.Sprintf("crosswalk: ZIP %s not in %s records", e.Code, e.Vintage)
	}
}

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// DataConsistencyError reports a ZCTA present in one reference table but
// missing from another that should also hold it.
type DataConsistencyError struct {
	ZCTA    string
	Vintage refdata.Vintage
	Table   string
}

func (e *DataConsistencyError) Error() string {
	return fmt.Sprintf("crosswalk: ZCTA %s missing from %s %s table", e.ZCTA, e.Vintage, e.Table)
}
