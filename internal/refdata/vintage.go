package refdata

import (
	"strconv"

	"github.com/rotisserie/eris"
)

// Vintage is the Census geography edition a reference table belongs to.
type Vintage int

// Supported vintages.
const (
	V2010 Vintage = 2010
	V2020 Vintage = 2020

	// DefaultVintage is used when a caller passes the zero Vintage.
	DefaultVintage = V2020
)

// Vintages lists every supported vintage in ascending order.
var Vintages = []Vintage{V2010, V2020}

// ErrUnsupportedVintage is returned for years other than 2010 and 2020.
var ErrUnsupportedVintage = eris.New("refdata: unsupported vintage")

func (v Vintage) String() string {
	return strconv.Itoa(int(v))
}

// Valid reports whether v is a supported vintage.
func (v Vintage) Valid() bool {
	return v == V2010 || v == V2020
}

// OrDefault returns DefaultVintage for the zero value and v otherwise.
func (v Vintage) OrDefault() Vintage {
	if v == 0 {
		return DefaultVintage
	}
	return v
}

// ParseVintage validates a census year. Zero selects DefaultVintage.
func ParseVintage(year int) (Vintage, error) {
	v := Vintage(year).OrDefault()
	if !v.Valid() {
		return 0, eris.Wrapf(ErrUnsupportedVintage, "year %d", year)
	}
	return v, nil
}

// NearestVintage maps any year onto the census geography in force for it:
// years before 2020 use the 2010 definitions, later years use 2020.
func NearestVintage(year int) Vintage {
	if year == 0 {
		return DefaultVintage
	}
	if year < int(V2020) {
		return V2010
	}
	return V2020
}
