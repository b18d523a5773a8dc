package crosswalk

import (
	"context"
	"sync"

	"github.com/sells-group/zcta-crosswalk/internal/refdata"
)

var (
	defaultOnce sync.Once
	defaultCW   *Crosswalker
)

// Default returns the process-wide Crosswalker over the embedded reference
// tables. Tables load on first lookup and are never reloaded.
func Default() *Crosswalker {
	defaultOnce.Do(func() {
		defaultCW = New(refdata.Embedded())
	})
	return defaultCW
}

// ZIPToZCTA looks up zip in the embedded tables. Pass 0 for the 2020 vintage.
func ZIPToZCTA(zip any, v Vintage) (string, error) {
	return Default().ZCTA(context.Background(), zip, v)
}

// ZCTAToZIPs returns the ZIP Codes of zcta from the embedded tables.
func ZCTAToZIPs(zcta any, v Vintage) ([]string, error) {
	return Default().ZIPs(context.Background(), zcta, v)
}

// Centroid returns the centroid of zip's ZCTA from the embedded tables.
func Centroid(zip any, v Vintage) (refdata.Centroid, error) {
	return Default().Centroid(context.Background(), zip, v)
}
