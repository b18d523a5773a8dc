// Package zipcode normalizes raw ZIP Code and ZCTA values into their
// canonical 5-digit string form.
package zipcode

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// Length is the number of digits in a canonical ZIP Code or ZCTA.
const Length = 5

// Reasons reported by FormatError.
const (
	ReasonMissing     = "missing"
	ReasonNonNumeric  = "non-numeric"
	ReasonNegative    = "negative"
	ReasonFractional  = "fractional"
	ReasonUnsupported = "unsupported type"
)

// nullTokens are string spellings of a missing value produced by common
// spreadsheet and dataframe exports.
var nullTokens = map[string]bool{
	"nan":  true,
	"null": true,
	"none": true,
	"na":   true,
	"n/a":  true,
	"<na>": true,
}

// FormatError reports a value that cannot be normalized into a 5-digit code.
type FormatError struct {
	Input  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("zipcode: cannot normalize %q: %s", e.Input, e.Reason)
}

// Missing reports whether the error is a FormatError for a null-like input.
func (e *FormatError) Missing() bool {
	return e.Reason == ReasonMissing
}

// Normalize converts a ZIP-Code-like value into a 5-character, zero-padded
// digit string. Strings may carry ZIP+4 suffixes, padding whitespace,
// full-width digits, or an all-zero decimal fraction ("2134.0"). Numbers are
// read through their decimal digits, so 21345678 and "21345678" agree:
// shorter values are zero-padded and longer ones keep their first 5 digits.
func Normalize(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", &FormatError{Input: "<nil>", Reason: ReasonMissing}
	case string:
		return normalizeString(x)
	case *string:
		if x == nil {
			return "", &FormatError{Input: "<nil>", Reason: ReasonMissing}
		}
		return normalizeString(*x)
	case int:
		return normalizeInt(int64(x))
	case int8:
		return normalizeInt(int64(x))
	case int16:
		return normalizeInt(int64(x))
	case int32:
		return normalizeInt(int64(x))
	case int64:
		return normalizeInt(x)
	case uint:
		return normalizeUint(uint64(x))
	case uint8:
		return normalizeUint(uint64(x))
	case uint16:
		return normalizeUint(uint64(x))
	case uint32:
		return normalizeUint(uint64(x))
	case uint64:
		return normalizeUint(x)
	case float32:
		return normalizeFloat(float64(x))
	case float64:
		return normalizeFloat(x)
	case json.Number:
		return normalizeString(x.String())
	case fmt.Stringer:
		return normalizeString(x.String())
	default:
		return "", &FormatError{Input: fmt.Sprint(v), Reason: fmt.Sprintf("%s %T", ReasonUnsupported, v)}
	}
}

// Valid reports whether s is already in canonical form.
func Valid(s string) bool {
	return len(s) == Length && allDigits(s)
}

func normalizeString(raw string) (string, error) {
	s := strings.TrimSpace(width.Fold.String(raw))
	if s == "" || nullTokens[strings.ToLower(s)] {
		return "", &FormatError{Input: raw, Reason: ReasonMissing}
	}

	// "2134.0" comes from float columns rendered as text.
	if i := strings.IndexByte(s, '.'); i >= 0 {
		if strings.Trim(s[i+1:], "0") != "" {
			return "", &FormatError{Input: raw, Reason: ReasonFractional}
		}
		s = s[:i]
	}

	// The base ZIP is the part before a ZIP+4 separator; "2134-5678"
	// keeps "2134", not the first five digits of the run.
	parts := strings.FieldsFunc(s, isSeparator)
	if len(parts) == 0 {
		return "", &FormatError{Input: raw, Reason: ReasonNonNumeric}
	}
	for _, p := range parts {
		if !allDigits(p) {
			return "", &FormatError{Input: raw, Reason: ReasonNonNumeric}
		}
	}
	return pad(parts[0]), nil
}

func isSeparator(r rune) bool {
	return r == '-' || r == '–' || unicode.IsSpace(r)
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

func normalizeInt(n int64) (string, error) {
	if n < 0 {
		return "", &FormatError{Input: strconv.FormatInt(n, 10), Reason: ReasonNegative}
	}
	return normalizeUint(uint64(n))
}

func normalizeUint(n uint64) (string, error) {
	return pad(strconv.FormatUint(n, 10)), nil
}

func normalizeFloat(f float64) (string, error) {
	input := strconv.FormatFloat(f, 'f', -1, 64)
	switch {
	case math.IsNaN(f):
		return "", &FormatError{Input: input, Reason: ReasonMissing}
	case math.IsInf(f, 0):
		return "", &FormatError{Input: input, Reason: ReasonNonNumeric}
	case f == 0:
		return pad("0"), nil
	case f < 0:
		return "", &FormatError{Input: input, Reason: ReasonNegative}
	case f != math.Trunc(f):
		return "", &FormatError{Input: input, Reason: ReasonFractional}
	}
	return pad(input), nil
}

// pad truncates digits to Length and left-pads with zeros.
func pad(digits string) string {
	if len(digits) >= Length {
		return digits[:Length]
	}
	return strings.Repeat("0", Length-len(digits)) + digits
}
