package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Mandate and bordereau references share one grammar: a prefix, a separator
// and a 7-digit number whose first two digits are a year in 2019-2026.
const (
	MandatPrefix    = "MD"
	BordereauPrefix = "BOR"
)

const (
	refYearMin = 19
	refYearMax = 26
)

// ValidReferenceNumber reports whether number satisfies the reference grammar:
// exactly 7 digits with a valid 2-digit year prefix.
func ValidReferenceNumber(number string) bool {
	if len(number) != 7 {
		return false
	}
	for _, r := range number {
		if r < '0' || r > '9' {
			return false
		}
	}
	year, err := strconv.Atoi(number[:2])
	if err != nil {
		return false
	}
	return year >= refYearMin && year <= refYearMax
}

// FormatMandat renders the canonical mandate reference, e.g. "MD/2412034".
func FormatMandat(number string) string {
	return fmt.Sprintf("%s/%s", MandatPrefix, number)
}

// FormatBordereau renders the canonical bordereau reference, e.g. "BOR/2402756".
func FormatBordereau(number string) string {
	return fmt.Sprintf("%s/%s", BordereauPrefix, number)
}

// ReferenceNumber strips a known prefix and separator from ref, returning the
// bare 7-digit number. A bare number passes through unchanged.
func ReferenceNumber(ref string) string {
	for _, prefix := range []string{MandatPrefix, BordereauPrefix} {
		for _, sep := range []string{"/", "-", " "} {
			if strings.HasPrefix(ref, prefix+sep) {
				return ref[len(prefix)+len(sep):]
			}
		}
	}
	return ref
}

// ReferenceYear resolves the full year encoded in a reference, e.g.
// "MD/2412034" -> 2024. Returns false when the grammar does not hold.
func ReferenceYear(ref string) (int, bool) {
	number := ReferenceNumber(ref)
	if !ValidReferenceNumber(number) {
		return 0, false
	}
	prefix, _ := strconv.Atoi(number[:2])
	return 2000 + prefix, true
}

// ReferenceSerial resolves the sequential part of a reference, e.g.
// "MD/2412034" -> 12034.
func ReferenceSerial(ref string) (int, bool) {
	number := ReferenceNumber(ref)
	if !ValidReferenceNumber(number) {
		return 0, false
	}
	serial, _ := strconv.Atoi(number[2:])
	return serial, true
}
