// Package fiscal holds the built-in validation rules for Cameroonian fiscal
// documents: reference grammar checks, cross-field business rules and the
// mandat/bordereau hierarchy comparators.
package fiscal

import (
	"fmt"
	"strconv"
	"time"

	"fiscora/internal/domain"
)

// FormatIssues runs the structural per-field checks and returns one
// error-severity issue per failing field. Severity downgrades for
// non-strict mode are the validation engine's concern, not this package's.
func FormatIssues(result *domain.ExtractionResult) []domain.ValidationIssue {
	var issues []domain.ValidationIssue
	data := result.ExtractedData

	if f := data.Mandat; f != nil {
		if !domain.ValidReferenceNumber(domain.ReferenceNumber(f.Value)) {
			issues = append(issues, domain.ValidationIssue{
				Severity: domain.SeverityError,
				Field:    "mandat",
				Message:  fmt.Sprintf("mandate reference %q does not match MD/NNNNNNN with a valid year prefix", f.Value),
				Rule:     "fmt.mandat",
			})
		}
	}
	if f := data.Bordereau; f != nil {
		if !domain.ValidReferenceNumber(domain.ReferenceNumber(f.Value)) {
			issues = append(issues, domain.ValidationIssue{
				Severity: domain.SeverityError,
				Field:    "bordereau",
				Message:  fmt.Sprintf("bordereau reference %q does not match BOR/NNNNNNN with a valid year prefix", f.Value),
				Rule:     "fmt.bordereau",
			})
		}
	}
	if f := data.Exercice; f != nil {
		if !validExerciceYear(f.Value) {
			issues = append(issues, domain.ValidationIssue{
				Severity: domain.SeverityError,
				Field:    "exercice",
				Message:  fmt.Sprintf("fiscal year %q is outside the accepted 2015-2030 window", f.Value),
				Rule:     "fmt.exercice",
			})
		}
	}
	for i, f := range data.Dates {
		if _, err := time.Parse("2006-01-02", f.Value); err != nil {
			issues = append(issues, domain.ValidationIssue{
				Severity: domain.SeverityError,
				Field:    fmt.Sprintf("dates[%d]", i),
				Message:  fmt.Sprintf("date %q is not a parseable calendar date", f.Value),
				Rule:     "fmt.date",
			})
		}
	}
	for i, f := range data.Amounts {
		v, err := strconv.ParseFloat(f.Value, 64)
		if err != nil || v < 0 {
			issues = append(issues, domain.ValidationIssue{
				Severity: domain.SeverityError,
				Field:    fmt.Sprintf("amounts[%d]", i),
				Message:  fmt.Sprintf("amount %q is not a non-negative number", f.Value),
				Rule:     "fmt.amount",
			})
		}
	}
	return issues
}

func validExerciceYear(s string) bool {
	year, err := strconv.Atoi(s)
	if err != nil {
		return false
	}
	return year >= 2015 && year <= 2030
}
