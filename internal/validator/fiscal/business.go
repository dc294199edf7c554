package fiscal

import (
	"context"
	"fmt"
	"time"

	"fiscora/internal/domain"
	"fiscora/internal/validator"
)

// businessRule implements validator.Rule with a closure check, mirroring how
// the format validators are built.
type businessRule struct {
	key      string
	name     string
	severity domain.Severity
	check    func(result *domain.ExtractionResult) []domain.ValidationIssue
}

func (r *businessRule) Key() string               { return r.key }
func (r *businessRule) Name() string              { return r.name }
func (r *businessRule) Severity() domain.Severity { return r.severity }

func (r *businessRule) Check(_ context.Context, result *domain.ExtractionResult) []domain.ValidationIssue {
	return r.check(result)
}

// BuiltinRules returns the built-in cross-field business rules. The rule set
// actually run is decided by the injected rule configuration.
func BuiltinRules() []validator.Rule {
	return []validator.Rule{
		&businessRule{
			key: "biz.amount_currency", name: "Amounts share one currency",
			severity: domain.SeverityError,
			check: func(res *domain.ExtractionResult) []domain.ValidationIssue {
				first := ""
				for i, a := range res.ExtractedData.Amounts {
					if a.Currency == "" {
						continue
					}
					if first == "" {
						first = a.Currency
						continue
					}
					if a.Currency != first {
						return []domain.ValidationIssue{{
							Severity: domain.SeverityError,
							Field:    fmt.Sprintf("amounts[%d]", i),
							Message:  fmt.Sprintf("currency %s conflicts with %s seen earlier in the document", a.Currency, first),
							Rule:     "biz.amount_currency",
						}}
					}
				}
				return nil
			},
		},
		&businessRule{
			key: "biz.date_not_future", name: "Emission dates are not in the future",
			severity: domain.SeverityError,
			check: func(res *domain.ExtractionResult) []domain.ValidationIssue {
				today := time.Now().UTC().Truncate(24 * time.Hour)
				var issues []domain.ValidationIssue
				for i, d := range res.ExtractedData.Dates {
					t, err := time.Parse("2006-01-02", d.Value)
					if err != nil {
						continue // format stage already reports this
					}
					if t.After(today) {
						issues = append(issues, domain.ValidationIssue{
							Severity: domain.SeverityError,
							Field:    fmt.Sprintf("dates[%d]", i),
							Message:  fmt.Sprintf("date %s lies in the future", d.Value),
							Rule:     "biz.date_not_future",
						})
					}
				}
				return issues
			},
		},
		&businessRule{
			key: "biz.mandat_exercice_year", name: "Mandate year matches fiscal year",
			severity: domain.SeverityWarning,
			check: func(res *domain.ExtractionResult) []domain.ValidationIssue {
				m, ex := res.ExtractedData.Mandat, res.ExtractedData.Exercice
				if m == nil || ex == nil {
					return nil
				}
				year, ok := domain.ReferenceYear(m.Value)
				if !ok {
					return nil
				}
				if fmt.Sprint(year) != ex.Value {
					return []domain.ValidationIssue{{
						Severity: domain.SeverityWarning,
						Field:    "mandat",
						Message:  fmt.Sprintf("mandate year %d does not match exercice %s", year, ex.Value),
						Rule:     "biz.mandat_exercice_year",
					}}
				}
				return nil
			},
		},
		&businessRule{
			key: "biz.dates_in_exercice", name: "Dates fall inside the fiscal year",
			severity: domain.SeverityWarning,
			check: func(res *domain.ExtractionResult) []domain.ValidationIssue {
				ex := res.ExtractedData.Exercice
				if ex == nil {
					return nil
				}
				var issues []domain.ValidationIssue
				for i, d := range res.ExtractedData.Dates {
					t, err := time.Parse("2006-01-02", d.Value)
					if err != nil {
						continue
					}
					if fmt.Sprint(t.Year()) != ex.Value {
						issues = append(issues, domain.ValidationIssue{
							Severity: domain.SeverityWarning,
							Field:    fmt.Sprintf("dates[%d]", i),
							Message:  fmt.Sprintf("date %s is outside exercice %s", d.Value, ex.Value),
							Rule:     "biz.dates_in_exercice",
						})
					}
				}
				return issues
			},
		},
	}
}
