package fiscal

import (
	"fmt"

	"fiscora/internal/domain"
)

// YearComparator accepts a bordereau whose encoded year does not exceed the
// mandate's year. This is the default hierarchy discipline: a bordereau is
// opened before or alongside the mandates it carries.
type YearComparator struct{}

func (YearComparator) Name() string { return "year_lte" }

func (YearComparator) Compare(mandatRef, bordereauRef string) (bool, string) {
	mYear, mOK := domain.ReferenceYear(mandatRef)
	bYear, bOK := domain.ReferenceYear(bordereauRef)
	if !mOK || !bOK {
		return false, "mandate or bordereau reference does not carry a readable year"
	}
	if bYear > mYear {
		return false, fmt.Sprintf("bordereau year %d is later than mandate year %d", bYear, mYear)
	}
	return true, ""
}

// ExactYearComparator requires both references to encode the same year.
// Stricter variant, selectable via configuration.
type ExactYearComparator struct{}

func (ExactYearComparator) Name() string { return "year_exact" }

func (ExactYearComparator) Compare(mandatRef, bordereauRef string) (bool, string) {
	mYear, mOK := domain.ReferenceYear(mandatRef)
	bYear, bOK := domain.ReferenceYear(bordereauRef)
	if !mOK || !bOK {
		return false, "mandate or bordereau reference does not carry a readable year"
	}
	if bYear != mYear {
		return false, fmt.Sprintf("bordereau year %d differs from mandate year %d", bYear, mYear)
	}
	return true, ""
}
