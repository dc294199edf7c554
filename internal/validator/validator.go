package validator

import (
	"context"

	"fiscora/internal/domain"
)

// Rule is a single business-rule predicate over a full extraction result.
// New rules compose by registration; the engine never changes.
type Rule interface {
	Check(ctx context.Context, result *domain.ExtractionResult) []domain.ValidationIssue
	Key() string
	Name() string
	Severity() domain.Severity
}

// HierarchyComparator decides whether a bordereau reference is consistent
// with its mandate reference. The comparator in force is configuration.
type HierarchyComparator interface {
	Name() string
	Compare(mandatRef, bordereauRef string) (bool, string)
}

// FormatFunc reports per-field format findings for one extraction result.
// The engine treats it as a black box; the fiscal package provides the one
// used in production.
type FormatFunc func(result *domain.ExtractionResult) []domain.ValidationIssue
