package validator

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"fiscora/internal/domain"
	"fiscora/internal/port"
)

// Engine orchestrates the validation stages over one extraction result:
// format checks, injected business rules, then the hierarchy comparison.
type Engine struct {
	registry          *Registry
	ruleRepo          port.RuleRepository
	format            FormatFunc
	comparators       map[string]HierarchyComparator
	defaultComparator string
}

// NewEngine creates a validation engine. ruleRepo may be nil, in which case
// every registered rule runs at its default severity and the default
// hierarchy comparator applies. format may be nil to disable the format
// stage entirely.
func NewEngine(registry *Registry, ruleRepo port.RuleRepository, format FormatFunc) *Engine {
	return &Engine{
		registry:    registry,
		ruleRepo:    ruleRepo,
		format:      format,
		comparators: make(map[string]HierarchyComparator),
	}
}

// RegisterComparator makes a hierarchy comparator selectable by name. The
// first comparator registered is the default.
func (e *Engine) RegisterComparator(c HierarchyComparator) {
	if e.defaultComparator == "" {
		e.defaultComparator = c.Name()
	}
	e.comparators[c.Name()] = c
}

// Validate produces the validation report for result under cfg. It never
// fails: a broken rule is isolated and reported as a warning naming the rule.
func (e *Engine) Validate(ctx context.Context, result *domain.ExtractionResult, cfg domain.ExtractionConfig) *domain.ValidationReport {
	report := &domain.ValidationReport{
		Issues:         []domain.ValidationIssue{},
		HierarchyValid: true,
	}

	if cfg.Validation.ValidateFormat && e.format != nil {
		for _, issue := range e.format(result) {
			if !cfg.Validation.StrictMode {
				if conf, ok := fieldConfidence(result, issue.Field); ok && conf < cfg.OCR.ConfidenceThreshold {
					issue.Severity = domain.SeverityWarning
				}
			}
			report.Issues = append(report.Issues, issue)
		}
	}

	if cfg.Validation.ValidateBusinessRules {
		report.Issues = append(report.Issues, e.runBusinessRules(ctx, result)...)
		e.checkHierarchy(ctx, result, report)
	}

	report.ConfidenceScore = confidenceScore(result, cfg.Extract)
	report.IsValid = true
	for _, issue := range report.Issues {
		if issue.Severity == domain.SeverityError {
			report.IsValid = false
			break
		}
	}
	return report
}

// runBusinessRules executes the configured rule set. A panicking rule is
// recorded as a warning and the remaining rules still run.
func (e *Engine) runBusinessRules(ctx context.Context, result *domain.ExtractionResult) []domain.ValidationIssue {
	configs := e.ruleConfigs(ctx)

	var issues []domain.ValidationIssue
	for _, rule := range e.registry.All() {
		severity := rule.Severity()
		if rc, ok := configs[rule.Key()]; ok {
			if !rc.Enabled {
				continue
			}
			if rc.Severity != "" {
				severity = rc.Severity
			}
		}
		found, panicked := e.runRule(ctx, rule, result)
		for _, issue := range found {
			if !panicked && issue.Rule == rule.Key() {
				issue.Severity = severity
			}
			issues = append(issues, issue)
		}
	}
	return issues
}

func (e *Engine) runRule(ctx context.Context, rule Rule, result *domain.ExtractionResult) (issues []domain.ValidationIssue, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("validator.Engine: rule %s panicked: %v", rule.Key(), r)
			panicked = true
			issues = []domain.ValidationIssue{{
				Severity: domain.SeverityWarning,
				Field:    "",
				Message:  fmt.Sprintf("business rule %s failed to run: %v", rule.Key(), r),
				Rule:     rule.Key(),
			}}
		}
	}()
	return rule.Check(ctx, result), false
}

// ruleConfigs loads the injected rule configuration, keyed by rule key.
// A repository failure degrades to the registered defaults.
func (e *Engine) ruleConfigs(ctx context.Context) map[string]port.RuleConfig {
	out := make(map[string]port.RuleConfig)
	if e.ruleRepo == nil {
		return out
	}
	configs, err := e.ruleRepo.ListRules(ctx)
	if err != nil {
		log.Printf("validator.Engine: loading rule configs failed, using defaults: %v", err)
		return out
	}
	for _, rc := range configs {
		out[rc.Key] = rc
	}
	return out
}

func (e *Engine) checkHierarchy(ctx context.Context, result *domain.ExtractionResult, report *domain.ValidationReport) {
	mandat := result.ExtractedData.Mandat
	bordereau := result.ExtractedData.Bordereau
	if mandat == nil || bordereau == nil {
		// With one side missing the composite fact cannot be refuted.
		return
	}
	// Same for a reference the format stage already rejected.
	if !domain.ValidReferenceNumber(domain.ReferenceNumber(mandat.Value)) ||
		!domain.ValidReferenceNumber(domain.ReferenceNumber(bordereau.Value)) {
		return
	}

	comparator := e.comparators[e.defaultComparator]
	if e.ruleRepo != nil {
		if hc, err := e.ruleRepo.Hierarchy(ctx); err == nil && hc != nil {
			if c, ok := e.comparators[hc.Comparator]; ok {
				comparator = c
			} else {
				log.Printf("validator.Engine: unknown hierarchy comparator %q, using %s", hc.Comparator, e.defaultComparator)
			}
		}
	}
	if comparator == nil {
		return
	}

	ok, msg := comparator.Compare(mandat.Value, bordereau.Value)
	report.HierarchyValid = ok
	if !ok {
		report.Issues = append(report.Issues, domain.ValidationIssue{
			Severity: domain.SeverityError,
			Field:    "bordereau",
			Message:  msg,
			Rule:     "hier.mandat_bordereau",
		})
	}
}

// confidenceScore is the weighted mean of present field confidences.
// Required singular fields weigh 1.0 and contribute 0 when absent; the
// unbounded collections weigh 0.5 when enabled and non-empty.
func confidenceScore(result *domain.ExtractionResult, toggles domain.ExtractToggles) float64 {
	var sum, weight float64

	for _, ft := range toggles.RequiredFields() {
		weight += 1.0
		if f := result.ExtractedData.Field(ft); f != nil {
			sum += f.Confidence
		}
	}
	if toggles.Dates && len(result.ExtractedData.Dates) > 0 {
		weight += 0.5
		sum += 0.5 * meanConfidence(result.ExtractedData.Dates)
	}
	if toggles.Amounts && len(result.ExtractedData.Amounts) > 0 {
		weight += 0.5
		sum += 0.5 * meanConfidence(result.ExtractedData.Amounts)
	}

	if weight == 0 {
		return 0
	}
	return sum / weight
}

func meanConfidence(fields []domain.ExtractedField) float64 {
	if len(fields) == 0 {
		return 0
	}
	var sum float64
	for _, f := range fields {
		sum += f.Confidence
	}
	return sum / float64(len(fields))
}

// fieldConfidence resolves the confidence of the field an issue points at,
// including indexed references like "dates[2]".
func fieldConfidence(result *domain.ExtractionResult, field string) (float64, bool) {
	data := result.ExtractedData
	switch field {
	case "mandat", "bordereau", "exercice":
		if f := data.Field(domain.FieldType(field)); f != nil {
			return f.Confidence, true
		}
		return 0, false
	}
	for prefix, coll := range map[string][]domain.ExtractedField{"dates": data.Dates, "amounts": data.Amounts} {
		if strings.HasPrefix(field, prefix+"[") && strings.HasSuffix(field, "]") {
			idx, err := strconv.Atoi(field[len(prefix)+1 : len(field)-1])
			if err == nil && idx >= 0 && idx < len(coll) {
				return coll[idx].Confidence, true
			}
		}
	}
	return 0, false
}
