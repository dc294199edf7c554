package validator_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fiscora/internal/domain"
	"fiscora/internal/port"
	"fiscora/internal/validator"
	"fiscora/internal/validator/fiscal"
	"fiscora/mocks"
)

func field(t domain.FieldType, value string, conf float64) *domain.ExtractedField {
	return &domain.ExtractedField{Type: t, Value: value, Confidence: conf}
}

func validResult() *domain.ExtractionResult {
	return &domain.ExtractionResult{
		DocumentRef: "doc-1",
		ExtractedData: domain.ExtractedData{
			Mandat:    field(domain.FieldMandat, "MD/2412034", 0.92),
			Bordereau: field(domain.FieldBordereau, "BOR/2402756", 0.88),
			Exercice:  field(domain.FieldExercice, "2024", 0.95),
			Dates:     []domain.ExtractedField{{Type: domain.FieldDate, Value: "2024-03-15", Confidence: 0.9}},
			Amounts:   []domain.ExtractedField{{Type: domain.FieldAmount, Value: "5672860", Currency: "FCFA", Confidence: 0.85}},
		},
	}
}

func validationConfig() domain.ExtractionConfig {
	return domain.ExtractionConfig{
		Extract: domain.ExtractToggles{Mandat: true, Bordereau: true, Exercice: true, Dates: true, Amounts: true},
		OCR:     domain.OCROptions{ConfidenceThreshold: 0.6},
		Validation: domain.ValidationOptions{
			ValidateFormat:        true,
			ValidateBusinessRules: true,
		},
	}
}

func newEngine(ruleRepo port.RuleRepository) *validator.Engine {
	registry := validator.NewRegistry()
	for _, rule := range fiscal.BuiltinRules() {
		registry.Register(rule)
	}
	e := validator.NewEngine(registry, ruleRepo, fiscal.FormatIssues)
	e.RegisterComparator(fiscal.YearComparator{})
	e.RegisterComparator(fiscal.ExactYearComparator{})
	return e
}

func TestValidateCleanDocument(t *testing.T) {
	report := newEngine(nil).Validate(context.Background(), validResult(), validationConfig())

	assert.True(t, report.IsValid)
	assert.True(t, report.HierarchyValid)
	assert.Empty(t, report.Issues)
	assert.Greater(t, report.ConfidenceScore, 0.8)
}

func TestValidateHierarchy(t *testing.T) {
	t.Run("bordereau year after mandate year fails", func(t *testing.T) {
		result := validResult()
		result.ExtractedData.Bordereau = field(domain.FieldBordereau, "BOR/2502756", 0.88)

		report := newEngine(nil).Validate(context.Background(), result, validationConfig())

		assert.False(t, report.HierarchyValid)
		assert.False(t, report.IsValid)
		require.NotEmpty(t, report.Issues)
		found := false
		for _, issue := range report.Issues {
			if issue.Rule == "hier.mandat_bordereau" {
				found = true
				assert.Equal(t, domain.SeverityError, issue.Severity)
			}
		}
		assert.True(t, found)
	})

	t.Run("missing side is not refutable", func(t *testing.T) {
		result := validResult()
		result.ExtractedData.Bordereau = nil

		report := newEngine(nil).Validate(context.Background(), result, validationConfig())
		assert.True(t, report.HierarchyValid)
	})

	t.Run("configured exact comparator applies", func(t *testing.T) {
		repo := new(mocks.MockRuleRepo)
		repo.On("ListRules", context.Background()).Return([]port.RuleConfig{}, nil)
		repo.On("Hierarchy", context.Background()).Return(&port.HierarchyConfig{Comparator: "year_exact"}, nil)

		result := validResult()
		// One year apart: fine for year_lte, rejected by year_exact.
		result.ExtractedData.Bordereau = field(domain.FieldBordereau, "BOR/2302756", 0.88)

		report := newEngine(repo).Validate(context.Background(), result, validationConfig())
		assert.False(t, report.HierarchyValid)
	})
}

func TestValidateFormatStage(t *testing.T) {
	t.Run("malformed low confidence field downgrades without strict mode", func(t *testing.T) {
		result := validResult()
		result.ExtractedData.Mandat = field(domain.FieldMandat, "MD/12412034", 0.3)

		report := newEngine(nil).Validate(context.Background(), result, validationConfig())

		var mandatIssue *domain.ValidationIssue
		for i := range report.Issues {
			if report.Issues[i].Rule == "fmt.mandat" {
				mandatIssue = &report.Issues[i]
			}
		}
		require.NotNil(t, mandatIssue)
		assert.Equal(t, domain.SeverityWarning, mandatIssue.Severity)
		assert.True(t, report.IsValid)
	})

	t.Run("strict mode keeps error severity", func(t *testing.T) {
		result := validResult()
		result.ExtractedData.Mandat = field(domain.FieldMandat, "MD/12412034", 0.3)

		cfg := validationConfig()
		cfg.Validation.StrictMode = true
		report := newEngine(nil).Validate(context.Background(), result, cfg)

		assert.False(t, report.IsValid)
	})

	t.Run("high confidence malformed field stays an error", func(t *testing.T) {
		result := validResult()
		result.ExtractedData.Mandat = field(domain.FieldMandat, "MD/12412034", 0.95)

		report := newEngine(nil).Validate(context.Background(), result, validationConfig())
		assert.False(t, report.IsValid)
	})
}

func TestValidateBusinessRules(t *testing.T) {
	t.Run("currency conflict is an error", func(t *testing.T) {
		result := validResult()
		result.ExtractedData.Amounts = append(result.ExtractedData.Amounts,
			domain.ExtractedField{Type: domain.FieldAmount, Value: "100", Currency: "EUR", Confidence: 0.8})

		report := newEngine(nil).Validate(context.Background(), result, validationConfig())
		assert.False(t, report.IsValid)
	})

	t.Run("mandate year mismatch is a warning", func(t *testing.T) {
		result := validResult()
		result.ExtractedData.Exercice = field(domain.FieldExercice, "2023", 0.95)

		report := newEngine(nil).Validate(context.Background(), result, validationConfig())

		assert.True(t, report.IsValid)
		var rules []string
		for _, issue := range report.Issues {
			rules = append(rules, issue.Rule)
		}
		assert.Contains(t, rules, "biz.mandat_exercice_year")
	})

	t.Run("disabled rule is skipped", func(t *testing.T) {
		repo := new(mocks.MockRuleRepo)
		repo.On("ListRules", context.Background()).Return([]port.RuleConfig{
			{Key: "biz.mandat_exercice_year", Enabled: false},
		}, nil)
		repo.On("Hierarchy", context.Background()).Return(nil, nil)

		result := validResult()
		result.ExtractedData.Exercice = field(domain.FieldExercice, "2023", 0.95)

		report := newEngine(repo).Validate(context.Background(), result, validationConfig())
		for _, issue := range report.Issues {
			assert.NotEqual(t, "biz.mandat_exercice_year", issue.Rule)
		}
	})

	t.Run("repository failure degrades to defaults", func(t *testing.T) {
		repo := new(mocks.MockRuleRepo)
		repo.On("ListRules", context.Background()).Return(nil, errors.New("db down"))
		repo.On("Hierarchy", context.Background()).Return(nil, errors.New("db down"))

		report := newEngine(repo).Validate(context.Background(), validResult(), validationConfig())
		assert.True(t, report.IsValid)
	})

	t.Run("panicking rule becomes a warning naming the rule", func(t *testing.T) {
		registry := validator.NewRegistry()
		registry.Register(panicRule{})
		engine := validator.NewEngine(registry, nil, fiscal.FormatIssues)

		report := engine.Validate(context.Background(), validResult(), validationConfig())

		require.Len(t, report.Issues, 1)
		assert.Equal(t, domain.SeverityWarning, report.Issues[0].Severity)
		assert.Equal(t, "test.panic", report.Issues[0].Rule)
		assert.True(t, report.IsValid)
	})
}

func TestConfidenceScore(t *testing.T) {
	t.Run("absent required field drags the score down", func(t *testing.T) {
		full := newEngine(nil).Validate(context.Background(), validResult(), validationConfig())

		partial := validResult()
		partial.ExtractedData.Bordereau = nil
		partialReport := newEngine(nil).Validate(context.Background(), partial, validationConfig())

		assert.Less(t, partialReport.ConfidenceScore, full.ConfidenceScore)
	})

	t.Run("empty result scores zero", func(t *testing.T) {
		empty := &domain.ExtractionResult{DocumentRef: "doc-2"}
		report := newEngine(nil).Validate(context.Background(), empty, validationConfig())
		assert.Zero(t, report.ConfidenceScore)
	})
}

func TestBuiltinRules(t *testing.T) {
	rules := fiscal.BuiltinRules()
	require.NotEmpty(t, rules)

	registry := validator.NewRegistry()
	for _, r := range rules {
		assert.NotEmpty(t, r.Key())
		assert.NotEmpty(t, r.Name())
		registry.Register(r)
	}
	assert.Len(t, registry.All(), len(rules))
}

// panicRule simulates a buggy injected rule.
type panicRule struct{}

func (panicRule) Key() string               { return "test.panic" }
func (panicRule) Name() string              { return "Panics" }
func (panicRule) Severity() domain.Severity { return domain.SeverityError }
func (panicRule) Check(context.Context, *domain.ExtractionResult) []domain.ValidationIssue {
	panic("boom")
}
