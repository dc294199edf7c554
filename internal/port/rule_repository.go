package port

import (
	"context"

	"fiscora/internal/domain"
)

// RuleConfig is one injected business-rule definition. Rule logic lives in
// the validator; the repository only supplies which rules run and how.
type RuleConfig struct {
	Key      string            `json:"key" db:"rule_key"`
	Enabled  bool              `json:"enabled" db:"enabled"`
	Severity domain.Severity   `json:"severity" db:"severity"`
	Params   map[string]string `json:"params"`
}

// HierarchyConfig selects the mandat/bordereau comparator.
type HierarchyConfig struct {
	Comparator string `json:"comparator" db:"comparator"`
}

// RuleRepository supplies validation rule sets and the hierarchy comparator
// configuration to the validation engine.
type RuleRepository interface {
	ListRules(ctx context.Context) ([]RuleConfig, error)
	Hierarchy(ctx context.Context) (*HierarchyConfig, error)
}
