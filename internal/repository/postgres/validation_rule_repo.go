package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"fiscora/internal/domain"
	"fiscora/internal/port"
)

type validationRuleRepo struct {
	db *sqlx.DB
}

// NewValidationRuleRepo creates a new PostgreSQL-backed RuleRepository.
func NewValidationRuleRepo(db *sqlx.DB) port.RuleRepository {
	return &validationRuleRepo{db: db}
}

type ruleRow struct {
	Key      string `db:"rule_key"`
	Enabled  bool   `db:"enabled"`
	Severity string `db:"severity"`
	Params   []byte `db:"params"`
}

func (r *validationRuleRepo) ListRules(ctx context.Context) ([]port.RuleConfig, error) {
	var rows []ruleRow
	err := r.db.SelectContext(ctx, &rows,
		"SELECT rule_key, enabled, severity, params FROM validation_rules ORDER BY rule_key")
	if err != nil {
		return nil, fmt.Errorf("validationRuleRepo.ListRules: %w", err)
	}

	configs := make([]port.RuleConfig, 0, len(rows))
	for _, row := range rows {
		rc := port.RuleConfig{
			Key:      row.Key,
			Enabled:  row.Enabled,
			Severity: domain.Severity(row.Severity),
		}
		if len(row.Params) > 0 {
			if err := json.Unmarshal(row.Params, &rc.Params); err != nil {
				return nil, fmt.Errorf("validationRuleRepo.ListRules: unmarshaling params for %s: %w", row.Key, err)
			}
		}
		configs = append(configs, rc)
	}
	return configs, nil
}

func (r *validationRuleRepo) Hierarchy(ctx context.Context) (*port.HierarchyConfig, error) {
	var hc port.HierarchyConfig
	err := r.db.GetContext(ctx, &hc,
		"SELECT comparator FROM hierarchy_config ORDER BY updated_at DESC LIMIT 1")
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("validationRuleRepo.Hierarchy: %w", err)
	}
	return &hc, nil
}
