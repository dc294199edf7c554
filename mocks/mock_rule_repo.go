package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"fiscora/internal/port"
)

// MockRuleRepo is a mock implementation of port.RuleRepository.
type MockRuleRepo struct {
	mock.Mock
}

func (m *MockRuleRepo) ListRules(ctx context.Context) ([]port.RuleConfig, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]port.RuleConfig), args.Error(1)
}

func (m *MockRuleRepo) Hierarchy(ctx context.Context) (*port.HierarchyConfig, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.HierarchyConfig), args.Error(1)
}
