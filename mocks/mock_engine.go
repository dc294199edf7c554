package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"fiscora/internal/domain"
)

// MockEngine is a mock implementation of port.Engine.
type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) Run(ctx context.Context, image []byte, opts domain.OCROptions) (*domain.TokenStream, error) {
	args := m.Called(ctx, image, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TokenStream), args.Error(1)
}

func (m *MockEngine) IsAvailable() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockEngine) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockEngine) Version() string {
	args := m.Called()
	return args.String(0)
}
