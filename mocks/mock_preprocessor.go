package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"fiscora/internal/domain"
)

// MockPreprocessor is a mock implementation of port.Preprocessor.
type MockPreprocessor struct {
	mock.Mock
}

func (m *MockPreprocessor) Apply(ctx context.Context, image []byte, step domain.PreprocessStep, opts domain.PreprocessOptions) ([]byte, error) {
	args := m.Called(ctx, image, step, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
