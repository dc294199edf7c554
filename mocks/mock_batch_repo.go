package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"fiscora/internal/domain"
)

// MockBatchRepo is a mock implementation of port.BatchRepository.
type MockBatchRepo struct {
	mock.Mock
}

func (m *MockBatchRepo) Save(ctx context.Context, job *domain.BatchJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockBatchRepo) Get(ctx context.Context, id uuid.UUID) (*domain.BatchJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BatchJob), args.Error(1)
}

func (m *MockBatchRepo) List(ctx context.Context, offset, limit int) ([]domain.BatchJob, int, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.BatchJob), args.Int(1), args.Error(2)
}

func (m *MockBatchRepo) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
