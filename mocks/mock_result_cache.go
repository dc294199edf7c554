package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"fiscora/internal/domain"
	"fiscora/internal/port"
)

// MockResultCache is a mock implementation of port.ResultCache.
type MockResultCache struct {
	mock.Mock
}

func (m *MockResultCache) Get(ctx context.Context, fingerprint string) (*domain.CachedExtraction, bool, error) {
	args := m.Called(ctx, fingerprint)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.CachedExtraction), args.Bool(1), args.Error(2)
}

func (m *MockResultCache) Put(ctx context.Context, fingerprint string, value *domain.CachedExtraction, ttl time.Duration) error {
	args := m.Called(ctx, fingerprint, value, ttl)
	return args.Error(0)
}

func (m *MockResultCache) Invalidate(ctx context.Context, fingerprint string) error {
	args := m.Called(ctx, fingerprint)
	return args.Error(0)
}

func (m *MockResultCache) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockResultCache) Stats(ctx context.Context) (*port.CacheStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.CacheStats), args.Error(1)
}
