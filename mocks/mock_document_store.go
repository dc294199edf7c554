package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"fiscora/internal/port"
)

// MockDocumentStore is a mock implementation of port.DocumentStore.
type MockDocumentStore struct {
	mock.Mock
}

func (m *MockDocumentStore) Fetch(ctx context.Context, ref string) (*port.Document, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.Document), args.Error(1)
}
