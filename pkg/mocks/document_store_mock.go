// Package mocks provides mock implementations of the engine's interfaces
// for testing.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/tracio/approvalflow/pkg/documents"
)

// MockDocumentStore is a mock implementation of documents.Store.
type MockDocumentStore struct {
	mock.Mock
}

func (m *MockDocumentStore) GetStatus(ctx context.Context, docType, docID string) (string, error) {
	args := m.Called(ctx, docType, docID)

	return args.String(0), args.Error(1)
}

func (m *MockDocumentStore) GetFields(ctx context.Context, docType, docID string) (documents.Fields, error) {
	args := m.Called(ctx, docType, docID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(documents.Fields), args.Error(1)
}

func (m *MockDocumentStore) UpdateFields(ctx context.Context, docType, docID string, fields documents.Fields) error {
	args := m.Called(ctx, docType, docID, fields)

	return args.Error(0)
}

func (m *MockDocumentStore) CompareAndSwapStatus(ctx context.Context, docType, docID, expectedStatus, targetStatus string) error {
	args := m.Called(ctx, docType, docID, expectedStatus, targetStatus)

	return args.Error(0)
}
