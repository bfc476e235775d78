package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/tracio/approvalflow/pkg/audit"
)

// MockAuditSink is a mock implementation of audit.Sink.
type MockAuditSink struct {
	mock.Mock
}

func (m *MockAuditSink) Record(ctx context.Context, entry audit.Entry) error {
	args := m.Called(ctx, entry)

	return args.Error(0)
}
