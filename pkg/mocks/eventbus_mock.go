package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/tracio/approvalflow/pkg/eventbus"
	"github.com/tracio/approvalflow/pkg/events"
)

// MockEventBus is a mock implementation of eventbus.EventBus.
type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) PublishToRole(ctx context.Context, role string, event eventbus.Event) error {
	args := m.Called(ctx, role, event)

	return args.Error(0)
}

func (m *MockEventBus) PublishToDocument(ctx context.Context, documentID string, event eventbus.Event) error {
	args := m.Called(ctx, documentID, event)

	return args.Error(0)
}

func (m *MockEventBus) Handle(eventType events.EventType, handler eventbus.EventHandler) error {
	args := m.Called(eventType, handler)

	return args.Error(0)
}

func (m *MockEventBus) Subscribe(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockEventBus) Close() error {
	args := m.Called()

	return args.Error(0)
}

func (m *MockEventBus) GenerateID() string {
	args := m.Called()

	return args.String(0)
}
