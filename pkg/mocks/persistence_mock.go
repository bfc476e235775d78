package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/tracio/approvalflow/pkg/models"
)

// MockRuleRepository is a mock implementation of persistence.RuleRepository.
type MockRuleRepository struct {
	mock.Mock
}

func (m *MockRuleRepository) GetByDocumentType(ctx context.Context, docType string) ([]models.ApprovalWorkflowRule, error) {
	args := m.Called(ctx, docType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]models.ApprovalWorkflowRule), args.Error(1)
}

func (m *MockRuleRepository) GetAll(ctx context.Context) ([]models.ApprovalWorkflowRule, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]models.ApprovalWorkflowRule), args.Error(1)
}

func (m *MockRuleRepository) Save(ctx context.Context, rule *models.ApprovalWorkflowRule) error {
	args := m.Called(ctx, rule)

	return args.Error(0)
}

func (m *MockRuleRepository) Delete(ctx context.Context, docType, id string) error {
	args := m.Called(ctx, docType, id)

	return args.Error(0)
}

// MockApproverRepository is a mock implementation of persistence.ApproverRepository.
type MockApproverRepository struct {
	mock.Mock
}

func (m *MockApproverRepository) GetByID(ctx context.Context, id string) (*models.Approver, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Approver), args.Error(1)
}

func (m *MockApproverRepository) ActiveByIDs(ctx context.Context, ids []string) ([]*models.Approver, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Approver), args.Error(1)
}

func (m *MockApproverRepository) Save(ctx context.Context, approver *models.Approver) error {
	args := m.Called(ctx, approver)

	return args.Error(0)
}

// MockGroupRepository is a mock implementation of persistence.GroupRepository.
type MockGroupRepository struct {
	mock.Mock
}

func (m *MockGroupRepository) Save(ctx context.Context, group *models.ParallelApprovalGroup) error {
	args := m.Called(ctx, group)

	return args.Error(0)
}

func (m *MockGroupRepository) GetByID(ctx context.Context, id string) (*models.ParallelApprovalGroup, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.ParallelApprovalGroup), args.Error(1)
}

func (m *MockGroupRepository) ResolveGroup(ctx context.Context, id string, status models.GroupStatus, completedAt time.Time) (bool, error) {
	args := m.Called(ctx, id, status, completedAt)

	return args.Bool(0), args.Error(1)
}

func (m *MockGroupRepository) SaveResponse(ctx context.Context, response *models.ParallelApprovalResponse) error {
	args := m.Called(ctx, response)

	return args.Error(0)
}

func (m *MockGroupRepository) ResponsesByGroup(ctx context.Context, groupID string) ([]*models.ParallelApprovalResponse, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.ParallelApprovalResponse), args.Error(1)
}

func (m *MockGroupRepository) PendingGroups(ctx context.Context) ([]*models.ParallelApprovalGroup, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.ParallelApprovalGroup), args.Error(1)
}
