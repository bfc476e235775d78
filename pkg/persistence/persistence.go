// Package persistence provides the data storage abstraction for approval
// rules, approvers and parallel approval groups.
package persistence

import (
	"context"
	"time"

	"github.com/tracio/approvalflow/pkg/models"
)

// RuleRepository stores the tiered approval policy configuration.
type RuleRepository interface {
	GetByDocumentType(ctx context.Context, docType string) ([]models.ApprovalWorkflowRule, error)
	GetAll(ctx context.Context) ([]models.ApprovalWorkflowRule, error)
	Save(ctx context.Context, rule *models.ApprovalWorkflowRule) error
	Delete(ctx context.Context, docType, id string) error
}

// ApproverRepository stores the approver directory.
type ApproverRepository interface {
	GetByID(ctx context.Context, id string) (*models.Approver, error)
	// ActiveByIDs returns the subset of ids that resolve to active
	// approvers. Missing or inactive ids are simply absent from the
	// result; callers diff against the request to build roster errors.
	ActiveByIDs(ctx context.Context, ids []string) ([]*models.Approver, error)
	Save(ctx context.Context, approver *models.Approver) error
}

// GroupRepository stores parallel approval groups and their responses.
type GroupRepository interface {
	Save(ctx context.Context, group *models.ParallelApprovalGroup) error
	GetByID(ctx context.Context, id string) (*models.ParallelApprovalGroup, error)

	// ResolveGroup transitions a group to a terminal status only if it is
	// still pending, and reports whether this call performed the
	// resolution. Implementations must make the check-and-set atomic so
	// concurrent resolvers cannot both win.
	ResolveGroup(ctx context.Context, id string, status models.GroupStatus, completedAt time.Time) (bool, error)

	// SaveResponse persists an approver's decision. A second response from
	// the same approver in the same group fails with ErrDuplicateResponse.
	SaveResponse(ctx context.Context, response *models.ParallelApprovalResponse) error
	ResponsesByGroup(ctx context.Context, groupID string) ([]*models.ParallelApprovalResponse, error)

	PendingGroups(ctx context.Context) ([]*models.ParallelApprovalGroup, error)
}

// Persistence aggregates the repositories behind one connection handle.
type Persistence interface {
	Rules() RuleRepository
	Approvers() ApproverRepository
	Groups() GroupRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
