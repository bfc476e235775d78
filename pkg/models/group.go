package models

import "time"

// QuorumMode selects how a parallel approval group resolves.
type QuorumMode string

const (
	// QuorumModeAll requires unanimous approval; a single rejection
	// resolves the group rejected.
	QuorumModeAll QuorumMode = "all"
	// QuorumModeAny resolves the group approved on the first approval; a
	// full rejection requires every approver to reject.
	QuorumModeAny QuorumMode = "any"
)

// GroupStatus is the lifecycle state of a parallel approval group.
type GroupStatus string

const (
	GroupStatusPending  GroupStatus = "pending"
	GroupStatusApproved GroupStatus = "approved"
	GroupStatusRejected GroupStatus = "rejected"
)

// Decision is a single approver's vote.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// ParallelApprovalGroup is a set of approvers who must jointly decide on
// one document-level action. The roster is fixed at creation time; once
// Status leaves pending the group is immutable.
type ParallelApprovalGroup struct {
	ID            string      `json:"id"`
	DocumentType  string      `json:"document_type"  validate:"required"`
	DocumentID    string      `json:"document_id"    validate:"required"`
	ApprovalLevel int         `json:"approval_level" validate:"gte=1"`
	Mode          QuorumMode  `json:"mode"           validate:"required,oneof=all any"`
	Status        GroupStatus `json:"status"`
	ApproverIDs   []string    `json:"approver_ids"   validate:"required,min=1,dive,required"`
	CreatedAt     time.Time   `json:"created_at"`
	CompletedAt   *time.Time  `json:"completed_at,omitempty"`
}

// Resolved reports whether the group has reached a terminal status.
func (g *ParallelApprovalGroup) Resolved() bool {
	return g.Status != GroupStatusPending
}

// HasApprover reports whether approverID is part of the group's roster.
func (g *ParallelApprovalGroup) HasApprover(approverID string) bool {
	for _, id := range g.ApproverIDs {
		if id == approverID {
			return true
		}
	}

	return false
}

// ParallelApprovalResponse records one approver's decision within a group.
// At most one response may exist per (group, approver) pair.
type ParallelApprovalResponse struct {
	ID         string    `json:"id"`
	GroupID    string    `json:"group_id"    validate:"required"`
	ApproverID string    `json:"approver_id" validate:"required"`
	Decision   Decision  `json:"decision"    validate:"required,oneof=approved rejected"`
	Comments   *string   `json:"comments,omitempty"`
	DecidedAt  time.Time `json:"decided_at"`
}

// CountDecisions tallies approvals and rejections in a response set.
func CountDecisions(responses []*ParallelApprovalResponse) (approved, rejected int) {
	for _, response := range responses {
		switch response.Decision {
		case DecisionApproved:
			approved++
		case DecisionRejected:
			rejected++
		}
	}

	return approved, rejected
}
