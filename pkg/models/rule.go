// Package models defines the core domain models for document approval workflows.
package models

import "time"

// ApprovalWorkflowRule maps an amount range for a document type to the role
// that must approve it and the SLA the approver is held to. MinAmount is
// inclusive; a nil MaxAmount means the range is unbounded above, otherwise
// the bound is inclusive.
type ApprovalWorkflowRule struct {
	ID           string    `json:"id"`
	DocumentType string    `json:"document_type" validate:"required"`
	MinAmount    float64   `json:"min_amount"    validate:"gte=0"`
	MaxAmount    *float64  `json:"max_amount,omitempty"`
	ApproverRole string    `json:"approver_role" validate:"required"`
	SLAHours     int       `json:"sla_hours"     validate:"gt=0"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Matches reports whether amount falls inside this rule's range.
func (r *ApprovalWorkflowRule) Matches(amount float64) bool {
	if amount < r.MinAmount {
		return false
	}

	return r.MaxAmount == nil || amount <= *r.MaxAmount
}

// PolicyDecision is the outcome of resolving the approval policy for a
// document: who has to approve it and how long they have.
type PolicyDecision struct {
	ApproverRole string `json:"approver_role"`
	SLAHours     int    `json:"sla_hours"`
}
