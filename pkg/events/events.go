// Package events defines event types and structures for approval
// lifecycle notifications.
package events

import (
	"time"

	"github.com/tracio/approvalflow/pkg/models"
)

type EventType string

// Topic carries every approval event; consumers filter on the routing key
// and event type metadata.
const Topic = "approvalflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

// Routing key prefixes. Role-targeted events address an approver role's
// channel, document-targeted events address a single document's channel.
const (
	RoleKeyPrefix     = "role:"
	DocumentKeyPrefix = "document:"
)

const (
	// Single-approver workflow events.
	ApprovalRequestedEvent EventType = "approval.requested"
	ApprovalApprovedEvent  EventType = "approval.approved"
	ApprovalRejectedEvent  EventType = "approval.rejected"

	// Document lifecycle events.
	DocumentStatusChangedEvent EventType = "document.status.changed"

	// Parallel approval group events.
	ApprovalGroupCreatedEvent  EventType = "approval.group.created"
	ApprovalGroupResolvedEvent EventType = "approval.group.resolved"
)

type BaseEvent struct {
	ID           string         `json:"id"`
	Type         EventType      `json:"type"`
	Timestamp    time.Time      `json:"timestamp"`
	DocumentType string         `json:"document_type"`
	DocumentID   string         `json:"document_id"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// ApprovalRequested is published to the resolved approver role's channel
// when a document enters pending approval.
type ApprovalRequested struct {
	BaseEvent

	SubmitterID  string  `json:"submitter_id"`
	ApproverRole string  `json:"approver_role"`
	SLAHours     int     `json:"sla_hours"`
	Amount       float64 `json:"amount"`
}

func (e ApprovalRequested) GetType() EventType {
	return ApprovalRequestedEvent
}

type ApprovalApproved struct {
	BaseEvent

	ApprovedBy string `json:"approved_by"`
}

func (e ApprovalApproved) GetType() EventType {
	return ApprovalApprovedEvent
}

type ApprovalRejected struct {
	BaseEvent

	RejectedBy string `json:"rejected_by"`
	Reason     string `json:"reason"`
}

func (e ApprovalRejected) GetType() EventType {
	return ApprovalRejectedEvent
}

type DocumentStatusChanged struct {
	BaseEvent

	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
	ActorID   string `json:"actor_id"`
}

func (e DocumentStatusChanged) GetType() EventType {
	return DocumentStatusChangedEvent
}

type ApprovalGroupCreated struct {
	BaseEvent

	GroupID       string            `json:"group_id"`
	Mode          models.QuorumMode `json:"mode"`
	ApprovalLevel int               `json:"approval_level"`
	ApproverIDs   []string          `json:"approver_ids"`
}

func (e ApprovalGroupCreated) GetType() EventType {
	return ApprovalGroupCreatedEvent
}

// ApprovalGroupResolved is published exactly once per group, by whichever
// call performed the terminal status write.
type ApprovalGroupResolved struct {
	BaseEvent

	GroupID       string             `json:"group_id"`
	Status        models.GroupStatus `json:"status"`
	ApprovedCount int                `json:"approved_count"`
	RejectedCount int                `json:"rejected_count"`
}

func (e ApprovalGroupResolved) GetType() EventType {
	return ApprovalGroupResolvedEvent
}
