// Package approval implements the single-approver submission workflow:
// policy resolution, guarded status transitions, SLA clock management and
// lifecycle notifications.
package approval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tracio/approvalflow/pkg/audit"
	"github.com/tracio/approvalflow/pkg/documents"
	"github.com/tracio/approvalflow/pkg/eventbus"
	"github.com/tracio/approvalflow/pkg/events"
	"github.com/tracio/approvalflow/pkg/models"
	"github.com/tracio/approvalflow/pkg/otelhelper"
	"github.com/tracio/approvalflow/pkg/policy"
	"github.com/tracio/approvalflow/pkg/sla"
	"github.com/tracio/approvalflow/pkg/transitions"
)

// Approval actions accepted by ProcessApproval.
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

const defaultRejectionReason = "Rejected"

// Coordinator drives a document through the single-approver workflow. All
// mutations follow the same shape: validate against current state, perform
// the conditional status write, then record audit and events best-effort.
type Coordinator struct {
	store    documents.Store
	policies *policy.Resolver
	table    *transitions.Table
	auditor  audit.Sink
	bus      eventbus.EventPublisher
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

func NewCoordinator(
	store documents.Store,
	policies *policy.Resolver,
	table *transitions.Table,
	auditSink audit.Sink,
	bus eventbus.EventPublisher,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		store:    store,
		policies: policies,
		table:    table,
		auditor:  audit.BestEffort(auditSink, logger),
		bus:      bus,
		logger:   logger.With("module", "approval"),
		tracer:   otelhelper.NoopTracer(),
		now:      time.Now,
	}
}

// WithTracer replaces the no-op tracer. Call before first use.
func (c *Coordinator) WithTracer(tracer trace.Tracer) *Coordinator {
	c.tracer = tracer

	return c
}

// WithClock fixes the time source, for tests.
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	c.now = now

	return c
}

// SubmitForApproval moves a document into pending approval. The approval
// tier is resolved first so a document with no applicable policy is
// rejected before any state changes. The status write is conditional on
// the status read during validation, so two concurrent submissions cannot
// both succeed.
func (c *Coordinator) SubmitForApproval(
	ctx context.Context,
	docType, docID string,
	amount float64,
	submitterID string,
) (models.PolicyDecision, error) {
	ctx, span := c.tracer.Start(ctx, "approval.submit", trace.WithAttributes(
		attribute.String(otelhelper.DocumentTypeKey, docType),
		attribute.String(otelhelper.DocumentIDKey, docID),
	))
	defer span.End()

	decision, err := c.policies.Resolve(ctx, docType, amount)
	if err != nil {
		otelhelper.SetError(span, err)

		return models.PolicyDecision{}, err
	}

	span.SetAttributes(attribute.String(otelhelper.ApproverRoleKey, decision.ApproverRole))

	currentStatus, err := c.store.GetStatus(ctx, docType, docID)
	if err != nil {
		otelhelper.SetError(span, err)

		return models.PolicyDecision{}, fmt.Errorf("failed to load document %s/%s: %w", docType, docID, err)
	}

	if err := c.table.AssertTransition(docType, currentStatus, models.StatusPendingApproval); err != nil {
		otelhelper.SetError(span, err)

		return models.PolicyDecision{}, err
	}

	if err := c.store.CompareAndSwapStatus(ctx, docType, docID, currentStatus, models.StatusPendingApproval); err != nil {
		otelhelper.SetError(span, err)

		return models.PolicyDecision{}, fmt.Errorf("failed to update status of %s/%s: %w", docType, docID, err)
	}

	var state models.SlaState

	sla.Start(&state, decision.SLAHours, c.now())

	if err := c.store.UpdateFields(ctx, docType, docID, slaFields(state)); err != nil {
		otelhelper.SetError(span, err)

		return models.PolicyDecision{}, fmt.Errorf("failed to start sla clock for %s/%s: %w", docType, docID, err)
	}

	_ = c.auditor.Record(ctx, audit.Entry{
		TableName: docType,
		RecordID:  docID,
		Action:    audit.ActionStatusChange,
		OldValues: map[string]any{fieldStatus: currentStatus},
		NewValues: map[string]any{
			fieldStatus:     models.StatusPendingApproval,
			"approver_role": decision.ApproverRole,
			"sla_hours":     decision.SLAHours,
		},
		ActorID: submitterID,
	})

	base := c.baseEvent(events.ApprovalRequestedEvent, docType, docID)

	c.publishToRole(ctx, decision.ApproverRole, events.ApprovalRequested{
		BaseEvent:    base,
		SubmitterID:  submitterID,
		ApproverRole: decision.ApproverRole,
		SLAHours:     decision.SLAHours,
		Amount:       amount,
	})

	c.publishStatusChange(ctx, docType, docID, currentStatus, models.StatusPendingApproval, submitterID)

	c.logger.InfoContext(ctx, "document submitted for approval",
		"document_type", docType,
		"document_id", docID,
		"approver_role", decision.ApproverRole,
		"sla_hours", decision.SLAHours,
	)

	return decision, nil
}

// ProcessApproval records an approver's decision on a pending document.
// Action is ActionApprove or ActionReject; an empty comment on rejection
// is replaced with a default reason so the rejection field is never blank.
func (c *Coordinator) ProcessApproval(
	ctx context.Context,
	docType, docID, action, approverID, comments string,
) error {
	ctx, span := c.tracer.Start(ctx, "approval.process", trace.WithAttributes(
		attribute.String(otelhelper.DocumentTypeKey, docType),
		attribute.String(otelhelper.DocumentIDKey, docID),
		attribute.String(otelhelper.ApproverIDKey, approverID),
	))
	defer span.End()

	var targetStatus string

	switch action {
	case ActionApprove:
		targetStatus = models.StatusApproved
	case ActionReject:
		targetStatus = models.StatusRejected
	default:
		err := fmt.Errorf("unsupported approval action %q", action)
		otelhelper.SetError(span, err)

		return err
	}

	currentStatus, err := c.store.GetStatus(ctx, docType, docID)
	if err != nil {
		otelhelper.SetError(span, err)

		return fmt.Errorf("failed to load document %s/%s: %w", docType, docID, err)
	}

	if err := c.table.AssertTransition(docType, currentStatus, targetStatus); err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	if err := c.store.CompareAndSwapStatus(ctx, docType, docID, currentStatus, targetStatus); err != nil {
		otelhelper.SetError(span, err)

		return fmt.Errorf("failed to update status of %s/%s: %w", docType, docID, err)
	}

	decidedAt := c.now().UTC()
	fields := documents.Fields{}
	newValues := map[string]any{fieldStatus: targetStatus}

	if action == ActionApprove {
		fields[fieldApprovedBy] = approverID
		fields[fieldApprovedDate] = decidedAt.Format(time.RFC3339Nano)
		newValues[fieldApprovedBy] = approverID
	} else {
		reason := comments
		if reason == "" {
			reason = defaultRejectionReason
		}

		fields[fieldRejectionReason] = reason
		newValues[fieldRejectionReason] = reason
	}

	if err := c.store.UpdateFields(ctx, docType, docID, fields); err != nil {
		otelhelper.SetError(span, err)

		return fmt.Errorf("failed to record decision on %s/%s: %w", docType, docID, err)
	}

	_ = c.auditor.Record(ctx, audit.Entry{
		TableName: docType,
		RecordID:  docID,
		Action:    audit.ActionStatusChange,
		OldValues: map[string]any{fieldStatus: currentStatus},
		NewValues: newValues,
		ActorID:   approverID,
	})

	if action == ActionApprove {
		c.publishToDocument(ctx, docID, events.ApprovalApproved{
			BaseEvent:  c.baseEvent(events.ApprovalApprovedEvent, docType, docID),
			ApprovedBy: approverID,
		})
	} else {
		c.publishToDocument(ctx, docID, events.ApprovalRejected{
			BaseEvent:  c.baseEvent(events.ApprovalRejectedEvent, docType, docID),
			RejectedBy: approverID,
			Reason:     newValues[fieldRejectionReason].(string),
		})
	}

	c.publishStatusChange(ctx, docType, docID, currentStatus, targetStatus, approverID)

	c.logger.InfoContext(ctx, "approval decision processed",
		"document_type", docType,
		"document_id", docID,
		"action", action,
		"approver_id", approverID,
	)

	return nil
}

// HoldDocument pauses the SLA clock. Holding an already-paused document
// returns sla.ErrAlreadyOnHold.
func (c *Coordinator) HoldDocument(ctx context.Context, docType, docID, reason, actorID string) error {
	ctx, span := c.tracer.Start(ctx, "approval.hold", trace.WithAttributes(
		attribute.String(otelhelper.DocumentTypeKey, docType),
		attribute.String(otelhelper.DocumentIDKey, docID),
	))
	defer span.End()

	state, err := c.loadSlaState(ctx, docType, docID)
	if err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	if err := sla.Hold(&state, c.now(), reason); err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	if err := c.store.UpdateFields(ctx, docType, docID, slaFields(state)); err != nil {
		otelhelper.SetError(span, err)

		return fmt.Errorf("failed to hold sla clock for %s/%s: %w", docType, docID, err)
	}

	_ = c.auditor.Record(ctx, audit.Entry{
		TableName: docType,
		RecordID:  docID,
		Action:    audit.ActionStatusChange,
		NewValues: map[string]any{fieldStopClockReason: reason},
		ActorID:   actorID,
	})

	c.logger.InfoContext(ctx, "sla clock held",
		"document_type", docType,
		"document_id", docID,
		"reason", reason,
	)

	return nil
}

// ResumeDocument restarts a held SLA clock, extending the due date by the
// time spent on hold. Resuming a running document returns sla.ErrNotOnHold.
func (c *Coordinator) ResumeDocument(ctx context.Context, docType, docID, actorID string) error {
	ctx, span := c.tracer.Start(ctx, "approval.resume", trace.WithAttributes(
		attribute.String(otelhelper.DocumentTypeKey, docType),
		attribute.String(otelhelper.DocumentIDKey, docID),
	))
	defer span.End()

	state, err := c.loadSlaState(ctx, docType, docID)
	if err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	if err := sla.Resume(&state, c.now()); err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	if err := c.store.UpdateFields(ctx, docType, docID, slaFields(state)); err != nil {
		otelhelper.SetError(span, err)

		return fmt.Errorf("failed to resume sla clock for %s/%s: %w", docType, docID, err)
	}

	_ = c.auditor.Record(ctx, audit.Entry{
		TableName: docType,
		RecordID:  docID,
		Action:    audit.ActionStatusChange,
		NewValues: map[string]any{fieldStopClockReason: nil},
		ActorID:   actorID,
	})

	c.logger.InfoContext(ctx, "sla clock resumed",
		"document_type", docType,
		"document_id", docID,
	)

	return nil
}

// CompleteDocument moves a document to completed and freezes the SLA
// outcome. The returned flag is nil when the document was never under SLA
// tracking.
func (c *Coordinator) CompleteDocument(ctx context.Context, docType, docID, actorID string) (*bool, error) {
	ctx, span := c.tracer.Start(ctx, "approval.complete", trace.WithAttributes(
		attribute.String(otelhelper.DocumentTypeKey, docType),
		attribute.String(otelhelper.DocumentIDKey, docID),
	))
	defer span.End()

	currentStatus, err := c.store.GetStatus(ctx, docType, docID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to load document %s/%s: %w", docType, docID, err)
	}

	if err := c.table.AssertTransition(docType, currentStatus, models.StatusCompleted); err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if err := c.store.CompareAndSwapStatus(ctx, docType, docID, currentStatus, models.StatusCompleted); err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to update status of %s/%s: %w", docType, docID, err)
	}

	state, err := c.loadSlaState(ctx, docType, docID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	sla.Complete(&state, c.now())

	if err := c.store.UpdateFields(ctx, docType, docID, slaFields(state)); err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to record sla outcome for %s/%s: %w", docType, docID, err)
	}

	_ = c.auditor.Record(ctx, audit.Entry{
		TableName: docType,
		RecordID:  docID,
		Action:    audit.ActionStatusChange,
		OldValues: map[string]any{fieldStatus: currentStatus},
		NewValues: map[string]any{fieldStatus: models.StatusCompleted, fieldSlaMet: state.SlaMet},
		ActorID:   actorID,
	})

	c.publishStatusChange(ctx, docType, docID, currentStatus, models.StatusCompleted, actorID)

	return state.SlaMet, nil
}

func (c *Coordinator) loadSlaState(ctx context.Context, docType, docID string) (models.SlaState, error) {
	fields, err := c.store.GetFields(ctx, docType, docID)
	if err != nil {
		return models.SlaState{}, fmt.Errorf("failed to load document %s/%s: %w", docType, docID, err)
	}

	state, err := slaStateFromFields(fields)
	if err != nil {
		return models.SlaState{}, fmt.Errorf("failed to decode sla state of %s/%s: %w", docType, docID, err)
	}

	return state, nil
}

func (c *Coordinator) baseEvent(eventType events.EventType, docType, docID string) events.BaseEvent {
	return events.BaseEvent{
		ID:           uuid.NewString(),
		Type:         eventType,
		Timestamp:    c.now().UTC(),
		DocumentType: docType,
		DocumentID:   docID,
	}
}

func (c *Coordinator) publishStatusChange(ctx context.Context, docType, docID, oldStatus, newStatus, actorID string) {
	c.publishToDocument(ctx, docID, events.DocumentStatusChanged{
		BaseEvent: c.baseEvent(events.DocumentStatusChangedEvent, docType, docID),
		OldStatus: oldStatus,
		NewStatus: newStatus,
		ActorID:   actorID,
	})
}

func (c *Coordinator) publishToRole(ctx context.Context, role string, event eventbus.Event) {
	err := c.bus.PublishToRole(ctx, role, event)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to publish event",
			"event_type", event.GetType(),
			"role", role,
			"error", err,
		)
	}
}

func (c *Coordinator) publishToDocument(ctx context.Context, docID string, event eventbus.Event) {
	err := c.bus.PublishToDocument(ctx, docID, event)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to publish event",
			"event_type", event.GetType(),
			"document_id", docID,
			"error", err,
		)
	}
}
