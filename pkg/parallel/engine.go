// Package parallel implements multi-approver approval groups with all/any
// quorum modes.
package parallel

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tracio/approvalflow/pkg/audit"
	"github.com/tracio/approvalflow/pkg/documents"
	"github.com/tracio/approvalflow/pkg/eventbus"
	"github.com/tracio/approvalflow/pkg/events"
	"github.com/tracio/approvalflow/pkg/locks"
	"github.com/tracio/approvalflow/pkg/models"
	"github.com/tracio/approvalflow/pkg/otelhelper"
	"github.com/tracio/approvalflow/pkg/persistence"
)

const groupsTable = "approval_groups"

var validate = validator.New()

// InvalidRosterError indicates a group roster references approvers that do
// not exist or are inactive.
type InvalidRosterError struct {
	Invalid []string
}

func (e *InvalidRosterError) Error() string {
	return fmt.Sprintf("approval group roster references unknown or inactive approvers: %s",
		strings.Join(e.Invalid, ", "))
}

// ApproverNotInGroupError indicates a response from an approver outside the
// group's fixed roster.
type ApproverNotInGroupError struct {
	GroupID    string
	ApproverID string
}

func (e *ApproverNotInGroupError) Error() string {
	return fmt.Sprintf("approver %s is not part of approval group %s", e.ApproverID, e.GroupID)
}

// Engine coordinates parallel approval groups. Response handling runs
// under a per-group lock, and the terminal status write is additionally
// conditional at the repository, so a group resolves exactly once even
// when engine instances on different nodes race.
type Engine struct {
	groups    persistence.GroupRepository
	approvers persistence.ApproverRepository
	store     documents.Store
	auditor   audit.Sink
	bus       eventbus.EventPublisher
	locker    locks.Locker
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

func NewEngine(
	groups persistence.GroupRepository,
	approvers persistence.ApproverRepository,
	store documents.Store,
	auditSink audit.Sink,
	bus eventbus.EventPublisher,
	locker locks.Locker,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		groups:    groups,
		approvers: approvers,
		store:     store,
		auditor:   audit.BestEffort(auditSink, logger),
		bus:       bus,
		locker:    locker,
		logger:    logger.With("module", "parallel"),
		tracer:    otelhelper.NoopTracer(),
		now:       time.Now,
	}
}

// WithTracer replaces the no-op tracer. Call before first use.
func (e *Engine) WithTracer(tracer trace.Tracer) *Engine {
	e.tracer = tracer

	return e
}

// WithClock fixes the time source, for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now

	return e
}

// CreateGroup opens a parallel approval group for a document. The roster is
// validated against the approver directory and fixed for the group's
// lifetime; unknown or inactive approvers fail creation with
// *InvalidRosterError.
func (e *Engine) CreateGroup(
	ctx context.Context,
	docType, docID string,
	approvalLevel int,
	mode models.QuorumMode,
	approverIDs []string,
	actorID string,
) (*models.ParallelApprovalGroup, error) {
	ctx, span := e.tracer.Start(ctx, "parallel.create_group", trace.WithAttributes(
		attribute.String(otelhelper.DocumentTypeKey, docType),
		attribute.String(otelhelper.DocumentIDKey, docID),
		attribute.String(otelhelper.QuorumModeKey, string(mode)),
	))
	defer span.End()

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate group id: %w", err)
	}

	group := &models.ParallelApprovalGroup{
		ID:            id.String(),
		DocumentType:  docType,
		DocumentID:    docID,
		ApprovalLevel: approvalLevel,
		Mode:          mode,
		Status:        models.GroupStatusPending,
		ApproverIDs:   dedupe(approverIDs),
		CreatedAt:     e.now().UTC(),
	}

	if err := validate.Struct(group); err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("invalid approval group: %w", err)
	}

	if _, err := e.store.GetStatus(ctx, docType, docID); err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to load document %s/%s: %w", docType, docID, err)
	}

	if err := e.assertRosterActive(ctx, group.ApproverIDs); err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if err := e.groups.Save(ctx, group); err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to save approval group: %w", err)
	}

	_ = e.auditor.Record(ctx, audit.Entry{
		TableName: groupsTable,
		RecordID:  group.ID,
		Action:    audit.ActionCreate,
		NewValues: map[string]any{
			"document_type":  docType,
			"document_id":    docID,
			"approval_level": approvalLevel,
			"mode":           mode,
			"approver_ids":   group.ApproverIDs,
		},
		ActorID: actorID,
	})

	e.publishToDocument(ctx, docID, events.ApprovalGroupCreated{
		BaseEvent:     e.baseEvent(events.ApprovalGroupCreatedEvent, docType, docID),
		GroupID:       group.ID,
		Mode:          mode,
		ApprovalLevel: approvalLevel,
		ApproverIDs:   group.ApproverIDs,
	})

	e.logger.InfoContext(ctx, "approval group created",
		"group_id", group.ID,
		"document_type", docType,
		"document_id", docID,
		"mode", mode,
		"approvers", len(group.ApproverIDs),
	)

	return group, nil
}

// Respond records one approver's decision and resolves the group only when
// the decision short-circuits its quorum mode: in all mode a single
// rejection rejects the group, in any mode a single approval approves it.
// Full roster tallies are never resolved here; they stay pending until
// EvaluateGroupCompletion confirms them against the expected roster size.
func (e *Engine) Respond(
	ctx context.Context,
	groupID, approverID string,
	decision models.Decision,
	comments *string,
) (*models.ParallelApprovalGroup, error) {
	ctx, span := e.tracer.Start(ctx, "parallel.respond", trace.WithAttributes(
		attribute.String(otelhelper.GroupIDKey, groupID),
		attribute.String(otelhelper.ApproverIDKey, approverID),
	))
	defer span.End()

	if decision != models.DecisionApproved && decision != models.DecisionRejected {
		err := fmt.Errorf("unsupported decision %q", decision)
		otelhelper.SetError(span, err)

		return nil, err
	}

	release, err := e.locker.Acquire(ctx, groupID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to lock approval group %s: %w", groupID, err)
	}
	defer release()

	group, err := e.groups.GetByID(ctx, groupID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if group.Resolved() {
		err := persistence.NewGroupError("Respond", groupID, persistence.ErrGroupAlreadyResolved)
		otelhelper.SetError(span, err)

		return nil, err
	}

	if !group.HasApprover(approverID) {
		err := &ApproverNotInGroupError{GroupID: groupID, ApproverID: approverID}
		otelhelper.SetError(span, err)

		return nil, err
	}

	responseID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate response id: %w", err)
	}

	response := &models.ParallelApprovalResponse{
		ID:         responseID.String(),
		GroupID:    groupID,
		ApproverID: approverID,
		Decision:   decision,
		Comments:   comments,
		DecidedAt:  e.now().UTC(),
	}

	if err := e.groups.SaveResponse(ctx, response); err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	responses, err := e.groups.ResponsesByGroup(ctx, groupID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to load responses for group %s: %w", groupID, err)
	}

	return e.resolveIfConclusive(ctx, span, group, responses)
}

// EvaluateGroupCompletion re-runs quorum evaluation against the stored
// responses. It is the slow-path companion to Respond: safe to call at any
// time, on resolved groups, and repeatedly, it only performs the terminal
// write when a full tally against expectedApproverCount is conclusive and
// the group is still pending.
func (e *Engine) EvaluateGroupCompletion(
	ctx context.Context,
	groupID string,
	expectedApproverCount int,
) (*models.ParallelApprovalGroup, error) {
	ctx, span := e.tracer.Start(ctx, "parallel.evaluate_group", trace.WithAttributes(
		attribute.String(otelhelper.GroupIDKey, groupID),
	))
	defer span.End()

	release, err := e.locker.Acquire(ctx, groupID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to lock approval group %s: %w", groupID, err)
	}
	defer release()

	group, err := e.groups.GetByID(ctx, groupID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if group.Resolved() {
		return group, nil
	}

	responses, err := e.groups.ResponsesByGroup(ctx, groupID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to load responses for group %s: %w", groupID, err)
	}

	approved, rejected := models.CountDecisions(responses)

	status, conclusive := outcome(group.Mode, approved, rejected, expectedApproverCount)
	if !conclusive {
		return group, nil
	}

	return e.resolve(ctx, span, group, status, approved, rejected)
}

// PendingForApprover lists the pending groups still waiting on a decision
// from approverID.
func (e *Engine) PendingForApprover(ctx context.Context, approverID string) ([]*models.ParallelApprovalGroup, error) {
	groups, err := e.groups.PendingGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending groups: %w", err)
	}

	pending := make([]*models.ParallelApprovalGroup, 0, len(groups))

	for _, group := range groups {
		if !group.HasApprover(approverID) {
			continue
		}

		responses, err := e.groups.ResponsesByGroup(ctx, group.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load responses for group %s: %w", group.ID, err)
		}

		if hasResponse(responses, approverID) {
			continue
		}

		pending = append(pending, group)
	}

	return pending, nil
}

func (e *Engine) resolveIfConclusive(
	ctx context.Context,
	span trace.Span,
	group *models.ParallelApprovalGroup,
	responses []*models.ParallelApprovalResponse,
) (*models.ParallelApprovalGroup, error) {
	approved, rejected := models.CountDecisions(responses)

	status, conclusive := shortCircuit(group.Mode, approved, rejected)
	if !conclusive {
		return group, nil
	}

	return e.resolve(ctx, span, group, status, approved, rejected)
}

// resolve performs the terminal status write. The repository write is
// conditional on the group still being pending; when another resolver won
// the race the fresh state is returned and no event is published.
func (e *Engine) resolve(
	ctx context.Context,
	span trace.Span,
	group *models.ParallelApprovalGroup,
	status models.GroupStatus,
	approved, rejected int,
) (*models.ParallelApprovalGroup, error) {
	completedAt := e.now().UTC()

	performed, err := e.groups.ResolveGroup(ctx, group.ID, status, completedAt)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if !performed {
		return e.groups.GetByID(ctx, group.ID)
	}

	group.Status = status
	group.CompletedAt = &completedAt

	_ = e.auditor.Record(ctx, audit.Entry{
		TableName: groupsTable,
		RecordID:  group.ID,
		Action:    audit.ActionResolve,
		OldValues: map[string]any{"status": models.GroupStatusPending},
		NewValues: map[string]any{
			"status":         status,
			"approved_count": approved,
			"rejected_count": rejected,
		},
		ActorID: "system",
	})

	e.publishToDocument(ctx, group.DocumentID, events.ApprovalGroupResolved{
		BaseEvent:     e.baseEvent(events.ApprovalGroupResolvedEvent, group.DocumentType, group.DocumentID),
		GroupID:       group.ID,
		Status:        status,
		ApprovedCount: approved,
		RejectedCount: rejected,
	})

	e.logger.InfoContext(ctx, "approval group resolved",
		"group_id", group.ID,
		"status", status,
		"approved", approved,
		"rejected", rejected,
	)

	return group, nil
}

func (e *Engine) assertRosterActive(ctx context.Context, approverIDs []string) error {
	active, err := e.approvers.ActiveByIDs(ctx, approverIDs)
	if err != nil {
		return fmt.Errorf("failed to look up approvers: %w", err)
	}

	found := make(map[string]bool, len(active))
	for _, approver := range active {
		found[approver.ID] = true
	}

	var invalid []string

	for _, id := range approverIDs {
		if !found[id] {
			invalid = append(invalid, id)
		}
	}

	if len(invalid) > 0 {
		sort.Strings(invalid)

		return &InvalidRosterError{Invalid: invalid}
	}

	return nil
}

// shortCircuit evaluates only the single-vote quorum rules: an all-mode
// rejection or an any-mode approval is conclusive regardless of the
// remaining votes.
func shortCircuit(mode models.QuorumMode, approved, rejected int) (models.GroupStatus, bool) {
	switch mode {
	case models.QuorumModeAll:
		if rejected > 0 {
			return models.GroupStatusRejected, true
		}
	case models.QuorumModeAny:
		if approved > 0 {
			return models.GroupStatusApproved, true
		}
	}

	return models.GroupStatusPending, false
}

// outcome evaluates the quorum rules against the full expected roster. The
// decision is conclusive as soon as no remaining vote could change it.
func outcome(mode models.QuorumMode, approved, rejected, expected int) (models.GroupStatus, bool) {
	switch mode {
	case models.QuorumModeAll:
		if rejected > 0 {
			return models.GroupStatusRejected, true
		}

		if approved >= expected {
			return models.GroupStatusApproved, true
		}
	case models.QuorumModeAny:
		if approved > 0 {
			return models.GroupStatusApproved, true
		}

		if rejected >= expected {
			return models.GroupStatusRejected, true
		}
	}

	return models.GroupStatusPending, false
}

func hasResponse(responses []*models.ParallelApprovalResponse, approverID string) bool {
	for _, response := range responses {
		if response.ApproverID == approverID {
			return true
		}
	}

	return false
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))

	for _, id := range ids {
		if seen[id] {
			continue
		}

		seen[id] = true
		out = append(out, id)
	}

	return out
}

func (e *Engine) baseEvent(eventType events.EventType, docType, docID string) events.BaseEvent {
	return events.BaseEvent{
		ID:           uuid.NewString(),
		Type:         eventType,
		Timestamp:    e.now().UTC(),
		DocumentType: docType,
		DocumentID:   docID,
	}
}

func (e *Engine) publishToDocument(ctx context.Context, docID string, event eventbus.Event) {
	err := e.bus.PublishToDocument(ctx, docID, event)
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to publish event",
			"event_type", event.GetType(),
			"document_id", docID,
			"error", err,
		)
	}
}
