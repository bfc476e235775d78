package parallel

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tracio/approvalflow/pkg/events"
	"github.com/tracio/approvalflow/pkg/locks"
	"github.com/tracio/approvalflow/pkg/mocks"
	"github.com/tracio/approvalflow/pkg/models"
	"github.com/tracio/approvalflow/pkg/persistence"
	"github.com/tracio/approvalflow/pkg/persistence/file"
)

type engineFixture struct {
	engine    *Engine
	groups    *mocks.MockGroupRepository
	approvers *mocks.MockApproverRepository
	store     *mocks.MockDocumentStore
	auditSink *mocks.MockAuditSink
	bus       *mocks.MockEventBus
	locker    locks.Locker
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	groups := &mocks.MockGroupRepository{}
	approvers := &mocks.MockApproverRepository{}
	store := &mocks.MockDocumentStore{}
	auditSink := &mocks.MockAuditSink{}
	bus := &mocks.MockEventBus{}
	locker := locks.NewMemory()

	engine := NewEngine(groups, approvers, store, auditSink, bus, locker, slog.Default())

	return &engineFixture{
		engine:    engine,
		groups:    groups,
		approvers: approvers,
		store:     store,
		auditSink: auditSink,
		bus:       bus,
		locker:    locker,
	}
}

func (f *engineFixture) expectCollaterals() {
	f.auditSink.On("Record", mock.Anything, mock.Anything).Return(nil)
	f.bus.On("PublishToDocument", mock.Anything, mock.Anything, mock.Anything).Return(nil)
}

func pendingGroup(mode models.QuorumMode, approverIDs ...string) *models.ParallelApprovalGroup {
	return &models.ParallelApprovalGroup{
		ID:            "g-1",
		DocumentType:  "purchase_order",
		DocumentID:    "po-1",
		ApprovalLevel: 1,
		Mode:          mode,
		Status:        models.GroupStatusPending,
		ApproverIDs:   approverIDs,
		CreatedAt:     time.Now().UTC(),
	}
}

func activeApprovers(ids ...string) []*models.Approver {
	approvers := make([]*models.Approver, 0, len(ids))
	for _, id := range ids {
		approvers = append(approvers, &models.Approver{ID: id, Role: "manager", Active: true})
	}

	return approvers
}

func TestEngine_CreateGroup(t *testing.T) {
	f := newEngineFixture(t)

	f.store.On("GetStatus", mock.Anything, "purchase_order", "po-1").Return(models.StatusPendingApproval, nil)
	f.approvers.On("ActiveByIDs", mock.Anything, []string{"a1", "a2"}).Return(activeApprovers("a1", "a2"), nil)
	f.groups.On("Save", mock.Anything, mock.MatchedBy(func(group *models.ParallelApprovalGroup) bool {
		return group.Status == models.GroupStatusPending && len(group.ApproverIDs) == 2
	})).Return(nil)
	f.expectCollaterals()

	group, err := f.engine.CreateGroup(t.Context(), "purchase_order", "po-1", 1, models.QuorumModeAll, []string{"a1", "a2"}, "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, group.ID)
	assert.Equal(t, models.GroupStatusPending, group.Status)

	f.bus.AssertCalled(t, "PublishToDocument", mock.Anything, "po-1", mock.MatchedBy(func(event any) bool {
		created, ok := event.(events.ApprovalGroupCreated)

		return ok && created.GroupID == group.ID && created.ID != ""
	}))
}

func TestEngine_CreateGroup_DeduplicatesRoster(t *testing.T) {
	f := newEngineFixture(t)

	f.store.On("GetStatus", mock.Anything, "purchase_order", "po-1").Return(models.StatusPendingApproval, nil)
	f.approvers.On("ActiveByIDs", mock.Anything, []string{"a1", "a2"}).Return(activeApprovers("a1", "a2"), nil)
	f.groups.On("Save", mock.Anything, mock.Anything).Return(nil)
	f.expectCollaterals()

	group, err := f.engine.CreateGroup(t.Context(), "purchase_order", "po-1", 1, models.QuorumModeAll, []string{"a1", "a2", "a1"}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2"}, group.ApproverIDs)
}

func TestEngine_CreateGroup_InvalidRosterListsAllBadIDs(t *testing.T) {
	f := newEngineFixture(t)

	f.store.On("GetStatus", mock.Anything, "purchase_order", "po-1").Return(models.StatusPendingApproval, nil)
	f.approvers.On("ActiveByIDs", mock.Anything, []string{"a1", "ghost", "inactive"}).Return(activeApprovers("a1"), nil)

	_, err := f.engine.CreateGroup(t.Context(), "purchase_order", "po-1", 1, models.QuorumModeAll, []string{"a1", "ghost", "inactive"}, "user-1")
	require.Error(t, err)

	var roster *InvalidRosterError

	require.True(t, errors.As(err, &roster))
	assert.Equal(t, []string{"ghost", "inactive"}, roster.Invalid)

	f.groups.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestEngine_CreateGroup_InvalidMode(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.CreateGroup(t.Context(), "purchase_order", "po-1", 1, "majority", []string{"a1"}, "user-1")
	require.Error(t, err)
}

func TestEngine_Respond_AllModeFirstRejectionWins(t *testing.T) {
	f := newEngineFixture(t)

	group := pendingGroup(models.QuorumModeAll, "a1", "a2", "a3")

	f.groups.On("GetByID", mock.Anything, "g-1").Return(group, nil)
	f.groups.On("SaveResponse", mock.Anything, mock.Anything).Return(nil)
	f.groups.On("ResponsesByGroup", mock.Anything, "g-1").Return([]*models.ParallelApprovalResponse{
		{ApproverID: "a1", Decision: models.DecisionApproved},
		{ApproverID: "a2", Decision: models.DecisionRejected},
	}, nil)
	f.groups.On("ResolveGroup", mock.Anything, "g-1", models.GroupStatusRejected, mock.Anything).Return(true, nil)
	f.expectCollaterals()

	resolved, err := f.engine.Respond(t.Context(), "g-1", "a2", models.DecisionRejected, nil)
	require.NoError(t, err)
	assert.Equal(t, models.GroupStatusRejected, resolved.Status)
	require.NotNil(t, resolved.CompletedAt)

	f.bus.AssertCalled(t, "PublishToDocument", mock.Anything, "po-1", mock.MatchedBy(func(event any) bool {
		resolvedEvent, ok := event.(events.ApprovalGroupResolved)

		return ok && resolvedEvent.Status == models.GroupStatusRejected && resolvedEvent.RejectedCount == 1
	}))
}

func TestEngine_Respond_AllModeStaysPendingUntilLastApproval(t *testing.T) {
	f := newEngineFixture(t)

	group := pendingGroup(models.QuorumModeAll, "a1", "a2", "a3")

	f.groups.On("GetByID", mock.Anything, "g-1").Return(group, nil)
	f.groups.On("SaveResponse", mock.Anything, mock.Anything).Return(nil)
	f.groups.On("ResponsesByGroup", mock.Anything, "g-1").Return([]*models.ParallelApprovalResponse{
		{ApproverID: "a1", Decision: models.DecisionApproved},
	}, nil)

	result, err := f.engine.Respond(t.Context(), "g-1", "a1", models.DecisionApproved, nil)
	require.NoError(t, err)
	assert.Equal(t, models.GroupStatusPending, result.Status)

	f.groups.AssertNotCalled(t, "ResolveGroup", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// A complete all-mode approval tally is not conclusive for Respond; the
// group stays pending until EvaluateGroupCompletion confirms it against the
// expected roster size.
func TestEngine_Respond_AllModeFullApprovalStaysPending(t *testing.T) {
	f := newEngineFixture(t)

	group := pendingGroup(models.QuorumModeAll, "a1", "a2")

	f.groups.On("GetByID", mock.Anything, "g-1").Return(group, nil)
	f.groups.On("SaveResponse", mock.Anything, mock.Anything).Return(nil)
	f.groups.On("ResponsesByGroup", mock.Anything, "g-1").Return([]*models.ParallelApprovalResponse{
		{ApproverID: "a1", Decision: models.DecisionApproved},
		{ApproverID: "a2", Decision: models.DecisionApproved},
	}, nil)

	result, err := f.engine.Respond(t.Context(), "g-1", "a2", models.DecisionApproved, nil)
	require.NoError(t, err)
	assert.Equal(t, models.GroupStatusPending, result.Status)

	f.groups.AssertNotCalled(t, "ResolveGroup", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.bus.AssertNotCalled(t, "PublishToDocument", mock.Anything, mock.Anything, mock.Anything)
}

func TestEngine_Respond_AnyModeFirstApprovalWins(t *testing.T) {
	f := newEngineFixture(t)

	group := pendingGroup(models.QuorumModeAny, "a1", "a2", "a3")

	f.groups.On("GetByID", mock.Anything, "g-1").Return(group, nil)
	f.groups.On("SaveResponse", mock.Anything, mock.Anything).Return(nil)
	f.groups.On("ResponsesByGroup", mock.Anything, "g-1").Return([]*models.ParallelApprovalResponse{
		{ApproverID: "a1", Decision: models.DecisionApproved},
	}, nil)
	f.groups.On("ResolveGroup", mock.Anything, "g-1", models.GroupStatusApproved, mock.Anything).Return(true, nil)
	f.expectCollaterals()

	resolved, err := f.engine.Respond(t.Context(), "g-1", "a1", models.DecisionApproved, nil)
	require.NoError(t, err)
	assert.Equal(t, models.GroupStatusApproved, resolved.Status)
}

// The any-mode mirror: full rejection is a roster-wide outcome, not a
// short-circuit, so Respond leaves it to the completion check.
func TestEngine_Respond_AnyModeFullRejectionStaysPending(t *testing.T) {
	f := newEngineFixture(t)

	group := pendingGroup(models.QuorumModeAny, "a1", "a2")

	f.groups.On("GetByID", mock.Anything, "g-1").Return(group, nil)
	f.groups.On("SaveResponse", mock.Anything, mock.Anything).Return(nil)
	f.groups.On("ResponsesByGroup", mock.Anything, "g-1").Return([]*models.ParallelApprovalResponse{
		{ApproverID: "a1", Decision: models.DecisionRejected},
		{ApproverID: "a2", Decision: models.DecisionRejected},
	}, nil)

	result, err := f.engine.Respond(t.Context(), "g-1", "a2", models.DecisionRejected, nil)
	require.NoError(t, err)
	assert.Equal(t, models.GroupStatusPending, result.Status)

	f.groups.AssertNotCalled(t, "ResolveGroup", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEngine_Respond_ResolvedGroupRejectsLateVote(t *testing.T) {
	f := newEngineFixture(t)

	group := pendingGroup(models.QuorumModeAny, "a1", "a2")
	group.Status = models.GroupStatusApproved

	f.groups.On("GetByID", mock.Anything, "g-1").Return(group, nil)

	_, err := f.engine.Respond(t.Context(), "g-1", "a2", models.DecisionApproved, nil)
	require.Error(t, err)
	assert.True(t, persistence.IsGroupAlreadyResolved(err))

	f.groups.AssertNotCalled(t, "SaveResponse", mock.Anything, mock.Anything)
}

func TestEngine_Respond_OutsideRoster(t *testing.T) {
	f := newEngineFixture(t)

	f.groups.On("GetByID", mock.Anything, "g-1").Return(pendingGroup(models.QuorumModeAll, "a1", "a2"), nil)

	_, err := f.engine.Respond(t.Context(), "g-1", "intruder", models.DecisionApproved, nil)
	require.Error(t, err)

	var outside *ApproverNotInGroupError

	require.True(t, errors.As(err, &outside))
	assert.Equal(t, "intruder", outside.ApproverID)
}

func TestEngine_Respond_DuplicateVote(t *testing.T) {
	f := newEngineFixture(t)

	f.groups.On("GetByID", mock.Anything, "g-1").Return(pendingGroup(models.QuorumModeAll, "a1", "a2"), nil)
	f.groups.On("SaveResponse", mock.Anything, mock.Anything).
		Return(persistence.NewGroupError("SaveResponse", "g-1", persistence.ErrDuplicateResponse))

	_, err := f.engine.Respond(t.Context(), "g-1", "a1", models.DecisionApproved, nil)
	require.Error(t, err)
	assert.True(t, persistence.IsDuplicateResponse(err))

	f.groups.AssertNotCalled(t, "ResolveGroup", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEngine_Respond_UnknownGroup(t *testing.T) {
	f := newEngineFixture(t)

	f.groups.On("GetByID", mock.Anything, "missing").
		Return(nil, persistence.NewGroupError("GetByID", "missing", persistence.ErrGroupNotFound))

	_, err := f.engine.Respond(t.Context(), "missing", "a1", models.DecisionApproved, nil)
	require.Error(t, err)
	assert.True(t, persistence.IsGroupNotFound(err))
}

func TestEngine_Respond_UnsupportedDecision(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.Respond(t.Context(), "g-1", "a1", "abstain", nil)
	require.Error(t, err)
}

func TestEngine_Respond_LostResolutionRaceEmitsNoEvent(t *testing.T) {
	f := newEngineFixture(t)

	group := pendingGroup(models.QuorumModeAny, "a1", "a2")
	resolvedGroup := pendingGroup(models.QuorumModeAny, "a1", "a2")
	resolvedGroup.Status = models.GroupStatusApproved

	f.groups.On("GetByID", mock.Anything, "g-1").Return(group, nil).Once()
	f.groups.On("SaveResponse", mock.Anything, mock.Anything).Return(nil)
	f.groups.On("ResponsesByGroup", mock.Anything, "g-1").Return([]*models.ParallelApprovalResponse{
		{ApproverID: "a1", Decision: models.DecisionApproved},
	}, nil)

	// Another node already performed the terminal write.
	f.groups.On("ResolveGroup", mock.Anything, "g-1", models.GroupStatusApproved, mock.Anything).Return(false, nil)
	f.groups.On("GetByID", mock.Anything, "g-1").Return(resolvedGroup, nil)

	result, err := f.engine.Respond(t.Context(), "g-1", "a1", models.DecisionApproved, nil)
	require.NoError(t, err)
	assert.Equal(t, models.GroupStatusApproved, result.Status)

	f.bus.AssertNotCalled(t, "PublishToDocument", mock.Anything, mock.Anything, mock.Anything)
}

func TestEngine_EvaluateGroupCompletion_Idempotent(t *testing.T) {
	f := newEngineFixture(t)

	group := pendingGroup(models.QuorumModeAll, "a1", "a2")
	group.Status = models.GroupStatusApproved

	f.groups.On("GetByID", mock.Anything, "g-1").Return(group, nil)

	result, err := f.engine.EvaluateGroupCompletion(t.Context(), "g-1", 2)
	require.NoError(t, err)
	assert.Equal(t, models.GroupStatusApproved, result.Status)

	f.groups.AssertNotCalled(t, "ResolveGroup", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.bus.AssertNotCalled(t, "PublishToDocument", mock.Anything, mock.Anything, mock.Anything)
}

func TestEngine_EvaluateGroupCompletion_ResolvesFullTally(t *testing.T) {
	f := newEngineFixture(t)

	f.groups.On("GetByID", mock.Anything, "g-1").Return(pendingGroup(models.QuorumModeAll, "a1", "a2"), nil)
	f.groups.On("ResponsesByGroup", mock.Anything, "g-1").Return([]*models.ParallelApprovalResponse{
		{ApproverID: "a1", Decision: models.DecisionApproved},
		{ApproverID: "a2", Decision: models.DecisionApproved},
	}, nil)
	f.groups.On("ResolveGroup", mock.Anything, "g-1", models.GroupStatusApproved, mock.Anything).Return(true, nil)
	f.expectCollaterals()

	result, err := f.engine.EvaluateGroupCompletion(t.Context(), "g-1", 2)
	require.NoError(t, err)
	assert.Equal(t, models.GroupStatusApproved, result.Status)
}

func TestEngine_EvaluateGroupCompletion_AnyModeFullRejection(t *testing.T) {
	f := newEngineFixture(t)

	f.groups.On("GetByID", mock.Anything, "g-1").Return(pendingGroup(models.QuorumModeAny, "a1", "a2"), nil)
	f.groups.On("ResponsesByGroup", mock.Anything, "g-1").Return([]*models.ParallelApprovalResponse{
		{ApproverID: "a1", Decision: models.DecisionRejected},
		{ApproverID: "a2", Decision: models.DecisionRejected},
	}, nil)
	f.groups.On("ResolveGroup", mock.Anything, "g-1", models.GroupStatusRejected, mock.Anything).Return(true, nil)
	f.expectCollaterals()

	result, err := f.engine.EvaluateGroupCompletion(t.Context(), "g-1", 2)
	require.NoError(t, err)
	assert.Equal(t, models.GroupStatusRejected, result.Status)
}

// The completion check shares the per-group lock with Respond; while a
// holder is active it cannot even read the group.
func TestEngine_EvaluateGroupCompletion_SerializedPerGroup(t *testing.T) {
	f := newEngineFixture(t)

	release, err := f.locker.Acquire(t.Context(), "g-1")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	_, err = f.engine.EvaluateGroupCompletion(ctx, "g-1", 2)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	f.groups.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestEngine_EvaluateGroupCompletion_IncompleteTallyStaysPending(t *testing.T) {
	f := newEngineFixture(t)

	f.groups.On("GetByID", mock.Anything, "g-1").Return(pendingGroup(models.QuorumModeAll, "a1", "a2"), nil)
	f.groups.On("ResponsesByGroup", mock.Anything, "g-1").Return([]*models.ParallelApprovalResponse{
		{ApproverID: "a1", Decision: models.DecisionApproved},
	}, nil)

	result, err := f.engine.EvaluateGroupCompletion(t.Context(), "g-1", 2)
	require.NoError(t, err)
	assert.Equal(t, models.GroupStatusPending, result.Status)

	f.groups.AssertNotCalled(t, "ResolveGroup", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEngine_PendingForApprover(t *testing.T) {
	f := newEngineFixture(t)

	waiting := pendingGroup(models.QuorumModeAll, "a1", "a2")
	answered := pendingGroup(models.QuorumModeAll, "a1", "a3")
	answered.ID = "g-2"
	other := pendingGroup(models.QuorumModeAll, "a3")
	other.ID = "g-3"

	f.groups.On("PendingGroups", mock.Anything).
		Return([]*models.ParallelApprovalGroup{waiting, answered, other}, nil)
	f.groups.On("ResponsesByGroup", mock.Anything, "g-1").Return([]*models.ParallelApprovalResponse{}, nil)
	f.groups.On("ResponsesByGroup", mock.Anything, "g-2").Return([]*models.ParallelApprovalResponse{
		{ApproverID: "a1", Decision: models.DecisionApproved},
	}, nil)

	pending, err := f.engine.PendingForApprover(t.Context(), "a1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "g-1", pending[0].ID)
}

// Two approvers vote concurrently in any mode; the per-group lock plus the
// conditional terminal write must produce exactly one resolution and one
// resolution event.
func TestEngine_Respond_ConcurrentResolutionRace(t *testing.T) {
	groups := file.NewGroupRepository(t.TempDir())
	approvers := &mocks.MockApproverRepository{}
	store := &mocks.MockDocumentStore{}
	auditSink := &mocks.MockAuditSink{}
	bus := &mocks.MockEventBus{}

	auditSink.On("Record", mock.Anything, mock.Anything).Return(nil)
	bus.On("PublishToDocument", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	engine := NewEngine(groups, approvers, store, auditSink, bus, locks.NewMemory(), slog.Default())

	group := pendingGroup(models.QuorumModeAny, "a1", "a2")
	require.NoError(t, groups.Save(t.Context(), group))

	var wg sync.WaitGroup

	errs := make([]error, 2)

	for i, approverID := range []string{"a1", "a2"} {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, errs[i] = engine.Respond(t.Context(), "g-1", approverID, models.DecisionApproved, nil)
		}()
	}

	wg.Wait()

	var succeeded, lateVotes int

	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case persistence.IsGroupAlreadyResolved(err):
			lateVotes++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, lateVotes)

	final, err := groups.GetByID(t.Context(), "g-1")
	require.NoError(t, err)
	assert.Equal(t, models.GroupStatusApproved, final.Status)

	resolvedEvents := 0

	for _, call := range bus.Calls {
		if _, ok := call.Arguments.Get(2).(events.ApprovalGroupResolved); ok {
			resolvedEvents++
		}
	}

	assert.Equal(t, 1, resolvedEvents)

	// Documents store is untouched by group resolution.
	store.AssertNotCalled(t, "UpdateFields", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
