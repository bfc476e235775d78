package policy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracio/approvalflow/pkg/models"
)

func float64Ptr(v float64) *float64 {
	return &v
}

func purchaseOrderTiers() []models.ApprovalWorkflowRule {
	return []models.ApprovalWorkflowRule{
		{DocumentType: "purchase_order", MinAmount: 0, MaxAmount: float64Ptr(999.99), ApproverRole: "supervisor", SLAHours: 24},
		{DocumentType: "purchase_order", MinAmount: 1000, MaxAmount: float64Ptr(9999.99), ApproverRole: "manager", SLAHours: 48},
		{DocumentType: "purchase_order", MinAmount: 10000, ApproverRole: "director", SLAHours: 72},
	}
}

func TestResolve_TierBoundaries(t *testing.T) {
	rules := purchaseOrderTiers()

	decision, err := Resolve(rules, "purchase_order", 999.99)
	require.NoError(t, err)
	assert.Equal(t, "supervisor", decision.ApproverRole)
	assert.Equal(t, 24, decision.SLAHours)

	decision, err = Resolve(rules, "purchase_order", 1000)
	require.NoError(t, err)
	assert.Equal(t, "manager", decision.ApproverRole)
	assert.Equal(t, 48, decision.SLAHours)

	decision, err = Resolve(rules, "purchase_order", 10000)
	require.NoError(t, err)
	assert.Equal(t, "director", decision.ApproverRole)
}

func TestResolve_UnboundedTopTier(t *testing.T) {
	decision, err := Resolve(purchaseOrderTiers(), "purchase_order", 2500000)
	require.NoError(t, err)
	assert.Equal(t, "director", decision.ApproverRole)
	assert.Equal(t, 72, decision.SLAHours)
}

func TestResolve_OrderIndependent(t *testing.T) {
	rules := purchaseOrderTiers()
	reversed := []models.ApprovalWorkflowRule{rules[2], rules[1], rules[0]}

	forward, err := Resolve(rules, "purchase_order", 5000)
	require.NoError(t, err)

	backward, err := Resolve(reversed, "purchase_order", 5000)
	require.NoError(t, err)

	assert.Equal(t, forward, backward)
}

func TestResolve_OverlapPicksHighestTier(t *testing.T) {
	// Misconfigured overlapping set: 500 falls in both ranges, the rule
	// with the greater lower bound wins.
	rules := []models.ApprovalWorkflowRule{
		{DocumentType: "invoice", MinAmount: 0, MaxAmount: float64Ptr(1000), ApproverRole: "supervisor", SLAHours: 24},
		{DocumentType: "invoice", MinAmount: 400, MaxAmount: float64Ptr(2000), ApproverRole: "manager", SLAHours: 48},
	}

	decision, err := Resolve(rules, "invoice", 500)
	require.NoError(t, err)
	assert.Equal(t, "manager", decision.ApproverRole)
}

func TestResolve_EqualLowerBoundPrefersNarrowerRange(t *testing.T) {
	rules := []models.ApprovalWorkflowRule{
		{DocumentType: "invoice", MinAmount: 0, ApproverRole: "director", SLAHours: 72},
		{DocumentType: "invoice", MinAmount: 0, MaxAmount: float64Ptr(100), ApproverRole: "supervisor", SLAHours: 24},
	}

	decision, err := Resolve(rules, "invoice", 50)
	require.NoError(t, err)
	assert.Equal(t, "supervisor", decision.ApproverRole)
}

func TestResolve_NoMatchingPolicy(t *testing.T) {
	rules := []models.ApprovalWorkflowRule{
		{DocumentType: "purchase_order", MinAmount: 1000, ApproverRole: "manager", SLAHours: 48},
	}

	_, err := Resolve(rules, "purchase_order", 500)
	require.Error(t, err)

	var noMatch *NoMatchingPolicyError

	require.True(t, errors.As(err, &noMatch))
	assert.Equal(t, "purchase_order", noMatch.DocumentType)
	assert.InDelta(t, 500.0, noMatch.Amount, 0.001)
}

func TestResolve_IgnoresOtherDocumentTypes(t *testing.T) {
	rules := []models.ApprovalWorkflowRule{
		{DocumentType: "invoice", MinAmount: 0, ApproverRole: "clerk", SLAHours: 24},
	}

	_, err := Resolve(rules, "purchase_order", 100)

	var noMatch *NoMatchingPolicyError

	require.True(t, errors.As(err, &noMatch))
}
