package policy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracio/approvalflow/pkg/models"
)

func TestValidateRules_ContiguousTiers(t *testing.T) {
	warnings, err := ValidateRules(purchaseOrderTiers())
	require.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestValidateRules_Overlap(t *testing.T) {
	rules := []models.ApprovalWorkflowRule{
		{ID: "r1", DocumentType: "invoice", MinAmount: 0, MaxAmount: float64Ptr(1000), ApproverRole: "supervisor", SLAHours: 24},
		{ID: "r2", DocumentType: "invoice", MinAmount: 500, ApproverRole: "manager", SLAHours: 48},
	}

	_, err := ValidateRules(rules)
	require.Error(t, err)

	var overlap *RuleOverlapError

	require.True(t, errors.As(err, &overlap))
	assert.Equal(t, "invoice", overlap.DocumentType)
	assert.Equal(t, "r1", overlap.FirstID)
	assert.Equal(t, "r2", overlap.SecondID)
}

func TestValidateRules_GapsAreWarnings(t *testing.T) {
	rules := []models.ApprovalWorkflowRule{
		{ID: "r1", DocumentType: "invoice", MinAmount: 100, MaxAmount: float64Ptr(999.99), ApproverRole: "supervisor", SLAHours: 24},
		{ID: "r2", DocumentType: "invoice", MinAmount: 5000, MaxAmount: float64Ptr(9999.99), ApproverRole: "manager", SLAHours: 48},
	}

	warnings, err := ValidateRules(rules)
	require.NoError(t, err)

	// Below 100, between 999.99 and 5000, above 9999.99.
	assert.Len(t, warnings, 3)
}

func TestValidateRules_NoFalseGapOnCentBoundary(t *testing.T) {
	rules := []models.ApprovalWorkflowRule{
		{ID: "r1", DocumentType: "invoice", MinAmount: 0, MaxAmount: float64Ptr(999.99), ApproverRole: "supervisor", SLAHours: 24},
		{ID: "r2", DocumentType: "invoice", MinAmount: 1000, ApproverRole: "manager", SLAHours: 48},
	}

	warnings, err := ValidateRules(rules)
	require.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestValidateRules_IndependentPerDocumentType(t *testing.T) {
	rules := []models.ApprovalWorkflowRule{
		{ID: "r1", DocumentType: "invoice", MinAmount: 0, MaxAmount: float64Ptr(1000), ApproverRole: "supervisor", SLAHours: 24},
		{ID: "r2", DocumentType: "purchase_order", MinAmount: 0, MaxAmount: float64Ptr(1000), ApproverRole: "supervisor", SLAHours: 24},
	}

	_, err := ValidateRules(rules)
	require.NoError(t, err)
}

func TestValidateRules_StructValidation(t *testing.T) {
	rules := []models.ApprovalWorkflowRule{
		{ID: "r1", DocumentType: "invoice", MinAmount: 0, ApproverRole: "supervisor", SLAHours: 0},
	}

	_, err := ValidateRules(rules)
	require.Error(t, err)
}
