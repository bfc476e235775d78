package file

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracio/approvalflow/pkg/models"
	"github.com/tracio/approvalflow/pkg/persistence"
)

func float64Ptr(v float64) *float64 {
	return &v
}

func TestRuleRepository_SaveAndGet(t *testing.T) {
	testDir := t.TempDir()
	repo := NewRuleRepository(testDir)

	rule := &models.ApprovalWorkflowRule{
		DocumentType: "purchase_order",
		MinAmount:    0,
		MaxAmount:    float64Ptr(999.99),
		ApproverRole: "supervisor",
		SLAHours:     24,
	}

	err := repo.Save(t.Context(), rule)
	require.NoError(t, err)

	// ID and timestamps were assigned.
	assert.NotEmpty(t, rule.ID)
	assert.False(t, rule.CreatedAt.IsZero())
	assert.False(t, rule.UpdatedAt.IsZero())

	assert.FileExists(t, filepath.Join(testDir, "rules", "purchase_order.json"))

	rules, err := repo.GetByDocumentType(t.Context(), "purchase_order")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "supervisor", rules[0].ApproverRole)
}

func TestRuleRepository_SaveUpserts(t *testing.T) {
	repo := NewRuleRepository(t.TempDir())

	rule := &models.ApprovalWorkflowRule{
		DocumentType: "purchase_order",
		MinAmount:    0,
		ApproverRole: "supervisor",
		SLAHours:     24,
	}

	require.NoError(t, repo.Save(t.Context(), rule))

	rule.ApproverRole = "manager"
	require.NoError(t, repo.Save(t.Context(), rule))

	rules, err := repo.GetByDocumentType(t.Context(), "purchase_order")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "manager", rules[0].ApproverRole)
}

func TestRuleRepository_GetByDocumentType_Unconfigured(t *testing.T) {
	repo := NewRuleRepository(t.TempDir())

	rules, err := repo.GetByDocumentType(t.Context(), "invoice")
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestRuleRepository_GetAll(t *testing.T) {
	repo := NewRuleRepository(t.TempDir())

	require.NoError(t, repo.Save(t.Context(), &models.ApprovalWorkflowRule{
		DocumentType: "purchase_order", MinAmount: 0, ApproverRole: "supervisor", SLAHours: 24,
	}))
	require.NoError(t, repo.Save(t.Context(), &models.ApprovalWorkflowRule{
		DocumentType: "invoice", MinAmount: 0, ApproverRole: "clerk", SLAHours: 48,
	}))

	all, err := repo.GetAll(t.Context())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRuleRepository_Delete(t *testing.T) {
	repo := NewRuleRepository(t.TempDir())

	rule := &models.ApprovalWorkflowRule{
		DocumentType: "purchase_order", MinAmount: 0, ApproverRole: "supervisor", SLAHours: 24,
	}
	require.NoError(t, repo.Save(t.Context(), rule))

	require.NoError(t, repo.Delete(t.Context(), "purchase_order", rule.ID))

	rules, err := repo.GetByDocumentType(t.Context(), "purchase_order")
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestRuleRepository_Delete_NotFound(t *testing.T) {
	repo := NewRuleRepository(t.TempDir())

	err := repo.Delete(t.Context(), "purchase_order", "missing")
	require.ErrorIs(t, err, persistence.ErrRuleNotFound)
}
