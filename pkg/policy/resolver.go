// Package policy resolves which approval tier a document falls into based
// on its type and monetary amount.
package policy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tracio/approvalflow/pkg/models"
	"github.com/tracio/approvalflow/pkg/persistence"
)

// NoMatchingPolicyError indicates an amount falls outside every configured
// tier for a document type. A document cannot enter approval without a
// defined policy, so callers must treat this as fatal for the submission.
type NoMatchingPolicyError struct {
	DocumentType string
	Amount       float64
}

func (e *NoMatchingPolicyError) Error() string {
	return fmt.Sprintf("no approval policy matches document type %q and amount %.2f", e.DocumentType, e.Amount)
}

// Resolve picks the approval tier for (docType, amount) out of rules.
//
// Every rule whose range contains the amount qualifies; among those the one
// with the greatest MinAmount wins, so the highest tier that still applies
// is chosen regardless of rule definition order. Ties on MinAmount fall to
// the narrower range to keep misconfigured overlapping sets deterministic.
func Resolve(rules []models.ApprovalWorkflowRule, docType string, amount float64) (models.PolicyDecision, error) {
	var best *models.ApprovalWorkflowRule

	for i := range rules {
		rule := &rules[i]
		if rule.DocumentType != docType || !rule.Matches(amount) {
			continue
		}

		if best == nil || betterFit(rule, best) {
			best = rule
		}
	}

	if best == nil {
		return models.PolicyDecision{}, &NoMatchingPolicyError{DocumentType: docType, Amount: amount}
	}

	return models.PolicyDecision{ApproverRole: best.ApproverRole, SLAHours: best.SLAHours}, nil
}

func betterFit(candidate, current *models.ApprovalWorkflowRule) bool {
	if candidate.MinAmount != current.MinAmount {
		return candidate.MinAmount > current.MinAmount
	}

	// Equal lower bounds: the narrower range wins.
	switch {
	case candidate.MaxAmount == nil:
		return false
	case current.MaxAmount == nil:
		return true
	default:
		return *candidate.MaxAmount < *current.MaxAmount
	}
}

// Resolver binds the pure resolution algorithm to a rule repository.
type Resolver struct {
	rules  persistence.RuleRepository
	logger *slog.Logger
}

func NewResolver(rules persistence.RuleRepository, logger *slog.Logger) *Resolver {
	return &Resolver{rules: rules, logger: logger}
}

// Resolve loads the configured tiers for docType and applies best-fit
// matching. Repository failures propagate unchanged; a missing tier is a
// *NoMatchingPolicyError.
func (r *Resolver) Resolve(ctx context.Context, docType string, amount float64) (models.PolicyDecision, error) {
	rules, err := r.rules.GetByDocumentType(ctx, docType)
	if err != nil {
		return models.PolicyDecision{}, fmt.Errorf("failed to load approval rules for %s: %w", docType, err)
	}

	return Resolve(rules, docType, amount)
}
