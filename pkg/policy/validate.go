package policy

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/tracio/approvalflow/pkg/models"
)

// amountGranularity is the smallest amount step rules are expected to be
// defined at. Two ranges separated by less than one cent are treated as
// contiguous rather than gapped.
const amountGranularity = 0.01

var validate = validator.New()

// RuleOverlapError reports a pair of rules whose amount ranges intersect
// for the same document type.
type RuleOverlapError struct {
	DocumentType string
	FirstID      string
	SecondID     string
}

func (e *RuleOverlapError) Error() string {
	return fmt.Sprintf("approval rules %s and %s overlap for document type %q", e.FirstID, e.SecondID, e.DocumentType)
}

// ValidateRules checks a rule set before it is written. Overlapping ranges
// within a document type are rejected; gaps on the amount axis are
// reported as warnings only, since the resolver signals NoMatchingPolicy
// at submission time anyway.
func ValidateRules(rules []models.ApprovalWorkflowRule) ([]string, error) {
	for i := range rules {
		if err := validate.Struct(&rules[i]); err != nil {
			return nil, fmt.Errorf("approval rule %s is invalid: %w", rules[i].ID, err)
		}
	}

	byType := make(map[string][]models.ApprovalWorkflowRule)
	for _, rule := range rules {
		byType[rule.DocumentType] = append(byType[rule.DocumentType], rule)
	}

	docTypes := make([]string, 0, len(byType))
	for docType := range byType {
		docTypes = append(docTypes, docType)
	}

	sort.Strings(docTypes)

	var warnings []string

	for _, docType := range docTypes {
		typeRules := byType[docType]

		sort.SliceStable(typeRules, func(i, j int) bool {
			return typeRules[i].MinAmount < typeRules[j].MinAmount
		})

		for i := 1; i < len(typeRules); i++ {
			previous, current := typeRules[i-1], typeRules[i]

			if current.MinAmount <= upperBound(previous) {
				return nil, &RuleOverlapError{
					DocumentType: docType,
					FirstID:      previous.ID,
					SecondID:     current.ID,
				}
			}

			// The small epsilon absorbs float64 rounding on cent values.
			if current.MinAmount-upperBound(previous) > amountGranularity+1e-9 {
				warnings = append(warnings, fmt.Sprintf(
					"document type %q has no rule covering amounts in (%.2f, %.2f)",
					docType, upperBound(previous), current.MinAmount))
			}
		}

		first := typeRules[0]
		if first.MinAmount > 0 {
			warnings = append(warnings, fmt.Sprintf(
				"document type %q has no rule covering amounts below %.2f",
				docType, first.MinAmount))
		}

		last := typeRules[len(typeRules)-1]
		if last.MaxAmount != nil {
			warnings = append(warnings, fmt.Sprintf(
				"document type %q has no rule covering amounts above %.2f",
				docType, *last.MaxAmount))
		}
	}

	return warnings, nil
}

func upperBound(rule models.ApprovalWorkflowRule) float64 {
	if rule.MaxAmount == nil {
		return math.Inf(1)
	}

	return *rule.MaxAmount
}
