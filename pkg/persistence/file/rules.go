package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tracio/approvalflow/pkg/models"
	"github.com/tracio/approvalflow/pkg/persistence"
)

// RuleRepository stores approval rules as one JSON file per document type.
type RuleRepository struct {
	root string
	mu   sync.Mutex
}

// NewRuleRepository creates a new rule repository.
func NewRuleRepository(root string) *RuleRepository {
	return &RuleRepository{root: root}
}

func (rr *RuleRepository) rulesPath(docType string) string {
	return filepath.Clean(path.Join(rr.root, "rules", docType+".json"))
}

func (rr *RuleRepository) load(docType string) ([]models.ApprovalWorkflowRule, error) {
	body, err := os.ReadFile(rr.rulesPath(docType))
	if err != nil {
		if os.IsNotExist(err) {
			return make([]models.ApprovalWorkflowRule, 0), nil
		}

		return nil, fmt.Errorf("failed to read approval rules for %s: %w", docType, err)
	}

	var rules []models.ApprovalWorkflowRule

	err = json.Unmarshal(body, &rules)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal approval rules for %s: %w", docType, err)
	}

	return rules, nil
}

func (rr *RuleRepository) store(docType string, rules []models.ApprovalWorkflowRule) error {
	err := os.MkdirAll(path.Join(rr.root, "rules"), 0750)
	if err != nil {
		return fmt.Errorf("failed to create rules directory: %w", err)
	}

	data, err := json.MarshalIndent(rules, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal approval rules for %s: %w", docType, err)
	}

	return os.WriteFile(rr.rulesPath(docType), data, 0600)
}

// GetByDocumentType returns the configured tiers for a document type. An
// unconfigured type yields an empty set, not an error - the resolver turns
// that into NoMatchingPolicy.
func (rr *RuleRepository) GetByDocumentType(_ context.Context, docType string) ([]models.ApprovalWorkflowRule, error) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	return rr.load(docType)
}

// GetAll returns every configured rule across document types.
func (rr *RuleRepository) GetAll(_ context.Context) ([]models.ApprovalWorkflowRule, error) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	root := os.DirFS(path.Join(rr.root, "rules"))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list rule files: %w", err)
	}

	all := make([]models.ApprovalWorkflowRule, 0)

	for _, fileName := range jsonFiles {
		docType := fileName[:len(fileName)-5] // Remove .json extension

		rules, err := rr.load(docType)
		if err != nil {
			return nil, err
		}

		all = append(all, rules...)
	}

	return all, nil
}

// Save upserts a rule within its document type's file.
func (rr *RuleRepository) Save(_ context.Context, rule *models.ApprovalWorkflowRule) error {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	now := time.Now().UTC()

	if rule.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate rule ID: %w", err)
		}

		rule.ID = id.String()
	}

	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}

	rule.UpdatedAt = now

	rules, err := rr.load(rule.DocumentType)
	if err != nil {
		return err
	}

	for i := range rules {
		if rules[i].ID == rule.ID {
			rules[i] = *rule

			return rr.store(rule.DocumentType, rules)
		}
	}

	rules = append(rules, *rule)

	return rr.store(rule.DocumentType, rules)
}

// Delete removes a rule by ID within a document type.
func (rr *RuleRepository) Delete(_ context.Context, docType, id string) error {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	rules, err := rr.load(docType)
	if err != nil {
		return err
	}

	for i := range rules {
		if rules[i].ID == id {
			rules = append(rules[:i], rules[i+1:]...)

			return rr.store(docType, rules)
		}
	}

	return &persistence.RuleError{Op: "Delete", DocumentType: docType, RuleID: id, Err: persistence.ErrRuleNotFound}
}
