package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tracio/approvalflow/pkg/models"
	"github.com/tracio/approvalflow/pkg/persistence"
)

// RuleRepository handles approval rule database operations.
type RuleRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRuleRepository creates a new rule repository.
func NewRuleRepository(db *sql.DB, logger *slog.Logger) *RuleRepository {
	return &RuleRepository{db: db, logger: logger}
}

const ruleColumns = `
	id
  , document_type
  , min_amount
  , max_amount
  , approver_role
  , sla_hours
  , created_at
  , updated_at
`

// GetByDocumentType returns the configured tiers for a document type.
func (r *RuleRepository) GetByDocumentType(ctx context.Context, docType string) ([]models.ApprovalWorkflowRule, error) {
	query := `SELECT ` + ruleColumns + `
		FROM approval_rules
		WHERE document_type = $1
		ORDER BY min_amount ASC
	`

	return r.queryRules(ctx, query, docType)
}

// GetAll returns every configured rule across document types.
func (r *RuleRepository) GetAll(ctx context.Context) ([]models.ApprovalWorkflowRule, error) {
	query := `SELECT ` + ruleColumns + `
		FROM approval_rules
		ORDER BY document_type, min_amount ASC
	`

	return r.queryRules(ctx, query)
}

func (r *RuleRepository) queryRules(ctx context.Context, query string, args ...any) ([]models.ApprovalWorkflowRule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query approval rules: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	rules := make([]models.ApprovalWorkflowRule, 0)

	for rows.Next() {
		var rule models.ApprovalWorkflowRule

		err := rows.Scan(
			&rule.ID,
			&rule.DocumentType,
			&rule.MinAmount,
			&rule.MaxAmount,
			&rule.ApproverRole,
			&rule.SLAHours,
			&rule.CreatedAt,
			&rule.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval rule: %w", err)
		}

		rules = append(rules, rule)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating approval rules: %w", err)
	}

	return rules, nil
}

// Save inserts or updates a rule.
func (r *RuleRepository) Save(ctx context.Context, rule *models.ApprovalWorkflowRule) error {
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

	query := `
		INSERT INTO approval_rules (
			id, document_type, min_amount, max_amount, approver_role,
			sla_hours, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			document_type = EXCLUDED.document_type,
			min_amount = EXCLUDED.min_amount,
			max_amount = EXCLUDED.max_amount,
			approver_role = EXCLUDED.approver_role,
			sla_hours = EXCLUDED.sla_hours,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		rule.ID,
		rule.DocumentType,
		rule.MinAmount,
		rule.MaxAmount,
		rule.ApproverRole,
		rule.SLAHours,
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	if err != nil {
		return &persistence.RuleError{Op: "Save", DocumentType: rule.DocumentType, RuleID: rule.ID, Err: err}
	}

	return nil
}

// Delete removes a rule by ID within a document type.
func (r *RuleRepository) Delete(ctx context.Context, docType, id string) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM approval_rules WHERE id = $1 AND document_type = $2", id, docType)
	if err != nil {
		return &persistence.RuleError{Op: "Delete", DocumentType: docType, RuleID: id, Err: err}
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return &persistence.RuleError{Op: "Delete", DocumentType: docType, RuleID: id, Err: err}
	}

	if affected == 0 {
		return &persistence.RuleError{Op: "Delete", DocumentType: docType, RuleID: id, Err: persistence.ErrRuleNotFound}
	}

	return nil
}
