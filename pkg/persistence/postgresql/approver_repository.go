package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/tracio/approvalflow/pkg/models"
	"github.com/tracio/approvalflow/pkg/persistence"
)

// ApproverRepository handles approver database operations.
type ApproverRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewApproverRepository creates a new approver repository.
func NewApproverRepository(db *sql.DB, logger *slog.Logger) *ApproverRepository {
	return &ApproverRepository{db: db, logger: logger}
}

// GetByID retrieves an approver by its ID.
func (r *ApproverRepository) GetByID(ctx context.Context, id string) (*models.Approver, error) {
	query := `
		SELECT id, name, role, active, created_at
		FROM approvers
		WHERE id = $1
	`

	var approver models.Approver

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&approver.ID,
		&approver.Name,
		&approver.Role,
		&approver.Active,
		&approver.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("approver %s: %w", id, persistence.ErrApproverNotFound)
		}

		return nil, fmt.Errorf("failed to scan approver: %w", err)
	}

	return &approver, nil
}

// ActiveByIDs returns the subset of ids resolving to active approvers in a
// single batch query.
func (r *ApproverRepository) ActiveByIDs(ctx context.Context, ids []string) ([]*models.Approver, error) {
	query := `
		SELECT id, name, role, active, created_at
		FROM approvers
		WHERE id = ANY($1) AND active = TRUE
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query approvers: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	approvers := make([]*models.Approver, 0, len(ids))

	for rows.Next() {
		var approver models.Approver

		err := rows.Scan(
			&approver.ID,
			&approver.Name,
			&approver.Role,
			&approver.Active,
			&approver.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approver: %w", err)
		}

		approvers = append(approvers, &approver)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating approvers: %w", err)
	}

	return approvers, nil
}

// Save inserts or updates an approver.
func (r *ApproverRepository) Save(ctx context.Context, approver *models.Approver) error {
	if approver.CreatedAt.IsZero() {
		approver.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO approvers (id, name, role, active, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			role = EXCLUDED.role,
			active = EXCLUDED.active
	`

	_, err := r.db.ExecContext(ctx, query,
		approver.ID,
		approver.Name,
		approver.Role,
		approver.Active,
		approver.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save approver %s: %w", approver.ID, err)
	}

	return nil
}
