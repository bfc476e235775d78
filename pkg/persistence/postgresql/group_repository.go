package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/tracio/approvalflow/pkg/models"
	"github.com/tracio/approvalflow/pkg/persistence"
)

const uniqueViolationCode = "23505"

// GroupRepository handles parallel approval group database operations.
type GroupRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewGroupRepository creates a new group repository.
func NewGroupRepository(db *sql.DB, logger *slog.Logger) *GroupRepository {
	return &GroupRepository{db: db, logger: logger}
}

// Save inserts or updates a group.
func (r *GroupRepository) Save(ctx context.Context, group *models.ParallelApprovalGroup) error {
	if group.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate group ID: %w", err)
		}

		group.ID = id.String()
	}

	if group.CreatedAt.IsZero() {
		group.CreatedAt = time.Now().UTC()
	}

	approverIDsJSON, err := json.Marshal(group.ApproverIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal approver IDs: %w", err)
	}

	query := `
		INSERT INTO approval_groups (
			id, document_type, document_id, approval_level, mode, status,
			approver_ids, created_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			completed_at = EXCLUDED.completed_at
	`

	_, err = r.db.ExecContext(ctx, query,
		group.ID,
		group.DocumentType,
		group.DocumentID,
		group.ApprovalLevel,
		string(group.Mode),
		string(group.Status),
		approverIDsJSON,
		group.CreatedAt,
		group.CompletedAt,
	)
	if err != nil {
		return persistence.NewGroupError("Save", group.ID, err)
	}

	return nil
}

// GetByID retrieves a group by its ID.
func (r *GroupRepository) GetByID(ctx context.Context, id string) (*models.ParallelApprovalGroup, error) {
	query := `
		SELECT
			id
		  , document_type
		  , document_id
		  , approval_level
		  , mode
		  , status
		  , approver_ids
		  , created_at
		  , completed_at
		FROM approval_groups
		WHERE id = $1
	`

	row := r.db.QueryRowContext(ctx, query, id)

	group, err := scanGroup(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewGroupError("GetByID", id, persistence.ErrGroupNotFound)
		}

		return nil, fmt.Errorf("failed to scan approval group: %w", err)
	}

	return group, nil
}

// ResolveGroup performs the conditional status write: the group moves to a
// terminal status only if it is still pending. The WHERE clause is the
// compare-and-swap guard; the loser of a resolution race sees a no-op.
func (r *GroupRepository) ResolveGroup(ctx context.Context, id string, status models.GroupStatus, completedAt time.Time) (bool, error) {
	query := `
		UPDATE approval_groups
		SET status = $2, completed_at = $3
		WHERE id = $1 AND status = 'pending'
	`

	result, err := r.db.ExecContext(ctx, query, id, string(status), completedAt.UTC())
	if err != nil {
		return false, persistence.NewGroupError("Resolve", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, persistence.NewGroupError("Resolve", id, err)
	}

	return affected == 1, nil
}

// SaveResponse records an approver's decision. The (group_id, approver_id)
// unique constraint turns double votes into ErrDuplicateResponse.
func (r *GroupRepository) SaveResponse(ctx context.Context, response *models.ParallelApprovalResponse) error {
	if response.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate response ID: %w", err)
		}

		response.ID = id.String()
	}

	if response.DecidedAt.IsZero() {
		response.DecidedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO approval_responses (id, group_id, approver_id, decision, comments, decided_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		response.ID,
		response.GroupID,
		response.ApproverID,
		string(response.Decision),
		response.Comments,
		response.DecidedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolationCode {
			return persistence.NewGroupError("SaveResponse", response.GroupID, persistence.ErrDuplicateResponse)
		}

		return persistence.NewGroupError("SaveResponse", response.GroupID, err)
	}

	return nil
}

// ResponsesByGroup returns all responses recorded for a group, oldest
// first.
func (r *GroupRepository) ResponsesByGroup(ctx context.Context, groupID string) ([]*models.ParallelApprovalResponse, error) {
	query := `
		SELECT id, group_id, approver_id, decision, comments, decided_at
		FROM approval_responses
		WHERE group_id = $1
		ORDER BY decided_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, persistence.NewGroupError("ResponsesByGroup", groupID, err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	responses := make([]*models.ParallelApprovalResponse, 0)

	for rows.Next() {
		var (
			response models.ParallelApprovalResponse
			decision string
		)

		err := rows.Scan(
			&response.ID,
			&response.GroupID,
			&response.ApproverID,
			&decision,
			&response.Comments,
			&response.DecidedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval response: %w", err)
		}

		response.Decision = models.Decision(decision)
		responses = append(responses, &response)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating approval responses: %w", err)
	}

	return responses, nil
}

// PendingGroups returns every group still awaiting resolution.
func (r *GroupRepository) PendingGroups(ctx context.Context) ([]*models.ParallelApprovalGroup, error) {
	query := `
		SELECT
			id
		  , document_type
		  , document_id
		  , approval_level
		  , mode
		  , status
		  , approver_ids
		  , created_at
		  , completed_at
		FROM approval_groups
		WHERE status = 'pending'
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending groups: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	groups := make([]*models.ParallelApprovalGroup, 0)

	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval group: %w", err)
		}

		groups = append(groups, group)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating approval groups: %w", err)
	}

	return groups, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGroup(row rowScanner) (*models.ParallelApprovalGroup, error) {
	var (
		group           models.ParallelApprovalGroup
		mode            string
		status          string
		approverIDsJSON []byte
	)

	err := row.Scan(
		&group.ID,
		&group.DocumentType,
		&group.DocumentID,
		&group.ApprovalLevel,
		&mode,
		&status,
		&approverIDsJSON,
		&group.CreatedAt,
		&group.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	group.Mode = models.QuorumMode(mode)
	group.Status = models.GroupStatus(status)

	err = json.Unmarshal(approverIDsJSON, &group.ApproverIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal approver IDs: %w", err)
	}

	return &group, nil
}
