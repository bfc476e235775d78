package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/tracio/approvalflow/pkg/models"
	"github.com/tracio/approvalflow/pkg/persistence"
)

// ApproverRepository stores approvers as one JSON file per approver.
type ApproverRepository struct {
	root string
	mu   sync.Mutex
}

// NewApproverRepository creates a new approver repository.
func NewApproverRepository(root string) *ApproverRepository {
	return &ApproverRepository{root: root}
}

func (ar *ApproverRepository) approverPath(id string) string {
	return filepath.Clean(path.Join(ar.root, "approvers", id+".json"))
}

func (ar *ApproverRepository) load(id string) (*models.Approver, error) {
	body, err := os.ReadFile(ar.approverPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read approver %s: %w", id, err)
	}

	var approver models.Approver

	err = json.Unmarshal(body, &approver)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal approver %s: %w", id, err)
	}

	return &approver, nil
}

// GetByID retrieves an approver, failing with ErrApproverNotFound when the
// ID is unknown.
func (ar *ApproverRepository) GetByID(_ context.Context, id string) (*models.Approver, error) {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	approver, err := ar.load(id)
	if err != nil {
		return nil, err
	}

	if approver == nil {
		return nil, fmt.Errorf("approver %s: %w", id, persistence.ErrApproverNotFound)
	}

	return approver, nil
}

// ActiveByIDs returns the subset of ids resolving to active approvers.
func (ar *ApproverRepository) ActiveByIDs(_ context.Context, ids []string) ([]*models.Approver, error) {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	active := make([]*models.Approver, 0, len(ids))

	for _, id := range ids {
		approver, err := ar.load(id)
		if err != nil {
			return nil, err
		}

		if approver != nil && approver.Active {
			active = append(active, approver)
		}
	}

	return active, nil
}

// Save persists an approver.
func (ar *ApproverRepository) Save(_ context.Context, approver *models.Approver) error {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	err := os.MkdirAll(path.Join(ar.root, "approvers"), 0750)
	if err != nil {
		return fmt.Errorf("failed to create approvers directory: %w", err)
	}

	if approver.CreatedAt.IsZero() {
		approver.CreatedAt = time.Now().UTC()
	}

	data, err := json.MarshalIndent(approver, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal approver %s: %w", approver.ID, err)
	}

	return os.WriteFile(ar.approverPath(approver.ID), data, 0600)
}
