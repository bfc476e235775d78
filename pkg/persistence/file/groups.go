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

	"github.com/tracio/approvalflow/pkg/models"
	"github.com/tracio/approvalflow/pkg/persistence"
)

// groupDocument is the on-disk envelope: the group and its responses live
// in one file so response uniqueness and conditional resolution stay
// atomic under the repository mutex.
type groupDocument struct {
	Group     models.ParallelApprovalGroup       `json:"group"`
	Responses []*models.ParallelApprovalResponse `json:"responses"`
}

// GroupRepository handles parallel approval group file operations.
type GroupRepository struct {
	root string
	mu   sync.Mutex
}

// NewGroupRepository creates a new group repository.
func NewGroupRepository(root string) *GroupRepository {
	return &GroupRepository{root: root}
}

func (gr *GroupRepository) groupPath(id string) string {
	return filepath.Clean(path.Join(gr.root, "groups", id+".json"))
}

func (gr *GroupRepository) load(id string) (*groupDocument, error) {
	body, err := os.ReadFile(gr.groupPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewGroupError("Load", id, persistence.ErrGroupNotFound)
		}

		return nil, fmt.Errorf("failed to read approval group %s: %w", id, err)
	}

	var document groupDocument

	err = json.Unmarshal(body, &document)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal approval group %s: %w", id, err)
	}

	return &document, nil
}

func (gr *GroupRepository) store(document *groupDocument) error {
	err := os.MkdirAll(path.Join(gr.root, "groups"), 0750)
	if err != nil {
		return fmt.Errorf("failed to create groups directory: %w", err)
	}

	data, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal approval group %s: %w", document.Group.ID, err)
	}

	return os.WriteFile(gr.groupPath(document.Group.ID), data, 0600)
}

// Save persists a group. Responses recorded earlier are preserved.
func (gr *GroupRepository) Save(_ context.Context, group *models.ParallelApprovalGroup) error {
	gr.mu.Lock()
	defer gr.mu.Unlock()

	document, err := gr.load(group.ID)
	if err != nil {
		if !persistence.IsGroupNotFound(err) {
			return err
		}

		document = &groupDocument{Responses: make([]*models.ParallelApprovalResponse, 0)}
	}

	document.Group = *group

	return gr.store(document)
}

// GetByID retrieves a group by its ID.
func (gr *GroupRepository) GetByID(_ context.Context, id string) (*models.ParallelApprovalGroup, error) {
	gr.mu.Lock()
	defer gr.mu.Unlock()

	document, err := gr.load(id)
	if err != nil {
		return nil, err
	}

	group := document.Group

	return &group, nil
}

// ResolveGroup transitions the group to a terminal status only if it is
// still pending. The whole check-and-set runs under the repository mutex.
func (gr *GroupRepository) ResolveGroup(_ context.Context, id string, status models.GroupStatus, completedAt time.Time) (bool, error) {
	gr.mu.Lock()
	defer gr.mu.Unlock()

	document, err := gr.load(id)
	if err != nil {
		return false, err
	}

	if document.Group.Status != models.GroupStatusPending {
		return false, nil
	}

	completed := completedAt.UTC()
	document.Group.Status = status
	document.Group.CompletedAt = &completed

	err = gr.store(document)
	if err != nil {
		return false, err
	}

	return true, nil
}

// SaveResponse records an approver's decision, rejecting double votes.
func (gr *GroupRepository) SaveResponse(_ context.Context, response *models.ParallelApprovalResponse) error {
	gr.mu.Lock()
	defer gr.mu.Unlock()

	document, err := gr.load(response.GroupID)
	if err != nil {
		return err
	}

	for _, existing := range document.Responses {
		if existing.ApproverID == response.ApproverID {
			return persistence.NewGroupError("SaveResponse", response.GroupID, persistence.ErrDuplicateResponse)
		}
	}

	document.Responses = append(document.Responses, response)

	return gr.store(document)
}

// ResponsesByGroup returns all responses recorded for a group.
func (gr *GroupRepository) ResponsesByGroup(_ context.Context, groupID string) ([]*models.ParallelApprovalResponse, error) {
	gr.mu.Lock()
	defer gr.mu.Unlock()

	document, err := gr.load(groupID)
	if err != nil {
		return nil, err
	}

	responses := make([]*models.ParallelApprovalResponse, len(document.Responses))
	copy(responses, document.Responses)

	return responses, nil
}

// PendingGroups returns every group still awaiting resolution.
func (gr *GroupRepository) PendingGroups(_ context.Context) ([]*models.ParallelApprovalGroup, error) {
	gr.mu.Lock()
	defer gr.mu.Unlock()

	root := os.DirFS(path.Join(gr.root, "groups"))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list group files: %w", err)
	}

	pending := make([]*models.ParallelApprovalGroup, 0)

	for _, fileName := range jsonFiles {
		groupID := fileName[:len(fileName)-5] // Remove .json extension

		document, err := gr.load(groupID)
		if err != nil {
			return nil, err
		}

		if document.Group.Status == models.GroupStatusPending {
			group := document.Group
			pending = append(pending, &group)
		}
	}

	return pending, nil
}
