// Package file provides file-based persistence for development and tests.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/tracio/approvalflow/pkg/persistence"
)

// Persistence implements persistence.Persistence on top of the file
// system, one JSON document per entity. Conditional group resolution is
// serialized behind an in-process mutex, which is enough for the single
// process deployments this backend is meant for.
type Persistence struct {
	root         string
	ruleRepo     *RuleRepository
	approverRepo *ApproverRepository
	groupRepo    *GroupRepository
}

// NewPersistence creates a file persistence layer rooted at the given
// directory. A "file://" prefix is tolerated for database-URL symmetry.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:         cleanRoot,
		ruleRepo:     NewRuleRepository(cleanRoot),
		approverRepo: NewApproverRepository(cleanRoot),
		groupRepo:    NewGroupRepository(cleanRoot),
	}
}

func (fp *Persistence) Rules() persistence.RuleRepository {
	return fp.ruleRepo
}

func (fp *Persistence) Approvers() persistence.ApproverRepository {
	return fp.approverRepo
}

func (fp *Persistence) Groups() persistence.GroupRepository {
	return fp.groupRepo
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. For file-based persistence there
// is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}
