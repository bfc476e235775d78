package transitions

import "github.com/tracio/approvalflow/pkg/models"

// DefaultEdges is the standard document lifecycle shared by most back
// office document types: draft through approval into execution, with
// rejection and cancellation reachable mid-chain and resubmission allowed
// after a rejection.
func DefaultEdges() map[string][]string {
	return map[string][]string{
		models.StatusDraft: {
			models.StatusPendingApproval,
			models.StatusCancelled,
		},
		models.StatusPendingApproval: {
			models.StatusApproved,
			models.StatusRejected,
			models.StatusCancelled,
		},
		models.StatusApproved: {
			models.StatusInProgress,
			models.StatusCompleted,
			models.StatusCancelled,
		},
		models.StatusInProgress: {
			models.StatusCompleted,
			models.StatusCancelled,
		},
		models.StatusRejected: {
			models.StatusPendingApproval,
		},
	}
}

// DefaultTable builds a table with the standard lifecycle registered for
// each of the given document types.
func DefaultTable(docTypes ...string) *Table {
	table := NewTable()
	for _, docType := range docTypes {
		table.Register(docType, DefaultEdges())
	}

	return table
}
