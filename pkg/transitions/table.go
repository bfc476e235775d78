// Package transitions enforces per-document-type status state machines.
package transitions

import (
	"fmt"
	"sort"
)

// InvalidTransitionError indicates a status edge that does not exist in the
// document type's transition graph. It is always raised before any
// persistent mutation, so a rejected transition leaves the document
// untouched.
type InvalidTransitionError struct {
	DocumentType  string
	CurrentStatus string
	TargetStatus  string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("illegal status transition for %s: %s -> %s",
		e.DocumentType, e.CurrentStatus, e.TargetStatus)
}

// Table holds the legal status edges per document type. Checking a
// transition is a pure lookup with no side effects, so it is safe to call
// speculatively before committing a write.
//
// Register all document types during startup; the table is not safe for
// concurrent mutation afterwards.
type Table struct {
	edges map[string]map[string]map[string]bool
}

func NewTable() *Table {
	return &Table{edges: make(map[string]map[string]map[string]bool)}
}

// Register adds the transition graph for a document type. Calling it twice
// for the same type merges the edge sets.
func (t *Table) Register(docType string, edges map[string][]string) {
	typeEdges, ok := t.edges[docType]
	if !ok {
		typeEdges = make(map[string]map[string]bool)
		t.edges[docType] = typeEdges
	}

	for from, targets := range edges {
		if typeEdges[from] == nil {
			typeEdges[from] = make(map[string]bool)
		}

		for _, to := range targets {
			typeEdges[from][to] = true
		}
	}
}

// Known reports whether a transition graph is registered for docType.
func (t *Table) Known(docType string) bool {
	_, ok := t.edges[docType]

	return ok
}

// AssertTransition checks that current -> target is a legal edge in the
// document type's graph and returns *InvalidTransitionError otherwise.
func (t *Table) AssertTransition(docType, currentStatus, targetStatus string) error {
	typeEdges, ok := t.edges[docType]
	if !ok {
		return &InvalidTransitionError{
			DocumentType:  docType,
			CurrentStatus: currentStatus,
			TargetStatus:  targetStatus,
		}
	}

	if !typeEdges[currentStatus][targetStatus] {
		return &InvalidTransitionError{
			DocumentType:  docType,
			CurrentStatus: currentStatus,
			TargetStatus:  targetStatus,
		}
	}

	return nil
}

// TargetsFrom returns the statuses reachable from currentStatus, sorted for
// stable output. Useful for building action menus.
func (t *Table) TargetsFrom(docType, currentStatus string) []string {
	targets := make([]string, 0, len(t.edges[docType][currentStatus]))
	for to := range t.edges[docType][currentStatus] {
		targets = append(targets, to)
	}

	sort.Strings(targets)

	return targets
}
