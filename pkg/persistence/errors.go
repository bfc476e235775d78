// Package persistence provides standardized error types for storage
// operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrGroupNotFound indicates a parallel approval group was not found
	// by the given identifier.
	ErrGroupNotFound = errors.New("approval group not found")

	// ErrGroupAlreadyResolved indicates a response arrived after the group
	// reached a terminal status.
	ErrGroupAlreadyResolved = errors.New("approval group already resolved")

	// ErrDuplicateResponse indicates an approver already has a response
	// recorded in the group.
	ErrDuplicateResponse = errors.New("duplicate approval response")

	// ErrApproverNotFound indicates an approver was not found by the given
	// identifier.
	ErrApproverNotFound = errors.New("approver not found")

	// ErrRuleNotFound indicates an approval rule was not found by the
	// given identifier.
	ErrRuleNotFound = errors.New("approval rule not found")
)

// GroupError wraps group-related errors with additional context.
type GroupError struct {
	Op      string // Operation being performed (e.g., "GetByID", "Save", "Resolve")
	GroupID string // Group ID if applicable
	Err     error  // Underlying error
}

func (e *GroupError) Error() string {
	return fmt.Sprintf("%s operation failed for approval group %s: %v", e.Op, e.GroupID, e.Err)
}

func (e *GroupError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for group errors.
func (e *GroupError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewGroupError creates a new group error with context.
func NewGroupError(op, groupID string, err error) *GroupError {
	return &GroupError{Op: op, GroupID: groupID, Err: err}
}

// RuleError wraps rule-related errors with additional context.
type RuleError struct {
	Op           string
	DocumentType string
	RuleID       string
	Err          error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("%s operation failed for approval rule %s (%s): %v", e.Op, e.RuleID, e.DocumentType, e.Err)
}

func (e *RuleError) Unwrap() error {
	return e.Err
}

func (e *RuleError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsGroupNotFound checks if an error indicates a group was not found.
func IsGroupNotFound(err error) bool {
	return errors.Is(err, ErrGroupNotFound)
}

// IsGroupAlreadyResolved checks if an error indicates a late response to a
// resolved group.
func IsGroupAlreadyResolved(err error) bool {
	return errors.Is(err, ErrGroupAlreadyResolved)
}

// IsDuplicateResponse checks if an error indicates a double vote.
func IsDuplicateResponse(err error) bool {
	return errors.Is(err, ErrDuplicateResponse)
}

// IsApproverNotFound checks if an error indicates an unknown approver.
func IsApproverNotFound(err error) bool {
	return errors.Is(err, ErrApproverNotFound)
}
