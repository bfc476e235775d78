// Package sla implements the pausable due-date clock attached to documents
// under approval. All operations are pure functions over models.SlaState;
// nothing fires automatically at the due date - breach is observed lazily
// when Complete is called.
package sla

import (
	"errors"
	"time"

	"github.com/tracio/approvalflow/pkg/models"
)

var (
	// ErrAlreadyOnHold indicates Hold was called while the clock was
	// already paused.
	ErrAlreadyOnHold = errors.New("sla clock is already on hold")

	// ErrNotOnHold indicates Resume was called while the clock was
	// running.
	ErrNotOnHold = errors.New("sla clock is not on hold")
)

// Start begins SLA tracking: the due date is now plus the policy's SLA
// duration. Any previous hold or completion state is discarded.
func Start(state *models.SlaState, slaHours int, now time.Time) {
	dueDate := now.UTC().Add(time.Duration(slaHours) * time.Hour)

	state.SlaDueDate = &dueDate
	state.SlaMet = nil
	state.StopClockStart = nil
	state.StopClockReason = nil
}

// Hold pauses the clock. Holding a paused clock is a caller bug and
// returns ErrAlreadyOnHold instead of silently overwriting the original
// pause start.
func Hold(state *models.SlaState, now time.Time, reason string) error {
	if state.OnHold() {
		return ErrAlreadyOnHold
	}

	start := now.UTC()
	state.StopClockStart = &start
	state.StopClockReason = &reason

	return nil
}

// Resume restarts a paused clock and shifts the due date forward by the
// paused duration, so time spent on hold never counts against the SLA.
// Resuming a running clock returns ErrNotOnHold.
func Resume(state *models.SlaState, now time.Time) error {
	if !state.OnHold() {
		return ErrNotOnHold
	}

	if state.SlaDueDate != nil {
		pausedFor := now.UTC().Sub(*state.StopClockStart)
		shifted := state.SlaDueDate.Add(pausedFor)
		state.SlaDueDate = &shifted
	}

	state.StopClockStart = nil
	state.StopClockReason = nil

	return nil
}

// Complete records whether the SLA was met at completion time. A document
// with no due date reports nil rather than false: it was never tracked.
func Complete(state *models.SlaState, now time.Time) {
	if state.SlaDueDate == nil {
		state.SlaMet = nil

		return
	}

	met := !now.UTC().After(*state.SlaDueDate)
	state.SlaMet = &met
}
