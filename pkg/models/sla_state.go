package models

import "time"

// SlaState tracks the due-date clock of a document under approval. The
// clock is either running (StopClockStart nil) or paused (StopClockStart
// set), never both. SlaMet stays nil until completion, and remains nil for
// documents that were never tracked - "unmet" and "not tracked" are
// distinct outcomes.
type SlaState struct {
	SlaDueDate      *time.Time `json:"sla_due_date,omitempty"`
	SlaMet          *bool      `json:"sla_met,omitempty"`
	StopClockStart  *time.Time `json:"stop_clock_start,omitempty"`
	StopClockReason *string    `json:"stop_clock_reason,omitempty"`
}

// OnHold reports whether the clock is currently paused.
func (s *SlaState) OnHold() bool {
	return s.StopClockStart != nil
}
