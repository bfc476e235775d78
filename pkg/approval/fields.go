package approval

import (
	"fmt"
	"time"

	"github.com/tracio/approvalflow/pkg/documents"
	"github.com/tracio/approvalflow/pkg/models"
)

// Document field keys written through the DocumentStore. The store is
// type-agnostic, so SLA and approval metadata travel as a flat field map.
const (
	fieldStatus          = "status"
	fieldSlaDueDate      = "sla_due_date"
	fieldSlaMet          = "sla_met"
	fieldStopClockStart  = "stop_clock_start"
	fieldStopClockReason = "stop_clock_reason"
	fieldApprovedBy      = "approved_by"
	fieldApprovedDate    = "approved_date"
	fieldRejectionReason = "rejection_reason"
)

// slaFields flattens an SlaState into a field update. Nil members are
// written as nil so adapters clear the underlying columns.
func slaFields(state models.SlaState) documents.Fields {
	fields := documents.Fields{
		fieldSlaDueDate:      nil,
		fieldSlaMet:          nil,
		fieldStopClockStart:  nil,
		fieldStopClockReason: nil,
	}

	if state.SlaDueDate != nil {
		fields[fieldSlaDueDate] = state.SlaDueDate.UTC().Format(time.RFC3339Nano)
	}

	if state.SlaMet != nil {
		fields[fieldSlaMet] = *state.SlaMet
	}

	if state.StopClockStart != nil {
		fields[fieldStopClockStart] = state.StopClockStart.UTC().Format(time.RFC3339Nano)
	}

	if state.StopClockReason != nil {
		fields[fieldStopClockReason] = *state.StopClockReason
	}

	return fields
}

// slaStateFromFields rebuilds an SlaState from stored document fields.
// Absent keys leave the corresponding member nil.
func slaStateFromFields(fields documents.Fields) (models.SlaState, error) {
	var state models.SlaState

	dueDate, err := timeField(fields, fieldSlaDueDate)
	if err != nil {
		return models.SlaState{}, err
	}

	state.SlaDueDate = dueDate

	stopStart, err := timeField(fields, fieldStopClockStart)
	if err != nil {
		return models.SlaState{}, err
	}

	state.StopClockStart = stopStart

	if raw, ok := fields[fieldSlaMet]; ok && raw != nil {
		met, ok := raw.(bool)
		if !ok {
			return models.SlaState{}, fmt.Errorf("field %s has unexpected type %T", fieldSlaMet, raw)
		}

		state.SlaMet = &met
	}

	if raw, ok := fields[fieldStopClockReason]; ok && raw != nil {
		reason, ok := raw.(string)
		if !ok {
			return models.SlaState{}, fmt.Errorf("field %s has unexpected type %T", fieldStopClockReason, raw)
		}

		state.StopClockReason = &reason
	}

	return state, nil
}

func timeField(fields documents.Fields, key string) (*time.Time, error) {
	raw, ok := fields[key]
	if !ok || raw == nil {
		return nil, nil
	}

	text, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("field %s has unexpected type %T", key, raw)
	}

	parsed, err := time.Parse(time.RFC3339Nano, text)
	if err != nil {
		return nil, fmt.Errorf("field %s is not a valid timestamp: %w", key, err)
	}

	return &parsed, nil
}
