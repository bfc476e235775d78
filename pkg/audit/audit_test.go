package audit

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSink struct {
	calls int
}

func (s *failingSink) Record(_ context.Context, _ Entry) error {
	s.calls++

	return errors.New("audit storage unavailable")
}

func TestBestEffort_SwallowsErrors(t *testing.T) {
	sink := &failingSink{}
	wrapped := BestEffort(sink, slog.Default())

	err := wrapped.Record(t.Context(), Entry{
		TableName: "purchase_order",
		RecordID:  "po-1",
		Action:    ActionStatusChange,
		ActorID:   "user-1",
	})

	require.NoError(t, err)
	assert.Equal(t, 1, sink.calls)
}

func TestLogSink_Record(t *testing.T) {
	sink := NewLogSink(slog.Default())

	err := sink.Record(t.Context(), Entry{
		TableName: "approval_groups",
		RecordID:  "g-1",
		Action:    ActionResolve,
		ActorID:   "system",
	})

	require.NoError(t, err)
}
