package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"example.com/enrollment/internal/events"
)

func rosterMessage(t *testing.T, offset int64, event events.RosterChanged) kafka.Message {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{
		Topic:     "roster_events",
		Partition: 0,
		Offset:    offset,
		Time:      time.Now().UTC(),
		Key:       []byte(event.Activity),
		Value:     payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.EventID)},
		},
	}
}

func TestProcessorCommitsOnSuccess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	event := events.NewRosterChanged(events.TypeParticipantSignedUp, "Chess Club", "newstudent@mergington.edu", 3, time.Now())
	reader := &stubReader{messages: []kafka.Message{rosterMessage(t, 10, event)}}
	handler := &stubHandler{}

	processor := NewProcessor(reader, handler, WithLogger(zaptest.NewLogger(t)))

	before := testutil.ToFloat64(auditedCounter.WithLabelValues("Chess Club", events.TypeParticipantSignedUp))
	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, before+1, testutil.ToFloat64(auditedCounter.WithLabelValues("Chess Club", events.TypeParticipantSignedUp)))
	require.Equal(t, event.EventID, handler.last.Event.EventID)
	require.Equal(t, "Chess Club", handler.last.Event.Activity)
	require.Equal(t, "newstudent@mergington.edu", handler.last.Event.Email)
	require.Equal(t, int64(10), handler.last.Offset)
}

func TestProcessorSkipsCommitOnHandlerError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	event := events.NewRosterChanged(events.TypeParticipantUnregistered, "Chess Club", "michael@mergington.edu", 1, time.Now())
	reader := &stubReader{messages: []kafka.Message{rosterMessage(t, 20, event)}}
	handler := &stubHandler{err: errors.New("boom")}

	processor := NewProcessor(reader, handler, WithLogger(zaptest.NewLogger(t)), WithRetry(3, time.Millisecond, time.Millisecond))

	before := testutil.ToFloat64(handlerErrorCounter.WithLabelValues("roster_events", events.TypeParticipantUnregistered))
	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 3, handler.calls)
	require.Equal(t, 0, reader.commitCalls)
	require.Equal(t, before+1, testutil.ToFloat64(handlerErrorCounter.WithLabelValues("roster_events", events.TypeParticipantUnregistered)))
}

func TestProcessorCommitsMalformedMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	valid := events.NewRosterChanged(events.TypeParticipantSignedUp, "Chess Club", "a@mergington.edu", 3, time.Now())
	mismatched := rosterMessage(t, 3, valid)
	mismatched.Headers[0].Value = []byte(events.TypeParticipantUnregistered)

	notUUID := valid
	notUUID.EventID = "evt-42"
	badID := rosterMessage(t, 5, notUUID)

	malformed := []kafka.Message{
		{Topic: "roster_events", Offset: 1, Value: []byte(`{}`)},
		{Topic: "roster_events", Offset: 2, Value: []byte(`not json`), Headers: []kafka.Header{{Key: "event_type", Value: []byte(events.TypeParticipantSignedUp)}}},
		mismatched,
		{Topic: "roster_events", Offset: 4, Value: []byte(`{}`), Headers: []kafka.Header{{Key: "event_type", Value: []byte("activity.created")}}},
		badID,
	}
	reader := &stubReader{messages: malformed}
	handler := &stubHandler{}

	before := testutil.ToFloat64(decodeErrorCounter.WithLabelValues("roster_events"))
	err := NewProcessor(reader, handler).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 0, handler.calls)
	require.Equal(t, len(malformed), reader.commitCalls)
	require.Equal(t, before+float64(len(malformed)), testutil.ToFloat64(decodeErrorCounter.WithLabelValues("roster_events")))
}

func TestProcessorRetriesAfterFetchError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	event := events.NewRosterChanged(events.TypeParticipantSignedUp, "Art Club", "a@mergington.edu", 3, time.Now())
	reader := &stubReader{
		messages:  []kafka.Message{rosterMessage(t, 7, event)},
		failFirst: errors.New("connection reset"),
	}
	handler := &stubHandler{}

	err := NewProcessor(reader, handler, WithLogger(zaptest.NewLogger(t))).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, handler.calls)
}

func TestProcessorRetriesHandlerBeforeCommitting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	event := events.NewRosterChanged(events.TypeParticipantSignedUp, "Drama Club", "a@mergington.edu", 3, time.Now())
	reader := &stubReader{messages: []kafka.Message{rosterMessage(t, 9, event)}}
	handler := &stubHandler{err: errors.New("connection refused"), failures: 2}

	before := testutil.ToFloat64(retryCounter.WithLabelValues(events.TypeParticipantSignedUp))
	err := NewProcessor(reader, handler, WithRetry(5, time.Millisecond, 2*time.Millisecond)).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 3, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, before+2, testutil.ToFloat64(retryCounter.WithLabelValues(events.TypeParticipantSignedUp)))
}

func TestProcessorStopsRetryingOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	event := events.NewRosterChanged(events.TypeParticipantSignedUp, "Drama Club", "a@mergington.edu", 3, time.Now())
	reader := &stubReader{messages: []kafka.Message{rosterMessage(t, 9, event)}}
	handler := &stubHandler{err: errors.New("connection refused"), onCall: cancel}

	err := NewProcessor(reader, handler, WithRetry(5, time.Hour, time.Hour)).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, handler.calls)
	require.Equal(t, 0, reader.commitCalls)
}

type stubReader struct {
	messages    []kafka.Message
	index       int
	commitCalls int
	failFirst   error
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if r.failFirst != nil {
		err := r.failFirst
		r.failFirst = nil
		return kafka.Message{}, err
	}
	if r.index >= len(r.messages) {
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, _ ...kafka.Message) error {
	r.commitCalls++
	return nil
}

func (r *stubReader) Close() error { return nil }

// stubHandler returns err on every call, or only on the first failures calls
// when failures is set.
type stubHandler struct {
	calls    int
	err      error
	failures int
	onCall   func()
	last     Message
}

func (h *stubHandler) Handle(_ context.Context, msg Message) error {
	h.calls++
	h.last = msg
	if h.onCall != nil {
		h.onCall()
	}
	if h.failures > 0 && h.calls > h.failures {
		return nil
	}
	return h.err
}
