package consumer

import (
	"context"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"example.com/reactivities/internal/events"
)

func framed(schemaID int, payload string) []byte {
	return events.EncodeWireFormat(schemaID, []byte(payload))
}

func TestProcessorCommitsOnSuccess(t *testing.T) {
	payload := `{"activity_id":"abc"}`
	record := kafka.Message{
		Topic:     "activity_events",
		Partition: 0,
		Offset:    10,
		Key:       []byte("abc"),
		Time:      time.Now().UTC(),
		Value:     framed(42, payload),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(events.TypeActivityCreated)},
			{Key: "schema_subject", Value: []byte("activity_created-value")},
			{Key: "aggregate_id", Value: []byte("abc")},
		},
	}
	reader := &stubReader{messages: []kafka.Message{record}}
	handler := &stubHandler{}

	err := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0))).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, events.TypeActivityCreated, handler.last.EventType)
	require.Equal(t, "abc", handler.last.AggregateID)
	require.Equal(t, "activity_created-value", handler.last.SchemaSubject)
	require.Equal(t, 42, handler.last.SchemaID)
	require.JSONEq(t, payload, string(handler.last.Payload))
}

func TestProcessorSkipsCommitOnHandlerError(t *testing.T) {
	record := kafka.Message{
		Topic:   "attendance_events",
		Offset:  20,
		Value:   framed(99, `{"activity_id":"def"}`),
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(events.TypeAttendeeJoined)}},
	}
	reader := &stubReader{messages: []kafka.Message{record}}
	handler := &stubHandler{err: errors.New("boom")}

	before := testutil.ToFloat64(handlerErrorCounter.WithLabelValues("attendance_events", events.TypeAttendeeJoined))
	err := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0))).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Zero(t, reader.commitCalls)
	after := testutil.ToFloat64(handlerErrorCounter.WithLabelValues("attendance_events", events.TypeAttendeeJoined))
	require.InDelta(t, before+1, after, 0.0001)
}

func TestProcessorCommitsAndSkipsMalformedRecords(t *testing.T) {
	reader := &stubReader{messages: []kafka.Message{
		{Topic: "activity_events", Value: framed(1, `{}`)},
		{Topic: "activity_events", Value: []byte{1, 0, 0, 0, 1, '{', '}'}, Headers: []kafka.Header{{Key: "event_type", Value: []byte("x")}}},
		{Topic: "activity_events", Value: []byte{0, 1}, Headers: []kafka.Header{{Key: "event_type", Value: []byte("x")}}},
	}}
	handler := &stubHandler{}

	before := testutil.ToFloat64(decodeErrorCounter.WithLabelValues("activity_events"))
	err := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0))).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Zero(t, handler.calls)
	require.Equal(t, 3, reader.commitCalls)
	require.InDelta(t, before+3, testutil.ToFloat64(decodeErrorCounter.WithLabelValues("activity_events")), 0.0001)
}

func TestDecodeFallsBackToKeyForAggregate(t *testing.T) {
	msg, err := decodeMessage(kafka.Message{
		Key:     []byte("act-9"),
		Value:   framed(3, `{}`),
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(events.TypeCommentPosted)}},
	})
	require.NoError(t, err)
	require.Equal(t, "act-9", msg.AggregateID)
	require.Equal(t, 3, msg.SchemaID)
}

func TestProcessorStopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reader := &stubReader{messages: []kafka.Message{{Value: framed(1, `{}`)}}}
	err := NewProcessor(reader, &stubHandler{}).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, reader.index)
}

type stubReader struct {
	messages    []kafka.Message
	index       int
	commitCalls int
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
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

type stubHandler struct {
	calls int
	err   error
	last  Message
}

func (h *stubHandler) Handle(_ context.Context, msg Message) error {
	h.calls++
	h.last = msg
	return h.err
}

type testWriter struct {
	t *testing.T
}

func (tw testWriter) Write(p []byte) (int, error) {
	tw.t.Log(string(p))
	return len(p), nil
}
