package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingWriter struct {
	writes map[string][]kafka.Message
	topics []string
	err    error
}

func (w *recordingWriter) WriteMessages(_ context.Context, topic string, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	if w.writes == nil {
		w.writes = make(map[string][]kafka.Message)
	}
	w.topics = append(w.topics, topic)
	w.writes[topic] = append(w.writes[topic], msgs...)
	return nil
}

func newTestDispatcher(w messageWriter) *Dispatcher {
	d := NewDispatcher(nil, w, zap.NewNop(), time.Second, 10)
	d.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return d
}

func TestDeliverGroupsByTopicInOrder(t *testing.T) {
	writer := &recordingWriter{}
	d := newTestDispatcher(writer)

	messages := []Message{
		{EventID: 1, AggregateID: "u1", EventType: EventUserCreated, Topic: "user_events", PartitionKey: "u1", Payload: []byte(`{"user_id":"u1"}`)},
		{EventID: 2, AggregateID: "e1", EventType: EventExerciseLogged, Topic: "exercise_events", PartitionKey: "u1", Payload: []byte(`{"exercise_id":"e1"}`)},
		{EventID: 3, AggregateID: "e2", EventType: EventExerciseLogged, Topic: "exercise_events", PartitionKey: "u1", Payload: []byte(`{"exercise_id":"e2"}`)},
	}

	require.NoError(t, d.deliver(context.Background(), messages))
	assert.Equal(t, []string{"user_events", "exercise_events"}, writer.topics)
	require.Len(t, writer.writes["exercise_events"], 2)

	msg := writer.writes["exercise_events"][0]
	assert.Equal(t, "u1", string(msg.Key))
	assert.JSONEq(t, `{"exercise_id":"e1"}`, string(msg.Value))
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), msg.Time)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, EventExerciseLogged, string(msg.Headers[0].Value))
	assert.Equal(t, "aggregate_id", msg.Headers[1].Key)
	assert.Equal(t, "e1", string(msg.Headers[1].Value))
}

func TestDeliverRejectsUnknownEventType(t *testing.T) {
	writer := &recordingWriter{}
	d := newTestDispatcher(writer)

	err := d.deliver(context.Background(), []Message{{EventID: 1, EventType: "user.deleted", Topic: "user_events"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user.deleted")
	assert.Empty(t, writer.topics)
}

func TestDeliverWrapsWriterError(t *testing.T) {
	boom := errors.New("broker unavailable")
	d := newTestDispatcher(&recordingWriter{err: boom})

	err := d.deliver(context.Background(), []Message{{EventID: 1, EventType: EventUserCreated, Topic: "user_events"}})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "user_events")
}

func TestCatalogRoutesBothEvents(t *testing.T) {
	assert.Equal(t, "user_events", Catalog[EventUserCreated].Topic)
	assert.Equal(t, "exercise_events", Catalog[EventExerciseLogged].Topic)
}

type fakeStore struct {
	pending   []Message
	published []int64
	dead      []string
}

func (s *fakeStore) claim(_ context.Context, limit int) ([]Message, error) {
	n := min(limit, len(s.pending))
	batch := s.pending[:n]
	s.pending = s.pending[n:]
	return batch, nil
}

func (s *fakeStore) markPublished(_ context.Context, ids []int64) error {
	s.published = append(s.published, ids...)
	return nil
}

func (s *fakeStore) deadLetter(_ context.Context, msg Message, reason string) error {
	s.dead = append(s.dead, reason)
	return nil
}

type slowWriter struct {
	delay time.Duration
}

func (w slowWriter) WriteMessages(ctx context.Context, _ string, _ ...kafka.Message) error {
	time.Sleep(w.delay)
	return nil
}

func batchDurationSum(t *testing.T) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, batchDuration.Write(&m))
	return m.GetHistogram().GetSampleSum()
}

func TestProcessBatchObservesDeliveryTime(t *testing.T) {
	store := &fakeStore{pending: []Message{{EventID: 7, EventType: EventUserCreated, Topic: "user_events"}}}
	d := newTestDispatcher(slowWriter{delay: 50 * time.Millisecond})
	d.store = store

	before := batchDurationSum(t)
	require.NoError(t, d.processBatch(context.Background()))

	assert.GreaterOrEqual(t, batchDurationSum(t)-before, 0.05)
	assert.Equal(t, []int64{7}, store.published)
}

func TestProcessBatchRoutesFailuresToDLQ(t *testing.T) {
	store := &fakeStore{pending: []Message{
		{EventID: 1, EventType: EventUserCreated, Topic: "user_events"},
		{EventID: 2, EventType: EventExerciseLogged, Topic: "exercise_events"},
	}}
	d := newTestDispatcher(&recordingWriter{err: errors.New("broker unavailable")})
	d.store = store

	require.NoError(t, d.processBatch(context.Background()))

	require.Len(t, store.dead, 2)
	assert.Contains(t, store.dead[0], "broker unavailable")
	assert.Contains(t, store.dead[1], "topic=exercise_events")
	assert.Equal(t, []int64{1, 2}, store.published)
}

func TestProcessBatchEmptyIsNoop(t *testing.T) {
	store := &fakeStore{}
	d := newTestDispatcher(&recordingWriter{})
	d.store = store

	require.NoError(t, d.processBatch(context.Background()))
	assert.Empty(t, store.published)
}
