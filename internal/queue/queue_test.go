package queue

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemory_PublishConsume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	msgs, err := q.Consume(ctx)
	require.NoError(t, err)

	require.NoError(t, q.Publish(ctx, Message{Type: "attendance.marked", Body: []byte(`{"a":1}`)}))

	select {
	case m := <-msgs:
		assert.Equal(t, "attendance.marked", m.Type)
		assert.JSONEq(t, `{"a":1}`, string(m.Body))
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}

	cancel()
	select {
	case _, ok := <-msgs:
		assert.False(t, ok, "channel should close after cancel")
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestInMemory_PublishRespectsContext(t *testing.T) {
	q := NewInMemory(1)
	require.NoError(t, q.Publish(context.Background(), Message{Type: "x"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Publish(ctx, Message{Type: "y"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSerializeRoundTrip(t *testing.T) {
	in := Message{Type: "attendance.marked", Body: []byte(`{"note":"a|b"}`)}
	out := deserialize(serialize(in))
	assert.Equal(t, in.Type, out.Type)
	assert.Equal(t, string(in.Body), string(out.Body))

	raw := deserialize("no-separator")
	assert.Equal(t, "", raw.Type)
	assert.Equal(t, "no-separator", string(raw.Body))
}

func TestNewJSON(t *testing.T) {
	m, err := NewJSON("attendance.marked", map[string]string{"session_id": "s1"})
	require.NoError(t, err)
	assert.Equal(t, "attendance.marked", m.Type)
	assert.JSONEq(t, `{"session_id":"s1"}`, string(m.Body))
}

func TestNewKafkaQueue_Validation(t *testing.T) {
	_, err := NewKafkaQueue(nil, "topic", "group")
	assert.Error(t, err)
	_, err = NewKafkaQueue([]string{"localhost:9092"}, "", "group")
	assert.Error(t, err)

	q, err := NewKafkaQueue([]string{"localhost:9092"}, "attendance-events", "group")
	require.NoError(t, err)
	assert.NoError(t, q.Close())
}

func TestOpen(t *testing.T) {
	q, err := Open(Options{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &InMemory{}, q)

	q, err = Open(Options{Backend: "redis", Redis: redis.NewClient(&redis.Options{Addr: "localhost:0"})})
	require.NoError(t, err)
	assert.IsType(t, &RedisQueue{}, q)

	q, err = Open(Options{Backend: "kafka", KafkaBrokers: []string{"localhost:9092"}, KafkaTopic: "attendance-events"})
	require.NoError(t, err)
	assert.IsType(t, &KafkaQueue{}, q)
	assert.NoError(t, q.(*KafkaQueue).Close())

	for _, o := range []Options{
		{Backend: "redis"},
		{Backend: "kafka"},
		{Backend: "sqs"},
	} {
		_, err := Open(o)
		assert.Error(t, err, o.Backend)
	}
}
