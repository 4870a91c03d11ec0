package tally

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"uniattend/internal/attendance"
	"uniattend/internal/queue"
)

type fakeAdder struct {
	mu   sync.Mutex
	seen map[string]map[string]bool
	err  error
}

func (f *fakeAdder) Add(_ context.Context, sessionID, studentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.seen == nil {
		f.seen = map[string]map[string]bool{}
	}
	if f.seen[sessionID] == nil {
		f.seen[sessionID] = map[string]bool{}
	}
	added := !f.seen[sessionID][studentID]
	f.seen[sessionID][studentID] = true
	return added, nil
}

func (f *fakeAdder) count(sessionID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen[sessionID])
}

func markedMessage(t *testing.T, sessionID, studentID string) queue.Message {
	t.Helper()
	m, err := queue.NewJSON(attendance.EventMarked, attendance.MarkedEvent{
		RecordID: uuid.NewString(), SessionID: sessionID, StudentID: studentID,
		Method: attendance.MethodQRCode, MarkedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	return m
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	a := &fakeAdder{}

	require.NoError(t, Apply(ctx, a, markedMessage(t, "s1", "stu-1")))
	require.NoError(t, Apply(ctx, a, markedMessage(t, "s1", "stu-1")))
	require.NoError(t, Apply(ctx, a, markedMessage(t, "s1", "stu-2")))
	assert.Equal(t, 2, a.count("s1"))

	assert.NoError(t, Apply(ctx, a, queue.Message{Type: "other", Body: []byte("x")}))
	assert.Error(t, Apply(ctx, a, queue.Message{Type: attendance.EventMarked, Body: []byte("{")}))

	body, _ := json.Marshal(attendance.MarkedEvent{SessionID: "s1"})
	assert.Error(t, Apply(ctx, a, queue.Message{Type: attendance.EventMarked, Body: body}))

	a.err = errors.New("redis down")
	assert.Error(t, Apply(ctx, a, markedMessage(t, "s1", "stu-3")))
}

func TestRun_InMemory(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := queue.NewInMemory(8)
	a := &fakeAdder{}

	done := make(chan error, 1)
	go func() { done <- Run(ctx, q, a, zaptest.NewLogger(t)) }()

	require.NoError(t, q.Publish(ctx, markedMessage(t, "s9", "stu-1")))
	require.NoError(t, q.Publish(ctx, queue.Message{Type: attendance.EventMarked, Body: []byte("bad")}))
	require.NoError(t, q.Publish(ctx, markedMessage(t, "s9", "stu-2")))

	assert.Eventually(t, func() bool { return a.count("s9") == 2 }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestTally_Redis(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })

	tl := New(client, "test:tally:"+uuid.NewString()+":")
	added, err := tl.Add(ctx, "s1", "stu-1")
	require.NoError(t, err)
	assert.True(t, added)
	added, err = tl.Add(ctx, "s1", "stu-1")
	require.NoError(t, err)
	assert.False(t, added)

	n, err := tl.Count(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
