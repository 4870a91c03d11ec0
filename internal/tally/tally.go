// Package tally keeps live per-session head counts in Redis, fed by attendance events.
package tally

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"uniattend/internal/attendance"
	"uniattend/internal/queue"
)

const ttl = 7 * 24 * time.Hour

// Tally stores the set of students seen per session.
type Tally struct {
	client *redis.Client
	prefix string
}

// New returns a Tally using keys under prefix.
func New(client *redis.Client, prefix string) *Tally {
	if prefix == "" {
		prefix = "attendance:session:"
	}
	return &Tally{client: client, prefix: prefix}
}

func (t *Tally) key(sessionID string) string { return t.prefix + sessionID + ":students" }

// Add records a student as present. Re-delivered events are idempotent.
func (t *Tally) Add(ctx context.Context, sessionID, studentID string) (bool, error) {
	var added *redis.IntCmd
	_, err := t.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		added = p.SAdd(ctx, t.key(sessionID), studentID)
		p.Expire(ctx, t.key(sessionID), ttl)
		return nil
	})
	if err != nil {
		return false, err
	}
	return added.Val() == 1, nil
}

// Count returns the number of distinct students recorded for the session.
func (t *Tally) Count(ctx context.Context, sessionID string) (int64, error) {
	return t.client.SCard(ctx, t.key(sessionID)).Result()
}

// Adder is the part of Tally the consumer needs.
type Adder interface {
	Add(ctx context.Context, sessionID, studentID string) (bool, error)
}

// Apply handles one queue message. Unknown message types are ignored.
func Apply(ctx context.Context, a Adder, msg queue.Message) error {
	if msg.Type != attendance.EventMarked {
		return nil
	}
	var evt attendance.MarkedEvent
	if err := json.Unmarshal(msg.Body, &evt); err != nil {
		return fmt.Errorf("decode %s: %w", msg.Type, err)
	}
	if evt.SessionID == "" || evt.StudentID == "" {
		return fmt.Errorf("decode %s: missing session or student", msg.Type)
	}
	_, err := a.Add(ctx, evt.SessionID, evt.StudentID)
	return err
}

// Run consumes q until ctx is done, applying each message to a.
func Run(ctx context.Context, q queue.Queue, a Adder, logger *zap.Logger) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	logger.Info("tally consumer started")
	for msg := range messages {
		if err := Apply(ctx, a, msg); err != nil {
			logger.Warn("tally apply failed", zap.String("type", msg.Type), zap.Error(err))
			continue
		}
		logger.Debug("tally applied", zap.String("type", msg.Type))
	}
	logger.Info("tally consumer stopped")
	return nil
}
