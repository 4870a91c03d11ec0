package queue

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaQueue publishes to and consumes from one Kafka topic. The message type
// travels as the record key.
type KafkaQueue struct {
	writer  *kafka.Writer
	brokers []string
	topic   string
	groupID string
}

// NewKafkaQueue creates a Kafka-backed queue. Consumers join groupID.
func NewKafkaQueue(brokers []string, topic, groupID string) (*KafkaQueue, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, errors.New("kafka brokers and topic are required")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaQueue{writer: w, brokers: brokers, topic: topic, groupID: groupID}, nil
}

// Publish writes one message, bounded by a short timeout.
func (q *KafkaQueue) Publish(ctx context.Context, msg Message) error {
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return q.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(msg.Type),
		Value: msg.Body,
	})
}

// Consume reads the topic as part of the consumer group until ctx is done.
func (q *KafkaQueue) Consume(ctx context.Context) (<-chan Message, error) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  q.brokers,
		Topic:    q.topic,
		GroupID:  q.groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	out := make(chan Message)
	go func() {
		defer close(out)
		defer r.Close()
		for {
			m, err := r.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				time.Sleep(time.Second)
				continue
			}
			select {
			case out <- Message{Type: string(m.Key), Body: m.Value}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close flushes and closes the writer.
func (q *KafkaQueue) Close() error {
	if q == nil || q.writer == nil {
		return nil
	}
	return q.writer.Close()
}
