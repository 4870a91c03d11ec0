package queue

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Options selects and configures a queue backend.
type Options struct {
	Backend      string // memory, redis or kafka
	Redis        *redis.Client
	RedisKey     string
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string
	MemorySize   int
}

// Open builds the configured backend. Kafka queues must be closed by the caller.
func Open(o Options) (Queue, error) {
	switch o.Backend {
	case "memory":
		size := o.MemorySize
		if size <= 0 {
			size = 256
		}
		return NewInMemory(size), nil
	case "redis", "":
		if o.Redis == nil {
			return nil, errors.New("redis queue requires a client")
		}
		return NewRedisQueue(o.Redis, o.RedisKey), nil
	case "kafka":
		kq, err := NewKafkaQueue(o.KafkaBrokers, o.KafkaTopic, o.KafkaGroupID)
		if err != nil {
			return nil, err
		}
		return kq, nil
	default:
		return nil, fmt.Errorf("unknown queue backend %q", o.Backend)
	}
}
