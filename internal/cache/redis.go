// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jason-s-yu/typerace/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list that receives finished race results.
const DefaultQueueName = "typerace_results"

// ConnectRedis opens a client for addr and db and checks it with a PING.
func ConnectRedis(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// ResultPublisher pushes race results onto a Redis list for downstream
// leaderboard consumers.
type ResultPublisher struct {
	rdb   *redis.Client
	queue string
}

func NewResultPublisher(rdb *redis.Client, queue string) *ResultPublisher {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &ResultPublisher{rdb: rdb, queue: queue}
}

// PublishResult serializes res to JSON and RPushes it onto the queue.
func (p *ResultPublisher) PublishResult(ctx context.Context, res models.RaceResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal RaceResult: %w", err)
	}
	if err := p.rdb.RPush(ctx, p.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", p.queue, err)
	}
	return nil
}
