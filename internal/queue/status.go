/**
 * Redis status publisher
 *
 * Tracks task state in Redis sets and hashes and publishes transition
 * events on a pub/sub channel for dashboard streaming:
 *
 *   <queue>:processing / :completed / :failed   request ID sets
 *   <queue>:results / :errors                   request ID -> JSON hashes
 *   <queue>:events                              pub/sub channel
 *
 * Publishing is best-effort: a Redis hiccup is logged and never fails
 * the task that triggered it.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/catalogforge/paramextract/internal/logging"
)

// StatusPublisher mirrors task state into Redis
type StatusPublisher struct {
	client *redis.Client
	prefix string
	logger *logging.Logger
}

// NewStatusPublisher connects to Redis and verifies it is reachable
func NewStatusPublisher(redisURL, queueName string, logger *logging.Logger) (*StatusPublisher, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis URL is required")
	}
	if queueName == "" {
		return nil, fmt.Errorf("queue name is required")
	}
	if logger == nil {
		logger = logging.NewLogger("status")
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &StatusPublisher{client: client, prefix: queueName, logger: logger}, nil
}

// Processing marks a request as in flight
func (s *StatusPublisher) Processing(ctx context.Context, requestID string) {
	s.try(ctx, s.client.SAdd(ctx, s.key("processing"), requestID).Err(), requestID)
	s.publishEvent(ctx, "processing", requestID)
}

// Completed records a finished request and its result
func (s *StatusPublisher) Completed(ctx context.Context, requestID string, result map[string]interface{}) {
	s.try(ctx, s.client.SRem(ctx, s.key("processing"), requestID).Err(), requestID)
	s.try(ctx, s.client.SAdd(ctx, s.key("completed"), requestID).Err(), requestID)
	if result != nil {
		if data, err := json.Marshal(result); err == nil {
			s.try(ctx, s.client.HSet(ctx, s.key("results"), requestID, data).Err(), requestID)
		}
	}
	s.publishEvent(ctx, "completed", requestID)
}

// Failed records a failed request and its error detail
func (s *StatusPublisher) Failed(ctx context.Context, requestID string, errorInfo map[string]interface{}) {
	s.try(ctx, s.client.SRem(ctx, s.key("processing"), requestID).Err(), requestID)
	s.try(ctx, s.client.SAdd(ctx, s.key("failed"), requestID).Err(), requestID)
	if errorInfo != nil {
		if data, err := json.Marshal(errorInfo); err == nil {
			s.try(ctx, s.client.HSet(ctx, s.key("errors"), requestID, data).Err(), requestID)
		}
	}
	s.publishEvent(ctx, "failed", requestID)
}

// Stats reports how many requests sit in each state set
func (s *StatusPublisher) Stats(ctx context.Context) (map[string]int64, error) {
	stats := make(map[string]int64, 3)
	for _, state := range []string{"processing", "completed", "failed"} {
		n, err := s.client.SCard(ctx, s.key(state)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s set: %w", state, err)
		}
		stats[state] = n
	}
	return stats, nil
}

// Close closes the Redis connection
func (s *StatusPublisher) Close() error {
	return s.client.Close()
}

func (s *StatusPublisher) publishEvent(ctx context.Context, status, requestID string) {
	event := map[string]interface{}{
		"event":     fmt.Sprintf("task:%s", status),
		"requestId": requestID,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	s.try(ctx, s.client.Publish(ctx, s.key("events"), data).Err(), requestID)
}

func (s *StatusPublisher) key(suffix string) string {
	return fmt.Sprintf("%s:%s", s.prefix, suffix)
}

func (s *StatusPublisher) try(ctx context.Context, err error, requestID string) {
	if err != nil && ctx.Err() == nil {
		s.logger.Warn("Status update dropped", "request_id", requestID, "error", err)
	}
}
