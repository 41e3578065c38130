/**
 * Queue consumer
 *
 * Consumes extraction tasks from the Redis-backed queue and runs them
 * through the row pipeline. A row that resolves or finds no match is a
 * successful task; acquisition, decode, and timeout failures are
 * returned to the queue for retry with exponential backoff.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/catalogforge/paramextract/internal/logging"
	"github.com/catalogforge/paramextract/internal/processor"
	"github.com/catalogforge/paramextract/internal/storage"
)

// RowProcessor runs the per-row pipeline
type RowProcessor interface {
	Process(ctx context.Context, req *processor.Request) *processor.Result
}

// ResultStore persists task outcomes. Optional.
type ResultStore interface {
	SaveResults(ctx context.Context, runID string, records []storage.ResultRecord) error
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	RedisURL          string
	QueueName         string
	Concurrency       int
	ProcessingTimeout time.Duration
	Processor         RowProcessor
	Status            *StatusPublisher // optional
	Results           ResultStore      // optional
	Logger            *logging.Logger
}

// Consumer handles task consumption from the Redis queue
type Consumer struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor RowProcessor
	status    *StatusPublisher
	results   ResultStore
	timeout   time.Duration
	logger    *logging.Logger
}

// NewConsumer creates a new queue consumer
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("redis URL is required")
	}
	if cfg.QueueName == "" {
		return nil, fmt.Errorf("queue name is required")
	}
	if cfg.Processor == nil {
		return nil, fmt.Errorf("row processor is required")
	}

	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 10
	}
	timeout := cfg.ProcessingTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger("queue")
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10,
				"default":     1,
			},
			// Exponential backoff: 5s, 10s, 20s, capped at a minute
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				delay := time.Duration(5*(1<<uint(n))) * time.Second
				if delay > 60*time.Second {
					delay = 60 * time.Second
				}
				return delay
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task handler error", "type", task.Type(), "error", err)
			}),
		},
	)

	consumer := &Consumer{
		server:    server,
		mux:       asynq.NewServeMux(),
		processor: cfg.Processor,
		status:    cfg.Status,
		results:   cfg.Results,
		timeout:   timeout,
		logger:    logger,
	}
	consumer.mux.HandleFunc(TaskTypeExtract, consumer.handleExtract)

	logger.Info("Queue consumer configured",
		"queue", cfg.QueueName,
		"concurrency", concurrency,
		"processing_timeout_ms", timeout.Milliseconds())

	return consumer, nil
}

// Run starts the consumer and blocks until ctx is canceled, then shuts
// down gracefully.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.server.Start(c.mux); err != nil {
		return fmt.Errorf("failed to start queue consumer: %w", err)
	}

	<-ctx.Done()
	c.logger.Info("Stopping queue consumer")
	c.server.Shutdown()
	return nil
}

// handleExtract processes one extraction task
func (c *Consumer) handleExtract(ctx context.Context, task *asynq.Task) error {
	start := time.Now()

	var payload TaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}
	if payload.RequestID == "" {
		return fmt.Errorf("task payload has no request ID")
	}

	c.logger.Info("Task received",
		"request_id", payload.RequestID,
		"entity", payload.EntityName,
		"image_url", payload.ImageURL)

	if c.status != nil {
		c.status.Processing(ctx, payload.RequestID)
	}

	processCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res := c.processor.Process(processCtx, &processor.Request{
		RowID:    payload.RequestID,
		ImageURL: payload.ImageURL,
		Entity:   payload.EntityName,
	})

	duration := time.Since(start)
	c.persist(ctx, &payload, res)

	if res.State == processor.StateFailed {
		if c.status != nil {
			c.status.Failed(ctx, payload.RequestID, res.Err.ToMap())
		}
		c.logger.Warn("Task failed",
			"request_id", payload.RequestID,
			"code", res.Err.Code,
			"duration_ms", duration.Milliseconds())
		return res.Err
	}

	if c.status != nil {
		c.status.Completed(ctx, payload.RequestID, map[string]interface{}{
			"prediction": res.Prediction(),
			"paramType":  res.ParamType,
			"outcome":    res.Outcome(),
			"durationMs": duration.Milliseconds(),
		})
	}

	c.logger.Info("Task complete",
		"request_id", payload.RequestID,
		"outcome", res.Outcome(),
		"prediction", res.Prediction(),
		"duration_ms", duration.Milliseconds())

	return nil
}

// persist upserts the task outcome keyed by its request ID. Best-effort.
func (c *Consumer) persist(ctx context.Context, payload *TaskPayload, res *processor.Result) {
	if c.results == nil {
		return
	}

	rec := storage.ResultRecord{
		ImageURL:   payload.ImageURL,
		Entity:     payload.EntityName,
		ParamType:  res.ParamType,
		Outcome:    res.Outcome(),
		Prediction: res.Prediction(),
		DurationMs: res.Duration.Milliseconds(),
	}
	if res.Err != nil {
		rec.ErrorCode = string(res.Err.Code)
		rec.ErrorMessage = res.Err.Message
	}

	if err := c.results.SaveResults(ctx, payload.RequestID, []storage.ResultRecord{rec}); err != nil {
		c.logger.Warn("Failed to persist task result",
			"request_id", payload.RequestID, "error", err)
	}
}
