/**
 * Task definitions and enqueuer
 *
 * One task type carries one image to extract. Request IDs are UUIDs;
 * a missing ID is filled in at task creation so every task is traceable
 * through status sets and the results store.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// TaskTypeExtract is the queue task type for one extraction request
const TaskTypeExtract = "paramextract:extract"

// TaskPayload is the JSON payload of an extraction task
type TaskPayload struct {
	RequestID  string `json:"requestId"`
	ImageURL   string `json:"imageUrl"`
	EntityName string `json:"entityName"`
}

// NewExtractTask builds an asynq task for one image. A payload without a
// request ID gets a fresh UUID.
func NewExtractTask(payload *TaskPayload) (*asynq.Task, error) {
	if payload == nil {
		return nil, fmt.Errorf("payload is required")
	}
	if payload.ImageURL == "" {
		return nil, fmt.Errorf("image URL is required")
	}
	if payload.RequestID == "" {
		payload.RequestID = uuid.New().String()
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task payload: %w", err)
	}

	return asynq.NewTask(TaskTypeExtract, data), nil
}

// Enqueuer submits extraction tasks to the queue
type Enqueuer struct {
	client *asynq.Client
	queue  string
}

// NewEnqueuer creates a task submitter for the given queue
func NewEnqueuer(redisURL, queueName string) (*Enqueuer, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis URL is required")
	}
	if queueName == "" {
		return nil, fmt.Errorf("queue name is required")
	}

	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	return &Enqueuer{client: asynq.NewClient(redisOpt), queue: queueName}, nil
}

// Enqueue submits one task and returns its request ID
func (e *Enqueuer) Enqueue(ctx context.Context, payload *TaskPayload) (string, error) {
	task, err := NewExtractTask(payload)
	if err != nil {
		return "", err
	}

	if _, err := e.client.EnqueueContext(ctx, task, asynq.Queue(e.queue), asynq.MaxRetry(3)); err != nil {
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}

	return payload.RequestID, nil
}

// Close closes the underlying queue connection
func (e *Enqueuer) Close() error {
	return e.client.Close()
}
