package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueABTests is the Redis list key for A/B test jobs (rotation, metrics, winner checks).
	QueueABTests = "worker:abtests"
	// QueueUploads is the Redis list key for YouTube upload jobs.
	QueueUploads = "worker:uploads"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeVariantRotate  JobType = "variant_rotate"
	JobTypeMetricsCollect JobType = "metrics_collect"
	JobTypeWinnerCheck    JobType = "winner_check"
	JobTypeExpireTest     JobType = "expire_test"
	JobTypeYouTubeUpload  JobType = "youtube_upload"
)

// TestJobPayload is the payload for A/B test lifecycle jobs.
type TestJobPayload struct {
	TestID uuid.UUID `json:"test_id"`
}

// UploadJobPayload is the payload for YouTube upload jobs.
type UploadJobPayload struct {
	RequestID uuid.UUID `json:"request_id"` // approval request to upload
	UserID    uuid.UUID `json:"user_id"`    // user whose YouTube credentials to use
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue enqueues and dequeues jobs via Redis lists.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

// EnqueueTestJob enqueues an A/B test lifecycle job.
func (q *Queue) EnqueueTestJob(ctx context.Context, jobType JobType, payload TestJobPayload) error {
	switch jobType {
	case JobTypeVariantRotate, JobTypeMetricsCollect, JobTypeWinnerCheck, JobTypeExpireTest:
	default:
		return fmt.Errorf("job type %s is not a test job", jobType)
	}
	return q.push(ctx, QueueABTests, jobType, payload)
}

// EnqueueUpload enqueues a YouTube upload job.
func (q *Queue) EnqueueUpload(ctx context.Context, payload UploadJobPayload) error {
	return q.push(ctx, QueueUploads, JobTypeYouTubeUpload, payload)
}

func (q *Queue) push(ctx context.Context, key string, jobType JobType, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	job := Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Payload:   body,
		Attempt:   0,
		CreatedAt: time.Now(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	q.logger.Debug("enqueued job", zap.String("job_id", job.ID), zap.String("type", string(jobType)))
	return nil
}

// Dequeue blocks until a job is available on any work queue or ctx is done.
// Returns the job and the queue it came from.
func (q *Queue) Dequeue(ctx context.Context) (*Job, string, error) {
	result, err := q.client.BLPop(ctx, 0, QueueABTests, QueueUploads).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, "", nil
		}
		return nil, "", err
	}
	if len(result) < 2 {
		return nil, "", nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, "", nil
	}
	return &job, result[0], nil
}

// Retry re-enqueues a job on its origin queue with incremented attempt.
// If attempt >= MaxRetries, pushes to DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job, origin string) error {
	job.Attempt++
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if job.Attempt >= MaxRetries {
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	if origin == "" {
		origin = QueueABTests
	}
	if err := q.client.RPush(ctx, origin, raw).Err(); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}
