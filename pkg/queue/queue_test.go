package queue

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewQueue(client, nil), mr
}

func TestEnqueueDequeueTestJob(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	testID := uuid.New()

	require.NoError(t, q.EnqueueTestJob(ctx, JobTypeVariantRotate, TestJobPayload{TestID: testID}))

	job, origin, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, QueueABTests, origin)
	assert.Equal(t, JobTypeVariantRotate, job.Type)

	var payload TestJobPayload
	require.NoError(t, json.Unmarshal(job.Payload, &payload))
	assert.Equal(t, testID, payload.TestID)
}

func TestEnqueueTestJobRejectsUploadType(t *testing.T) {
	q, _ := newTestQueue(t)
	err := q.EnqueueTestJob(context.Background(), JobTypeYouTubeUpload, TestJobPayload{TestID: uuid.New()})
	assert.Error(t, err)
}

func TestUploadJobsLandOnUploadQueue(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.EnqueueUpload(ctx, UploadJobPayload{RequestID: uuid.New(), UserID: uuid.New()}))
	assert.Equal(t, 1, len(mr.Keys()))

	job, origin, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, QueueUploads, origin)
	assert.Equal(t, JobTypeYouTubeUpload, job.Type)
}

func TestRetryMovesToDLQAfterMaxRetries(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.EnqueueTestJob(ctx, JobTypeWinnerCheck, TestJobPayload{TestID: uuid.New()}))
	job, origin, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)

	for i := 0; i < MaxRetries-1; i++ {
		require.NoError(t, q.Retry(ctx, job, origin))
		job, origin, err = q.Dequeue(ctx)
		require.NoError(t, err)
		require.NotNil(t, job, "attempt %d should still be retried", i+1)
	}

	// Final retry exceeds MaxRetries and lands on the DLQ.
	require.NoError(t, q.Retry(ctx, job, origin))
	dlqLen, err := mr.List(QueueDLQ)
	require.NoError(t, err)
	assert.Len(t, dlqLen, 1)
}
