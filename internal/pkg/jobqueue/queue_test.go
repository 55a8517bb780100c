package jobqueue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JobMwaura/zintra-sub007/internal/pkg/testutil"
)

func TestNewQueue(t *testing.T) {
	tests := []struct {
		name            string
		workers         int
		expectedWorkers int
	}{
		{"Valid worker count", 5, 5},
		{"Zero workers", 0, 3},
		{"Negative workers", -1, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue := NewQueue(nil, tt.workers)

			assert.Equal(t, tt.expectedWorkers, queue.workers)
			assert.Equal(t, tt.expectedWorkers, cap(queue.workerPool))
			assert.NotNil(t, queue.processors)
			assert.False(t, queue.running)
		})
	}
}

func TestConstants(t *testing.T) {
	assert.Equal(t, "job:", JobKeyPrefix)
	assert.Equal(t, "job_queue", JobQueueKey)
	assert.Equal(t, "job_processing", JobProcessingKey)
	assert.Equal(t, "job_stats", JobStatsKey)
	assert.Equal(t, 3, DefaultMaxRetries)
	assert.Equal(t, 24*time.Hour, JobTTL)
}

func newRedisQueue(t *testing.T) *Queue {
	t.Helper()
	client := testutil.RedisClient(t, testutil.RedisDBJobQueue)
	q := NewQueue(client, 1)
	q.retryDelay = func(int) time.Duration { return 0 }
	return q
}

func TestQueue_ProcessSuccess(t *testing.T) {
	q := newRedisQueue(t)
	ctx := context.Background()

	var got string
	q.Register(JobTypeDeliverNotification, func(ctx context.Context, job *Job) error {
		p, err := DeliverNotificationPayloadFromMap(job.Payload)
		require.NoError(t, err)
		got = p.NotificationID
		return nil
	})

	job, err := q.EnqueueJob(ctx, JobTypeDeliverNotification, DeliverNotificationPayload{NotificationID: "n-1"}.ToMap())
	require.NoError(t, err)

	ok, err := q.ProcessNext(ctx, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "n-1", got)

	_, err = q.GetJob(ctx, job.ID)
	assert.Error(t, err, "completed jobs are removed")
	size, err := q.GetProcessingSize(ctx)
	require.NoError(t, err)
	assert.Zero(t, size)

	stats, err := q.GetJobStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats[JobStatusCompleted])
}

func TestQueue_RetriesThenFails(t *testing.T) {
	q := newRedisQueue(t)
	ctx := context.Background()

	attempts := 0
	q.Register(JobTypeRefreshCapabilities, func(ctx context.Context, job *Job) error {
		attempts++
		return errors.New("resolver down")
	})
	job, err := q.EnqueueJob(ctx, JobTypeRefreshCapabilities, RefreshCapabilitiesPayload{UserID: "u-1"}.ToMap())
	require.NoError(t, err)

	for i := 0; i < DefaultMaxRetries; i++ {
		ok, err := q.ProcessNext(ctx, 2*time.Second)
		require.NoError(t, err)
		require.True(t, ok, "attempt %d", i+1)
	}
	assert.Equal(t, DefaultMaxRetries, attempts)

	stored, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, stored.Status)
	assert.Equal(t, "resolver down", stored.ErrorMsg)

	ok, err := q.ProcessNext(ctx, 200*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok, "failed jobs are not re-enqueued")
}

func TestQueue_UnknownTypeFails(t *testing.T) {
	q := newRedisQueue(t)
	ctx := context.Background()

	job, err := q.EnqueueJob(ctx, JobType("mystery"), nil)
	require.NoError(t, err)
	ok, err := q.ProcessNext(ctx, time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	stored, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Contains(t, stored.ErrorMsg, ErrUnknownJobType.Error())
}

func TestQueue_RecoverStuck(t *testing.T) {
	q := newRedisQueue(t)
	ctx := context.Background()

	job, err := q.EnqueueJob(ctx, JobTypeDeliverNotification, DeliverNotificationPayload{NotificationID: "n-1"}.ToMap())
	require.NoError(t, err)

	// Simulate a worker that died after claiming the job.
	claimed, err := q.dequeueJob(ctx, time.Second)
	require.NoError(t, err)
	claimed.MarkAsProcessing()
	old := time.Now().Add(-time.Hour)
	claimed.ProcessedAt = &old
	q.updateJob(ctx, claimed)
	require.NoError(t, q.client.LPush(ctx, JobProcessingKey, "dangling-id").Err())

	n, err := q.RecoverStuck(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pending, err := q.GetQueueSize(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, pending)
	processing, err := q.GetProcessingSize(ctx)
	require.NoError(t, err)
	assert.Zero(t, processing)

	stored, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, stored.Status)
}
