package jobcontext

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobBegin_Metadata(t *testing.T) {
	jobID, meetingID := uuid.New(), uuid.New()
	ctx, cancel := JobBegin(context.Background(), jobID, meetingID, "summarize", 2)
	defer cancel()

	md := GetJobMetadata(ctx)
	assert.Equal(t, jobID, md.JobID)
	assert.Equal(t, meetingID, md.MeetingID)
	assert.Equal(t, "summarize", md.JobType)
	assert.Equal(t, 2, md.WorkerID)
	assert.Equal(t, 3, md.MaxRetries)

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(DefaultTimeout), deadline, time.Second)
}

func TestJobEnd_Success(t *testing.T) {
	calls := 0
	err := JobEnd(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestJobEnd_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	parseErr := errors.New("bad json")
	err := JobEnd(context.Background(), func(ctx context.Context) error {
		calls++
		return Permanent(parseErr)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, parseErr)
}

func TestJobEnd_PanicIsPermanent(t *testing.T) {
	err := JobEnd(context.Background(), func(ctx context.Context) error {
		panic("boom")
	})
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
	assert.Contains(t, err.Error(), "boom")
}

func TestJobEnd_TransientExhaustsRetries(t *testing.T) {
	ctx := SetMaxRetries(context.Background(), 1)
	calls := 0
	err := JobEnd(ctx, func(ctx context.Context) error {
		calls++
		return errors.New("upstream returned status 503")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.False(t, IsPermanent(err))
	assert.Contains(t, err.Error(), "max retries (1) exceeded")
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, IsRetryableError(errors.New("dial tcp: connection refused")))
	assert.True(t, IsRetryableError(errors.New("llm returned status 503: down")))
	assert.True(t, IsRetryableError(context.DeadlineExceeded))
	assert.False(t, IsRetryableError(errors.New("meeting not found")))
	assert.False(t, IsRetryableError(Permanent(errors.New("i/o timeout"))))
	assert.False(t, IsRetryableError(nil))
}

func TestCalculateBackoff(t *testing.T) {
	assert.Equal(t, 30*time.Second, CalculateBackoff(0, 30*time.Second))
	assert.Equal(t, 2*time.Minute, CalculateBackoff(2, 30*time.Second))
	assert.Equal(t, 30*time.Minute, CalculateBackoff(9, 30*time.Second))
}
