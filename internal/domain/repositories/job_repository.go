package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
)

// JobRepository defines the interface for the meeting job outbox
type JobRepository interface {
	// Enqueue inserts the job unless (meeting_id, job_type) already exists.
	// It reports whether a row was inserted.
	Enqueue(ctx context.Context, job *entities.MeetingJob) (bool, error)

	// ClaimBatch locks up to limit runnable jobs, marks them running and returns them
	ClaimBatch(ctx context.Context, limit int) ([]*entities.MeetingJob, error)

	// Save writes the job's status fields
	Save(ctx context.Context, job *entities.MeetingJob) error

	FindByMeetingAndType(ctx context.Context, meetingID uuid.UUID, jobType entities.JobType) (*entities.MeetingJob, error)
	ListByMeeting(ctx context.Context, meetingID uuid.UUID) ([]*entities.MeetingJob, error)

	// ReleaseStale marks running jobs locked longer than olderThan as failed;
	// they are retried only while attempts remain
	ReleaseStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

// ResultRepository stores the outputs of downstream jobs
type ResultRepository interface {
	// ReplaceTasks swaps the meeting's task list atomically
	ReplaceTasks(ctx context.Context, meetingID uuid.UUID, tasks []*entities.MeetingTask) error
	ListTasks(ctx context.Context, meetingID uuid.UUID) ([]*entities.MeetingTask, error)

	// UpsertGraph stores the meeting's relationship graph
	UpsertGraph(ctx context.Context, graph *entities.MeetingGraph) error

	// ListStrategiesByDomain returns active strategies for an email domain
	ListStrategiesByDomain(ctx context.Context, domain string) ([]*entities.CompanyStrategy, error)
}
