package meeting

import (
	"context"

	"github.com/google/uuid"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
)

// Service defines the operator view of reconciled meetings
type Service interface {
	// GetMeeting retrieves a meeting by ID, including soft-deleted rows
	GetMeeting(ctx context.Context, id uuid.UUID) (*entities.Meeting, error)

	// ListParticipants retrieves the participants of a meeting with their users
	ListParticipants(ctx context.Context, id uuid.UUID) ([]*entities.MeetingParticipant, error)

	// ListJobs retrieves the outbox rows of a meeting
	ListJobs(ctx context.Context, id uuid.UUID) ([]*entities.MeetingJob, error)

	// ListTasks retrieves the tasks extracted from a meeting
	ListTasks(ctx context.Context, id uuid.UUID) ([]*entities.MeetingTask, error)

	// RetryJob requeues a finished or failed job, or enqueues it when it never ran
	RetryJob(ctx context.Context, id uuid.UUID, jobType string) (*entities.MeetingJob, error)
}
