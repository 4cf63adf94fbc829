package meeting

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
	"github.com/johnquangdev/meeting-sync/internal/domain/repositories"
	usecaseErrors "github.com/johnquangdev/meeting-sync/internal/usecase/errors"
)

// MeetingService handles the admin meeting API
type MeetingService struct {
	meetingRepo     repositories.MeetingRepository
	participantRepo repositories.ParticipantRepository
	jobRepo         repositories.JobRepository
	resultRepo      repositories.ResultRepository
	maxAttempts     int
	logger          *zap.Logger
}

var _ Service = (*MeetingService)(nil)

// NewMeetingService creates a new meeting service
func NewMeetingService(
	meetingRepo repositories.MeetingRepository,
	participantRepo repositories.ParticipantRepository,
	jobRepo repositories.JobRepository,
	resultRepo repositories.ResultRepository,
	maxAttempts int,
	logger *zap.Logger,
) *MeetingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MeetingService{
		meetingRepo:     meetingRepo,
		participantRepo: participantRepo,
		jobRepo:         jobRepo,
		resultRepo:      resultRepo,
		maxAttempts:     maxAttempts,
		logger:          logger,
	}
}

// GetMeeting retrieves a meeting by ID
func (s *MeetingService) GetMeeting(ctx context.Context, id uuid.UUID) (*entities.Meeting, error) {
	return s.meetingRepo.FindByID(ctx, id)
}

// ListParticipants retrieves all participants of a meeting
func (s *MeetingService) ListParticipants(ctx context.Context, id uuid.UUID) ([]*entities.MeetingParticipant, error) {
	if _, err := s.meetingRepo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	participants, err := s.participantRepo.ListByMeeting(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	return participants, nil
}

// ListJobs retrieves all outbox jobs of a meeting
func (s *MeetingService) ListJobs(ctx context.Context, id uuid.UUID) ([]*entities.MeetingJob, error) {
	if _, err := s.meetingRepo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.jobRepo.ListByMeeting(ctx, id)
}

// ListTasks retrieves the extracted tasks of a meeting
func (s *MeetingService) ListTasks(ctx context.Context, id uuid.UUID) ([]*entities.MeetingTask, error) {
	if _, err := s.meetingRepo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.resultRepo.ListTasks(ctx, id)
}

// RetryJob gives a job a fresh attempt budget. Jobs that never ran, like
// agenda scoring or summarization, are enqueued instead.
func (s *MeetingService) RetryJob(ctx context.Context, id uuid.UUID, jobType string) (*entities.MeetingJob, error) {
	jt, ok := entities.ParseJobType(jobType)
	if !ok {
		return nil, usecaseErrors.ErrInvalidJobType
	}

	meeting, err := s.meetingRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if meeting.IsDeleted {
		return nil, entities.ErrMeetingNotFound
	}

	job, err := s.jobRepo.FindByMeetingAndType(ctx, id, jt)
	if errors.Is(err, entities.ErrJobNotFound) {
		job = entities.NewMeetingJob(id, jt, s.maxAttempts)
		if _, err := s.jobRepo.Enqueue(ctx, job); err != nil {
			return nil, err
		}
		s.logger.Info("📥 Job enqueued by operator",
			zap.String("meeting_id", id.String()),
			zap.String("job_type", string(jt)),
		)
		return job, nil
	}
	if err != nil {
		return nil, err
	}

	switch job.Status {
	case entities.JobStatusPending, entities.JobStatusRunning:
		return nil, usecaseErrors.ErrJobNotRetryable
	}

	job.Reset()
	if err := s.jobRepo.Save(ctx, job); err != nil {
		return nil, err
	}
	s.logger.Info("Job requeued by operator",
		zap.String("meeting_id", id.String()),
		zap.String("job_type", string(jt)),
		zap.String("job_id", job.ID.String()),
	)
	return job, nil
}
