package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
	"github.com/johnquangdev/meeting-sync/internal/domain/repositories"
)

// JobRepository handles meeting job outbox operations
type JobRepository struct {
	db *gorm.DB
}

var _ repositories.JobRepository = (*JobRepository)(nil)

// NewJobRepository creates a new job repository
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Enqueue inserts the job unless one already exists for the meeting and type
func (r *JobRepository) Enqueue(ctx context.Context, job *entities.MeetingJob) (bool, error) {
	res := conn(ctx, r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "meeting_id"}, {Name: "job_type"}},
			DoNothing: true,
		}).
		Create(job)
	if res.Error != nil {
		return false, fmt.Errorf("failed to enqueue job: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ClaimBatch locks runnable jobs with SKIP LOCKED so concurrent workers never share a job
func (r *JobRepository) ClaimBatch(ctx context.Context, limit int) ([]*entities.MeetingJob, error) {
	var jobs []*entities.MeetingJob
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("(status = ? OR (status = ? AND attempts < max_attempts)) AND run_after <= ?",
				entities.JobStatusPending, entities.JobStatusFailed, time.Now()).
			Order("run_after ASC, created_at ASC").
			Limit(limit).
			Find(&jobs).Error; err != nil {
			return err
		}

		for _, job := range jobs {
			job.MarkAsRunning()
			if err := tx.Model(&entities.MeetingJob{}).
				Where("id = ?", job.ID).
				Updates(map[string]interface{}{
					"status":     job.Status,
					"attempts":   job.Attempts,
					"locked_at":  job.LockedAt,
					"updated_at": job.UpdatedAt,
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to claim jobs: %w", err)
	}
	return jobs, nil
}

// Save writes the job's status fields
func (r *JobRepository) Save(ctx context.Context, job *entities.MeetingJob) error {
	if err := conn(ctx, r.db).
		Model(&entities.MeetingJob{}).
		Where("id = ?", job.ID).
		Updates(map[string]interface{}{
			"status":       job.Status,
			"attempts":     job.Attempts,
			"last_error":   job.LastError,
			"run_after":    job.RunAfter,
			"locked_at":    job.LockedAt,
			"completed_at": job.CompletedAt,
			"updated_at":   time.Now(),
		}).Error; err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

// FindByMeetingAndType retrieves the job for a meeting and type
func (r *JobRepository) FindByMeetingAndType(ctx context.Context, meetingID uuid.UUID, jobType entities.JobType) (*entities.MeetingJob, error) {
	var job entities.MeetingJob
	if err := conn(ctx, r.db).
		Where("meeting_id = ? AND job_type = ?", meetingID, jobType).
		First(&job).Error; err != nil {
		if isNotFound(err) {
			return nil, entities.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to find job: %w", err)
	}
	return &job, nil
}

// ListByMeeting retrieves all jobs of a meeting
func (r *JobRepository) ListByMeeting(ctx context.Context, meetingID uuid.UUID) ([]*entities.MeetingJob, error) {
	var jobs []*entities.MeetingJob
	if err := conn(ctx, r.db).
		Where("meeting_id = ?", meetingID).
		Order("created_at ASC").
		Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// ReleaseStale fails jobs whose worker died mid-run. ClaimBatch picks them up
// again only while attempts remain, so a job that keeps killing its worker
// ends up failed for good.
func (r *JobRepository) ReleaseStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&entities.MeetingJob{}).
		Where("status = ? AND locked_at < ?", entities.JobStatusRunning, now.Add(-olderThan)).
		Updates(staleJobColumns(now))
	if res.Error != nil {
		return 0, fmt.Errorf("failed to release stale jobs: %w", res.Error)
	}
	return res.RowsAffected, nil
}

const errWorkerLost = "worker stopped while the job was running"

func staleJobColumns(now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"status":     entities.JobStatusFailed,
		"last_error": errWorkerLost,
		"locked_at":  nil,
		"run_after":  now,
		"updated_at": now,
	}
}
