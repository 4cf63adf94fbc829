package entities

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the status of a downstream meeting job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"   // Waiting for a worker
	JobStatusRunning   JobStatus = "running"   // Claimed by a worker
	JobStatusCompleted JobStatus = "completed" // Done
	JobStatusFailed    JobStatus = "failed"    // Gave up, or will retry after RunAfter
)

// JobType represents the kind of work triggered by meeting content
type JobType string

const (
	JobTypeTaskExtraction  JobType = "task_extraction"
	JobTypeGraphExtraction JobType = "graph_extraction"
	JobTypeStrategyScoring JobType = "strategy_scoring"
	JobTypeAgendaScoring   JobType = "agenda_scoring"
	JobTypeSummarize       JobType = "summarize"
)

// ContentJobTypes are enqueued when a transcript or summary first arrives
var ContentJobTypes = []JobType{
	JobTypeTaskExtraction,
	JobTypeGraphExtraction,
	JobTypeStrategyScoring,
}

// ParseJobType validates a job type from user input
func ParseJobType(s string) (JobType, bool) {
	switch t := JobType(s); t {
	case JobTypeTaskExtraction, JobTypeGraphExtraction, JobTypeStrategyScoring,
		JobTypeAgendaScoring, JobTypeSummarize:
		return t, true
	}
	return "", false
}

// MeetingJob is an outbox row. (meeting_id, job_type) is the idempotency key.
type MeetingJob struct {
	ID          uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	MeetingID   uuid.UUID  `json:"meeting_id" gorm:"type:uuid;not null;index"`
	JobType     JobType    `json:"job_type" gorm:"type:varchar(50);not null"`
	Status      JobStatus  `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	Attempts    int        `json:"attempts" gorm:"not null;default:0"`
	MaxAttempts int        `json:"max_attempts" gorm:"not null;default:3"`
	LastError   *string    `json:"last_error,omitempty" gorm:"type:text"`
	RunAfter    time.Time  `json:"run_after" gorm:"type:timestamptz;not null"`
	LockedAt    *time.Time `json:"locked_at,omitempty" gorm:"type:timestamptz"`
	CompletedAt *time.Time `json:"completed_at,omitempty" gorm:"type:timestamptz"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (MeetingJob) TableName() string {
	return "meeting_jobs"
}

// NewMeetingJob creates a pending job
func NewMeetingJob(meetingID uuid.UUID, jobType JobType, maxAttempts int) *MeetingJob {
	now := time.Now()
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	return &MeetingJob{
		ID:          uuid.New(),
		MeetingID:   meetingID,
		JobType:     jobType,
		Status:      JobStatusPending,
		MaxAttempts: maxAttempts,
		RunAfter:    now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsRetryable checks if the job can run again after a failure
func (j *MeetingJob) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.Attempts < j.MaxAttempts
}

// MarkAsRunning marks the job as claimed
func (j *MeetingJob) MarkAsRunning() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.Attempts++
	j.LockedAt = &now
	j.UpdatedAt = now
}

// MarkAsCompleted marks the job as done
func (j *MeetingJob) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.LastError = nil
	j.LockedAt = nil
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// MarkAsFailed records the failure. A permanent failure exhausts the remaining attempts.
func (j *MeetingJob) MarkAsFailed(errMsg string, permanent bool, retryAfter time.Duration) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.LastError = &errMsg
	j.LockedAt = nil
	j.UpdatedAt = now
	if permanent {
		j.Attempts = j.MaxAttempts
	}
	j.RunAfter = now.Add(retryAfter)
}

// Reset puts the job back in the queue with a fresh attempt budget
func (j *MeetingJob) Reset() {
	now := time.Now()
	j.Status = JobStatusPending
	j.Attempts = 0
	j.LastError = nil
	j.LockedAt = nil
	j.CompletedAt = nil
	j.RunAfter = now
	j.UpdatedAt = now
}
