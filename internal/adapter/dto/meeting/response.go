package meeting

import (
	"encoding/json"
	"time"
)

// MeetingResponse represents a reconciled meeting
type MeetingResponse struct {
	ID                string     `json:"id"`
	Platform          string     `json:"platform"`
	EventID           string     `json:"event_id"`
	MeetingID         string     `json:"meeting_id,omitempty"`
	OccurrenceID      string     `json:"occurrence_id,omitempty"`
	ReportID          string     `json:"report_id,omitempty"`
	Title             string     `json:"title"`
	Description       string     `json:"description,omitempty"`
	Summary           string     `json:"summary,omitempty"`
	SummaryModel      string     `json:"summary_model,omitempty"`
	HasTranscript     bool       `json:"has_transcript"`
	RecordLink        string     `json:"record_link,omitempty"`
	JoinURL           string     `json:"join_url,omitempty"`
	OrganizerID       string     `json:"org_id,omitempty"`
	ScheduledStart    *time.Time `json:"schedule_datetime,omitempty"`
	ScheduledDuration *int       `json:"schedule_duration,omitempty"`
	ActualStart       *time.Time `json:"datetime,omitempty"`
	ActualDuration    *int       `json:"duration,omitempty"`
	Status            string     `json:"status"`
	IsDeleted         bool       `json:"is_deleted"`

	StrategyScore       *int            `json:"strategy_score,omitempty"`
	StrategyExplanation string          `json:"strategy_explanation,omitempty"`
	StrategyAnalysis    json.RawMessage `json:"strategy_analysis,omitempty"`
	AgendaScore         *int            `json:"agenda_score,omitempty"`
	AgendaExplanation   string          `json:"agenda_explanation,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserResponse represents the user behind a participant
type UserResponse struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Provider   string `json:"provider"`
	InviteStub bool   `json:"invite_stub"`
}

// ParticipantResponse represents a meeting participant
type ParticipantResponse struct {
	UserID    string        `json:"user_id"`
	Role      string        `json:"role"`
	User      *UserResponse `json:"user,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// JobResponse represents an outbox job
type JobResponse struct {
	ID          string     `json:"id"`
	JobType     string     `json:"job_type"`
	Status      string     `json:"status"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	LastError   string     `json:"last_error,omitempty"`
	RunAfter    time.Time  `json:"run_after"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TaskResponse represents an extracted task
type TaskResponse struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	OwnerEmail  string     `json:"owner_email,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Priority    string     `json:"priority"`
}
