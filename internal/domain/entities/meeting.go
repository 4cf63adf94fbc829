package entities

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Platform identifies the conferencing provider a meeting came from
type Platform string

const (
	PlatformTeams Platform = "teams"
	PlatformZoom  Platform = "zoom"
	PlatformGmeet Platform = "gmeet"
)

// Valid reports whether p is a supported platform
func (p Platform) Valid() bool {
	switch p {
	case PlatformTeams, PlatformZoom, PlatformGmeet:
		return true
	}
	return false
}

// ParsePlatform normalizes a platform name from a URL path or payload
func ParsePlatform(s string) (Platform, bool) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	return p, p.Valid()
}

// MeetingStatus represents the calendar status of a meeting
type MeetingStatus string

const (
	MeetingStatusScheduled MeetingStatus = "scheduled"
	MeetingStatusCancelled MeetingStatus = "cancelled"
)

// Meeting is one occurrence of a conversation on a conferencing platform.
// Rows are never hard-deleted; IsDeleted hides them from reconciliation.
type Meeting struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Platform Platform  `json:"platform" gorm:"type:varchar(20);not null;index"`

	// Identity keys
	PlatformMeetingID *string `json:"meeting_id,omitempty" gorm:"column:meeting_id;type:varchar(512);index"`
	EventID           string  `json:"event_id" gorm:"type:varchar(1024);not null;default:''"`
	OccurrenceID      *string `json:"occurrence_id,omitempty" gorm:"type:varchar(512)"`
	ReportID          *string `json:"report_id,omitempty" gorm:"type:varchar(512)"`

	// Content
	Title       string `json:"title" gorm:"type:text;not null;default:''"`
	Description string `json:"description" gorm:"type:text;not null;default:''"`
	Summary     string `json:"summary" gorm:"type:text;not null;default:''"`
	Transcript  string `json:"transcript" gorm:"type:text;not null;default:''"`
	RecordLink  string `json:"record_link" gorm:"type:text;not null;default:''"`
	JoinURL     string `json:"join_url" gorm:"type:text;not null;default:''"`

	OrganizerID *uuid.UUID `json:"org_id,omitempty" gorm:"column:org_id;type:uuid;index"`

	// Schedule (from the calendar) and actuals (from reports)
	ScheduledStart    *time.Time `json:"schedule_datetime,omitempty" gorm:"column:schedule_datetime;type:timestamptz"`
	ScheduledDuration *int       `json:"schedule_duration,omitempty" gorm:"column:schedule_duration"`
	ActualStart       *time.Time `json:"datetime,omitempty" gorm:"column:datetime;type:timestamptz"`
	ActualDuration    *int       `json:"duration,omitempty" gorm:"column:duration"`

	Status    MeetingStatus `json:"status" gorm:"type:varchar(20);not null;default:'scheduled'"`
	IsDeleted bool          `json:"is_deleted" gorm:"column:is_deleted;not null;default:false;index"`

	// provider/model that produced Summary
	SummaryModel string `json:"summary_model" gorm:"type:varchar(255);not null;default:''"`

	// Scoring
	StrategyScore       *int           `json:"strategy_score,omitempty"`
	StrategyExplanation string         `json:"strategy_explanation" gorm:"type:text;not null;default:''"`
	StrategyAnalysis    datatypes.JSON `json:"strategy_analysis,omitempty" gorm:"type:jsonb"`
	AgendaScore         *int           `json:"agenda_score,omitempty"`
	AgendaExplanation   string         `json:"agenda_explanation" gorm:"type:text;not null;default:''"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Meeting) TableName() string {
	return "meetings"
}

// HasContent reports whether transcript or summary are present
func (m *Meeting) HasContent() bool {
	return m.Transcript != "" || m.Summary != ""
}

// IsFinal reports whether the row is closed to fallback matching.
// A summarized or report-linked row only accepts data through its report id.
func (m *Meeting) IsFinal() bool {
	return m.Summary != "" || m.ReportID != nil
}

// Clone returns a copy that can be mutated without touching the original
func (m *Meeting) Clone() *Meeting {
	c := *m
	if m.StrategyAnalysis != nil {
		c.StrategyAnalysis = append(datatypes.JSON(nil), m.StrategyAnalysis...)
	}
	return &c
}
