package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// TaskPriority represents the urgency of an extracted task
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// MeetingTask is an action item extracted from a transcript
type MeetingTask struct {
	ID          uuid.UUID    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	MeetingID   uuid.UUID    `json:"meeting_id" gorm:"type:uuid;not null;index"`
	Title       string       `json:"title" gorm:"type:text;not null"`
	Description string       `json:"description" gorm:"type:text;not null;default:''"`
	OwnerEmail  string       `json:"owner_email" gorm:"type:varchar(320);not null;default:''"`
	DueDate     *time.Time   `json:"due_date,omitempty" gorm:"type:date"`
	Priority    TaskPriority `json:"priority" gorm:"type:varchar(10);not null;default:'medium'"`
	CreatedAt   time.Time    `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM
func (MeetingTask) TableName() string {
	return "meeting_tasks"
}

// MeetingGraph stores the relationship graph extracted from a meeting
type MeetingGraph struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	MeetingID uuid.UUID      `json:"meeting_id" gorm:"type:uuid;not null;uniqueIndex"`
	Graph     datatypes.JSON `json:"graph" gorm:"type:jsonb;not null"`
	Model     string         `json:"model" gorm:"type:varchar(255);not null;default:''"`
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (MeetingGraph) TableName() string {
	return "meeting_graphs"
}

// CompanyStrategy is a strategy statement owned by a company, matched by email domain
type CompanyStrategy struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Domain    string    `json:"domain" gorm:"type:varchar(255);not null;index"`
	Strategy  string    `json:"strategy" gorm:"type:text;not null"`
	IsDeleted bool      `json:"is_deleted" gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM
func (CompanyStrategy) TableName() string {
	return "company_strategies"
}

// StrategyScore is the outcome of scoring a meeting against company strategy
type StrategyScore struct {
	Score       int
	Explanation string
	Analysis    datatypes.JSON
}

// AgendaScore is the outcome of scoring a meeting agenda
type AgendaScore struct {
	Score       int
	Explanation string
}
