package entities

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ParticipantRole represents a user's relationship to a meeting
type ParticipantRole string

const (
	ParticipantRoleOrganizer ParticipantRole = "organizer"
	ParticipantRoleAccepted  ParticipantRole = "accepted"
	ParticipantRoleRejected  ParticipantRole = "rejected"
	ParticipantRoleNewInvite ParticipantRole = "new_invite"
)

// RoleFromResponse maps a provider response status onto a participant role
func RoleFromResponse(status string) ParticipantRole {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "accepted", "tentativelyaccepted", "tentative":
		return ParticipantRoleAccepted
	case "declined":
		return ParticipantRoleRejected
	default:
		return ParticipantRoleNewInvite
	}
}

// MeetingParticipant links a user to a meeting.
// (meeting_id, user_id) is unique.
type MeetingParticipant struct {
	ID        uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	MeetingID uuid.UUID       `json:"meeting_id" gorm:"type:uuid;not null;index"`
	UserID    uuid.UUID       `json:"user_id" gorm:"type:uuid;not null;index"`
	User      *User           `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Role      ParticipantRole `json:"role" gorm:"type:varchar(20);not null;default:'new_invite'"`
	CreatedAt time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (MeetingParticipant) TableName() string {
	return "meeting_participants"
}

// NewMeetingParticipant creates a participant row
func NewMeetingParticipant(meetingID, userID uuid.UUID, role ParticipantRole) *MeetingParticipant {
	now := time.Now()
	return &MeetingParticipant{
		ID:        uuid.New(),
		MeetingID: meetingID,
		UserID:    userID,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsOrganizer checks if the participant organizes the meeting
func (p *MeetingParticipant) IsOrganizer() bool {
	return p.Role == ParticipantRoleOrganizer
}
