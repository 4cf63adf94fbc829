package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
)

// ParticipantRepository defines the interface for participant data access
type ParticipantRepository interface {
	// Ensure inserts the participant unless (meeting_id, user_id) already exists
	Ensure(ctx context.Context, participant *entities.MeetingParticipant) (bool, error)

	// SetOrganizer makes the user the organizer, inserting the row when missing
	SetOrganizer(ctx context.Context, meetingID, userID uuid.UUID) error

	// UpdateRole changes the role of an existing non-organizer participant.
	// It reports false when no row was changed.
	UpdateRole(ctx context.Context, meetingID, userID uuid.UUID, role entities.ParticipantRole) (bool, error)

	// FindByMeetingAndUser retrieves one participant
	FindByMeetingAndUser(ctx context.Context, meetingID, userID uuid.UUID) (*entities.MeetingParticipant, error)

	// ListByMeeting retrieves all participants of a meeting with their users
	ListByMeeting(ctx context.Context, meetingID uuid.UUID) ([]*entities.MeetingParticipant, error)
}
