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

// participantRepository implements the ParticipantRepository interface
type participantRepository struct {
	db *gorm.DB
}

// NewParticipantRepository creates a new participant repository
func NewParticipantRepository(db *gorm.DB) repositories.ParticipantRepository {
	return &participantRepository{db: db}
}

var participantKey = []clause.Column{{Name: "meeting_id"}, {Name: "user_id"}}

// Ensure inserts the participant unless the pair already exists
func (r *participantRepository) Ensure(ctx context.Context, participant *entities.MeetingParticipant) (bool, error) {
	if participant.ID == uuid.Nil {
		participant.ID = uuid.New()
	}
	res := conn(ctx, r.db).
		Clauses(clause.OnConflict{Columns: participantKey, DoNothing: true}).
		Create(participant)
	if res.Error != nil {
		return false, fmt.Errorf("failed to ensure participant: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// SetOrganizer upserts the organizer row
func (r *participantRepository) SetOrganizer(ctx context.Context, meetingID, userID uuid.UUID) error {
	p := entities.NewMeetingParticipant(meetingID, userID, entities.ParticipantRoleOrganizer)
	if err := conn(ctx, r.db).
		Clauses(clause.OnConflict{
			Columns: participantKey,
			DoUpdates: clause.Assignments(map[string]interface{}{
				"role":       entities.ParticipantRoleOrganizer,
				"updated_at": time.Now(),
			}),
		}).
		Create(p).Error; err != nil {
		return fmt.Errorf("failed to set organizer: %w", err)
	}
	return nil
}

// UpdateRole changes the role of an existing, non-organizer participant
func (r *participantRepository) UpdateRole(ctx context.Context, meetingID, userID uuid.UUID, role entities.ParticipantRole) (bool, error) {
	res := conn(ctx, r.db).
		Model(&entities.MeetingParticipant{}).
		Where("meeting_id = ? AND user_id = ? AND role <> ? AND role <> ?",
			meetingID, userID, entities.ParticipantRoleOrganizer, role).
		Updates(map[string]interface{}{
			"role":       role,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to update participant role: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// FindByMeetingAndUser retrieves a participant by meeting and user ID
func (r *participantRepository) FindByMeetingAndUser(ctx context.Context, meetingID, userID uuid.UUID) (*entities.MeetingParticipant, error) {
	var participant entities.MeetingParticipant
	err := conn(ctx, r.db).
		Where("meeting_id = ? AND user_id = ?", meetingID, userID).
		First(&participant).Error
	if err != nil {
		if isNotFound(err) {
			return nil, entities.ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to find participant: %w", err)
	}
	return &participant, nil
}

// ListByMeeting retrieves all participants of a meeting
func (r *participantRepository) ListByMeeting(ctx context.Context, meetingID uuid.UUID) ([]*entities.MeetingParticipant, error) {
	var participants []*entities.MeetingParticipant
	err := conn(ctx, r.db).
		Preload("User").
		Where("meeting_id = ?", meetingID).
		Order("created_at ASC").
		Find(&participants).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	return participants, nil
}
