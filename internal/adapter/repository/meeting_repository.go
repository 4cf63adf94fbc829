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

// MeetingRepository implements the meeting repository interface using GORM
type MeetingRepository struct {
	db *gorm.DB
}

var _ repositories.MeetingRepository = (*MeetingRepository)(nil)

// NewMeetingRepository creates a new meeting repository
func NewMeetingRepository(db *gorm.DB) *MeetingRepository {
	return &MeetingRepository{db: db}
}

// FindByID finds a meeting by ID
func (r *MeetingRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.Meeting, error) {
	var meeting entities.Meeting
	if err := conn(ctx, r.db).Where("id = ?", id).First(&meeting).Error; err != nil {
		if isNotFound(err) {
			return nil, entities.ErrMeetingNotFound
		}
		return nil, fmt.Errorf("failed to find meeting by ID: %w", err)
	}
	return &meeting, nil
}

// FindByIDForUpdate finds a meeting and holds a row lock for the current transaction
func (r *MeetingRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Meeting, error) {
	var meeting entities.Meeting
	if err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&meeting).Error; err != nil {
		if isNotFound(err) {
			return nil, entities.ErrMeetingNotFound
		}
		return nil, fmt.Errorf("failed to lock meeting: %w", err)
	}
	return &meeting, nil
}

// FindByReportID finds the live meeting linked to a provider report
func (r *MeetingRepository) FindByReportID(ctx context.Context, platform entities.Platform, reportID string) (*entities.Meeting, error) {
	var meeting entities.Meeting
	if err := conn(ctx, r.db).
		Where("platform = ? AND report_id = ? AND is_deleted = false", platform, reportID).
		Order("created_at ASC, id ASC").
		First(&meeting).Error; err != nil {
		if isNotFound(err) {
			return nil, entities.ErrMeetingNotFound
		}
		return nil, fmt.Errorf("failed to find meeting by report ID: %w", err)
	}
	return &meeting, nil
}

// FindOpen finds the oldest open meeting that matches the lookup
func (r *MeetingRepository) FindOpen(ctx context.Context, lookup repositories.MeetingLookup) (*entities.Meeting, error) {
	q := conn(ctx, r.db).
		Where("platform = ? AND is_deleted = false AND report_id IS NULL AND summary = ''", lookup.Platform)

	switch {
	case lookup.EventID != "":
		q = q.Where("event_id = ?", lookup.EventID)
	case lookup.PlatformMeetingID != nil:
		q = q.Where("meeting_id = ?", *lookup.PlatformMeetingID)
	default:
		return nil, entities.ErrMeetingNotFound
	}

	if lookup.OccurrenceID == nil {
		q = q.Where("occurrence_id IS NULL")
	} else {
		q = q.Where("occurrence_id = ?", *lookup.OccurrenceID)
	}
	if lookup.ScheduledStart != nil {
		q = q.Where("schedule_datetime = ?", lookup.ScheduledStart.UTC())
	}
	if lookup.ScheduledDuration != nil {
		q = q.Where("schedule_duration = ?", *lookup.ScheduledDuration)
	}

	var meeting entities.Meeting
	if err := q.Order("created_at ASC, id ASC").First(&meeting).Error; err != nil {
		if isNotFound(err) {
			return nil, entities.ErrMeetingNotFound
		}
		return nil, fmt.Errorf("failed to find open meeting: %w", err)
	}
	return &meeting, nil
}

// Insert creates a meeting. A concurrent insert of the same identity makes this a no-op
// reported as entities.ErrDuplicate.
func (r *MeetingRepository) Insert(ctx context.Context, meeting *entities.Meeting) error {
	if meeting.ID == uuid.Nil {
		meeting.ID = uuid.New()
	}
	res := conn(ctx, r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(meeting)
	if res.Error != nil {
		return fmt.Errorf("failed to insert meeting: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return entities.ErrDuplicate
	}
	return nil
}

// Update writes the named columns
func (r *MeetingRepository) Update(ctx context.Context, meeting *entities.Meeting, columns []string) error {
	if len(columns) == 0 {
		return nil
	}
	meeting.UpdatedAt = time.Now()
	cols := append(append([]string(nil), columns...), "updated_at")
	if err := conn(ctx, r.db).Model(meeting).Select(cols).Updates(meeting).Error; err != nil {
		if isDuplicate(err) {
			return entities.ErrDuplicate
		}
		return fmt.Errorf("failed to update meeting: %w", err)
	}
	return nil
}

// SoftDelete hides one meeting
func (r *MeetingRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	if err := conn(ctx, r.db).
		Model(&entities.Meeting{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_deleted": true,
			"updated_at": time.Now(),
		}).Error; err != nil {
		return fmt.Errorf("failed to soft delete meeting: %w", err)
	}
	return nil
}

// SoftDeleteOpen hides the open rows of an event
func (r *MeetingRepository) SoftDeleteOpen(ctx context.Context, platform entities.Platform, eventID string, occurrenceID *string) (int64, error) {
	q := conn(ctx, r.db).
		Model(&entities.Meeting{}).
		Where("platform = ? AND event_id = ? AND is_deleted = false AND report_id IS NULL AND summary = ''", platform, eventID)
	if occurrenceID != nil {
		q = q.Where("occurrence_id = ?", *occurrenceID)
	}
	res := q.Updates(map[string]interface{}{
		"is_deleted": true,
		"status":     entities.MeetingStatusCancelled,
		"updated_at": time.Now(),
	})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to soft delete event meetings: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ListOpenInstances lists open series instances scheduled inside the window
func (r *MeetingRepository) ListOpenInstances(ctx context.Context, platform entities.Platform, eventID string, window entities.Window) ([]*entities.Meeting, error) {
	var meetings []*entities.Meeting
	if err := conn(ctx, r.db).
		Where("platform = ? AND event_id = ? AND occurrence_id IS NOT NULL", platform, eventID).
		Where("is_deleted = false AND report_id IS NULL AND summary = ''").
		Where("schedule_datetime >= ? AND schedule_datetime < ?", window.Start.UTC(), window.End.UTC()).
		Order("schedule_datetime ASC").
		Find(&meetings).Error; err != nil {
		return nil, fmt.Errorf("failed to list series instances: %w", err)
	}
	return meetings, nil
}

// UpdateStrategyScore stores the strategy scoring result
func (r *MeetingRepository) UpdateStrategyScore(ctx context.Context, id uuid.UUID, score entities.StrategyScore) error {
	if err := conn(ctx, r.db).
		Model(&entities.Meeting{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"strategy_score":       score.Score,
			"strategy_explanation": score.Explanation,
			"strategy_analysis":    score.Analysis,
			"updated_at":           time.Now(),
		}).Error; err != nil {
		return fmt.Errorf("failed to update strategy score: %w", err)
	}
	return nil
}

// UpdateAgendaScore stores the agenda scoring result
func (r *MeetingRepository) UpdateAgendaScore(ctx context.Context, id uuid.UUID, score entities.AgendaScore) error {
	if err := conn(ctx, r.db).
		Model(&entities.Meeting{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"agenda_score":       score.Score,
			"agenda_explanation": score.Explanation,
			"updated_at":         time.Now(),
		}).Error; err != nil {
		return fmt.Errorf("failed to update agenda score: %w", err)
	}
	return nil
}
