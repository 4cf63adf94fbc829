package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
)

// MeetingLookup selects open meetings (not deleted, no report id, no summary).
// OccurrenceID nil matches only rows whose occurrence_id IS NULL.
type MeetingLookup struct {
	Platform          entities.Platform
	EventID           string
	PlatformMeetingID *string
	OccurrenceID      *string

	// Optional schedule equality filters
	ScheduledStart    *time.Time
	ScheduledDuration *int
}

// MeetingRepository defines the interface for meeting data access
type MeetingRepository interface {
	// FindByID retrieves a meeting by ID
	FindByID(ctx context.Context, id uuid.UUID) (*entities.Meeting, error)

	// FindByIDForUpdate retrieves a meeting and locks the row until the surrounding transaction ends
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Meeting, error)

	// FindByReportID retrieves the non-deleted meeting linked to a provider report
	FindByReportID(ctx context.Context, platform entities.Platform, reportID string) (*entities.Meeting, error)

	// FindOpen returns the oldest open meeting matching the lookup
	FindOpen(ctx context.Context, lookup MeetingLookup) (*entities.Meeting, error)

	// Insert creates a meeting, returning entities.ErrDuplicate when a unique index rejects it
	Insert(ctx context.Context, meeting *entities.Meeting) error

	// Update writes the named columns of the meeting
	Update(ctx context.Context, meeting *entities.Meeting, columns []string) error

	// SoftDelete hides one meeting
	SoftDelete(ctx context.Context, id uuid.UUID) error

	// SoftDeleteOpen hides the open rows of an event. A nil occurrence id hides every open row of the event.
	SoftDeleteOpen(ctx context.Context, platform entities.Platform, eventID string, occurrenceID *string) (int64, error)

	// ListOpenInstances returns open series instances scheduled inside the window
	ListOpenInstances(ctx context.Context, platform entities.Platform, eventID string, window entities.Window) ([]*entities.Meeting, error)

	// UpdateStrategyScore stores the strategy scoring result
	UpdateStrategyScore(ctx context.Context, id uuid.UUID, score entities.StrategyScore) error

	// UpdateAgendaScore stores the agenda scoring result
	UpdateAgendaScore(ctx context.Context, id uuid.UUID, score entities.AgendaScore) error
}
