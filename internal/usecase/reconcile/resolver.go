package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
	"github.com/johnquangdev/meeting-sync/internal/domain/repositories"
)

// Resolver maps a key bag onto an existing meeting row
type Resolver struct {
	meetings repositories.MeetingRepository
}

// NewResolver creates a new identity resolver
func NewResolver(meetings repositories.MeetingRepository) *Resolver {
	return &Resolver{meetings: meetings}
}

// Resolve returns the meeting the keys identify, or nil when a new row should be created.
//
// A report id is an exact match and wins. Otherwise only open rows are considered:
// not deleted, without report id and without summary. NULL and non-NULL occurrence
// ids are separate lookup spaces and never match each other.
func (r *Resolver) Resolve(ctx context.Context, platform entities.Platform, keys entities.KeyBag, mode MatchMode) (*entities.Meeting, error) {
	if keys.IsEmpty() {
		return nil, nil
	}

	if keys.ReportID != nil {
		m, err := r.meetings.FindByReportID(ctx, platform, *keys.ReportID)
		switch {
		case err == nil:
			return m, nil
		case !errors.Is(err, entities.ErrMeetingNotFound):
			return nil, fmt.Errorf("resolve by report id: %w", err)
		}
	}

	if keys.EventID == "" && keys.PlatformMeetingID == nil {
		return nil, nil
	}

	lookup := repositories.MeetingLookup{
		Platform:          platform,
		EventID:           keys.EventID,
		PlatformMeetingID: keys.PlatformMeetingID,
		OccurrenceID:      keys.OccurrenceID,
	}
	if mode == MatchSchedule {
		lookup.ScheduledStart = keys.ScheduledStart
		lookup.ScheduledDuration = keys.ScheduledDuration
	}

	m, err := r.meetings.FindOpen(ctx, lookup)
	if err != nil {
		if errors.Is(err, entities.ErrMeetingNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve open meeting: %w", err)
	}
	return m, nil
}
