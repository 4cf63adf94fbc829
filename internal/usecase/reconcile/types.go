package reconcile

import (
	"time"

	"github.com/google/uuid"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
)

// MatchMode selects how strictly the fallback lookup compares schedules
type MatchMode int

const (
	// MatchIdentity matches on event/occurrence identity only. Used for calendar
	// notifications so a rescheduled event updates its existing row.
	MatchIdentity MatchMode = iota
	// MatchSchedule additionally requires equal scheduled start and duration.
	// Used for reports, recordings and transcripts.
	MatchSchedule
)

// ModeFor returns the match mode used for an event kind
func ModeFor(kind entities.EventKind) MatchMode {
	if kind == entities.EventKindReport {
		return MatchSchedule
	}
	return MatchIdentity
}

// Outcome summarizes what Process did
type Outcome struct {
	MeetingIDs     []uuid.UUID
	Created        int
	Merged         int
	Deleted        int64
	ContentArrived bool
}

func (o *Outcome) add(r singleResult) {
	if r.Meeting == nil {
		return
	}
	o.MeetingIDs = append(o.MeetingIDs, r.Meeting.ID)
	if r.Created {
		o.Created++
	} else {
		o.Merged++
	}
	if r.ContentArrived {
		o.ContentArrived = true
	}
}

// Windows holds the recurring series horizons
type Windows struct {
	Leading  time.Duration
	Trailing time.Duration
}

// DefaultWindows looks two weeks ahead for calendar changes and two weeks back for reports
var DefaultWindows = Windows{
	Leading:  14 * 24 * time.Hour,
	Trailing: 14 * 24 * time.Hour,
}

// LeadingFrom is the window used when a series is created or updated:
// from the start of today (UTC) until now + Leading.
func (w Windows) LeadingFrom(now time.Time) entities.Window {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return entities.Window{Start: start, End: now.Add(w.Leading)}
}

// TrailingFrom is the window used when polling for reports
func (w Windows) TrailingFrom(now time.Time) entities.Window {
	now = now.UTC()
	return entities.Window{Start: now.Add(-w.Trailing), End: now}
}

// single is one meeting-level reconciliation request
type single struct {
	Platform        entities.Platform
	Kind            entities.EventKind
	Keys            entities.KeyBag
	Patch           entities.MeetingPatch
	Organizer       *entities.AttendeeRef
	OrganizerUserID *uuid.UUID
	Attendees       []entities.AttendeeRef
}

type singleResult struct {
	Meeting        *entities.Meeting
	Created        bool
	ContentArrived bool
}
