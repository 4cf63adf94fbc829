package entities

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// KeyBag holds every identifier a provider signal may carry.
// Any subset may be present.
type KeyBag struct {
	ReportID          *string
	PlatformMeetingID *string
	EventID           string
	OccurrenceID      *string
	ScheduledStart    *time.Time
	ScheduledDuration *int
}

// IsEmpty reports whether the bag carries no identity at all
func (k KeyBag) IsEmpty() bool {
	return k.ReportID == nil && k.PlatformMeetingID == nil && k.EventID == ""
}

// AttendeeRef is the provider-independent view of one invitee
type AttendeeRef struct {
	Email          string
	DisplayName    string
	ResponseStatus string
}

// Normalized returns the ref with a canonical email
func (a AttendeeRef) Normalized() AttendeeRef {
	a.Email = NormalizeEmail(a.Email)
	a.DisplayName = strings.TrimSpace(a.DisplayName)
	return a
}

// MeetingPatch carries the incoming value of each mergeable field.
// Empty strings and nil pointers mean "absent".
type MeetingPatch struct {
	Title       string
	Description string
	Summary     string
	Transcript  string
	RecordLink  string
	JoinURL     string

	// SummaryModel is "provider/model" of whoever produced Summary
	SummaryModel string

	PlatformMeetingID *string
	ReportID          *string
	OrganizerID       *uuid.UUID
	// ForceOrganizer overwrites an existing organizer with OrganizerID
	ForceOrganizer bool

	ScheduledStart    *time.Time
	ScheduledDuration *int
	ActualStart       *time.Time
	ActualDuration    *int

	Status MeetingStatus
}

// EventKind classifies an inbound signal
type EventKind string

const (
	EventKindCreated EventKind = "created"
	EventKindUpdated EventKind = "updated"
	EventKindDeleted EventKind = "deleted"
	// EventKindReport covers attendance reports, recordings and transcripts
	EventKindReport EventKind = "report"
)

// Window is a half-open time range [Start, End)
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Occurrence is one instance of a recurring series
type Occurrence struct {
	OccurrenceID string
	Start        time.Time
	// Duration in minutes
	Duration  int
	Cancelled bool
	// Patch overrides series-level fields for this instance
	Patch MeetingPatch
	// Attendees overrides the series list when non-nil
	Attendees []AttendeeRef
}

// Series is the enumeration of a recurring event inside Window
type Series struct {
	Window      Window
	Occurrences []Occurrence
}

// InboundEvent is a normalized provider signal, ready for reconciliation
type InboundEvent struct {
	Platform Platform
	Kind     EventKind
	Keys     KeyBag
	Patch    MeetingPatch

	Organizer *AttendeeRef
	// OrganizerUserID is set when the organizer is a connected user
	OrganizerUserID *uuid.UUID
	Attendees       []AttendeeRef

	// Series is set for recurring events; Keys.EventID is the series id
	Series *Series
}

// StringPtr returns nil for empty strings
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// IntPtr returns a pointer to v
func IntPtr(v int) *int {
	return &v
}

// TimePtr returns nil for the zero time
func TimePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
