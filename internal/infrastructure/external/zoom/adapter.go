package zoom

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
)

// Webhook event names
const (
	EventURLValidation       = "endpoint.url_validation"
	EventMeetingCreated      = "meeting.created"
	EventMeetingUpdated      = "meeting.updated"
	EventMeetingDeleted      = "meeting.deleted"
	EventRecordingCompleted  = "recording.completed"
	EventTranscriptCompleted = "recording.transcript_completed"
)

// occurrenceMatchWindow bounds how far a session may start from its scheduled occurrence
const occurrenceMatchWindow = 2 * time.Hour

// WebhookEvent is the envelope of every Zoom webhook
type WebhookEvent struct {
	Event   string `json:"event"`
	EventTS int64  `json:"event_ts"`
	Payload struct {
		AccountID  string          `json:"account_id"`
		PlainToken string          `json:"plainToken"`
		Operator   string          `json:"operator"`
		Object     json.RawMessage `json:"object"`
	} `json:"payload"`
}

// Meeting decodes the payload object of a meeting.* event
func (e *WebhookEvent) Meeting() (*Meeting, error) {
	var m Meeting
	if err := json.Unmarshal(e.Payload.Object, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Recording decodes the payload object of a recording.* event
func (e *WebhookEvent) Recording() (*Recording, error) {
	var r Recording
	if err := json.Unmarshal(e.Payload.Object, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// HostOf returns the host id carried by a meeting or recording object
func (e *WebhookEvent) HostOf() string {
	var o struct {
		HostID string `json:"host_id"`
	}
	_ = json.Unmarshal(e.Payload.Object, &o)
	return o.HostID
}

// MeetingToInbound maps a scheduled meeting. The host is always a connected
// user, so the owner becomes the organizer. Recurring meetings carry their
// occurrences as a series clipped to w.
func MeetingToInbound(m *Meeting, kind entities.EventKind, owner *entities.PlatformConnection, w entities.Window) entities.InboundEvent {
	out := entities.InboundEvent{
		Platform: entities.PlatformZoom,
		Kind:     kind,
		Keys: entities.KeyBag{
			EventID:           m.ID.String(),
			ScheduledStart:    parseTime(m.StartTime),
			ScheduledDuration: positive(m.Duration),
		},
		Patch: entities.MeetingPatch{
			Title:             strings.TrimSpace(m.Topic),
			Description:       strings.TrimSpace(m.Agenda),
			JoinURL:           m.JoinURL,
			ScheduledStart:    parseTime(m.StartTime),
			ScheduledDuration: positive(m.Duration),
			Status:            entities.MeetingStatusScheduled,
		},
	}
	withOwner(&out, owner)

	if len(m.Occurrences) > 0 {
		series := &entities.Series{Window: w}
		for _, o := range m.Occurrences {
			start := parseTime(o.StartTime)
			if start == nil || !w.Contains(*start) {
				continue
			}
			series.Occurrences = append(series.Occurrences, entities.Occurrence{
				OccurrenceID: o.OccurrenceID,
				Start:        *start,
				Duration:     o.Duration,
				Cancelled:    strings.EqualFold(o.Status, "deleted"),
			})
		}
		out.Series = series
	}
	return out
}

// DeletedToInbound maps meeting.deleted. Deleting single occurrences yields
// one signal per occurrence; deleting the meeting yields one for every row.
func DeletedToInbound(m *Meeting) []entities.InboundEvent {
	if len(m.Occurrences) == 0 {
		return []entities.InboundEvent{{
			Platform: entities.PlatformZoom,
			Kind:     entities.EventKindDeleted,
			Keys:     entities.KeyBag{EventID: m.ID.String()},
		}}
	}
	out := make([]entities.InboundEvent, 0, len(m.Occurrences))
	for _, o := range m.Occurrences {
		out = append(out, entities.InboundEvent{
			Platform: entities.PlatformZoom,
			Kind:     entities.EventKindDeleted,
			Keys: entities.KeyBag{
				EventID:      m.ID.String(),
				OccurrenceID: entities.StringPtr(o.OccurrenceID),
			},
		})
	}
	return out
}

// ReportInput bundles what a finished Zoom session produced
type ReportInput struct {
	Recording *Recording
	// Schedule is the meeting as scheduled; nil for instant meetings
	Schedule     *Meeting
	Transcript   string
	Participants []Participant
	Owner        *entities.PlatformConnection
}

// ReportToInbound maps a finished session. The session UUID is the report id.
// For recurring meetings the occurrence scheduled closest to the session start
// is matched so the report lands on that occurrence's row.
func ReportToInbound(in ReportInput) entities.InboundEvent {
	rec := in.Recording
	out := entities.InboundEvent{
		Platform: entities.PlatformZoom,
		Kind:     entities.EventKindReport,
		Keys: entities.KeyBag{
			EventID:           rec.ID.String(),
			ReportID:          entities.StringPtr(rec.UUID),
			PlatformMeetingID: entities.StringPtr(rec.UUID),
		},
		Patch: entities.MeetingPatch{
			Title:             strings.TrimSpace(rec.Topic),
			Transcript:        in.Transcript,
			RecordLink:        rec.ShareURL,
			ReportID:          entities.StringPtr(rec.UUID),
			PlatformMeetingID: entities.StringPtr(rec.UUID),
			ActualStart:       parseTime(rec.StartTime),
			ActualDuration:    positive(rec.Duration),
		},
	}

	if s := in.Schedule; s != nil {
		out.Patch.JoinURL = s.JoinURL
		out.Patch.Description = strings.TrimSpace(s.Agenda)
		start, duration := parseTime(s.StartTime), positive(s.Duration)
		if occ, ok := nearestOccurrence(s.Occurrences, out.Patch.ActualStart); ok {
			out.Keys.OccurrenceID = entities.StringPtr(occ.OccurrenceID)
			start, duration = parseTime(occ.StartTime), positive(occ.Duration)
		}
		out.Keys.ScheduledStart, out.Keys.ScheduledDuration = start, duration
		out.Patch.ScheduledStart, out.Patch.ScheduledDuration = start, duration
	}

	withOwner(&out, in.Owner)
	for _, p := range in.Participants {
		if p.UserEmail == "" {
			continue
		}
		out.Attendees = append(out.Attendees, entities.AttendeeRef{
			Email:       p.UserEmail,
			DisplayName: p.Name,
		}.Normalized())
	}
	return out
}

func withOwner(ev *entities.InboundEvent, owner *entities.PlatformConnection) {
	if owner == nil {
		return
	}
	id := owner.UserID
	ev.OrganizerUserID = &id
	ev.Patch.OrganizerID = &id
	ev.Patch.ForceOrganizer = true
	if owner.Email != "" {
		ev.Organizer = &entities.AttendeeRef{Email: entities.NormalizeEmail(owner.Email)}
	}
}

func nearestOccurrence(list []Occurrence, actual *time.Time) (Occurrence, bool) {
	if actual == nil {
		return Occurrence{}, false
	}
	var (
		best     Occurrence
		bestDiff time.Duration = -1
	)
	for _, o := range list {
		start := parseTime(o.StartTime)
		if start == nil {
			continue
		}
		diff := actual.Sub(*start)
		if diff < 0 {
			diff = -diff
		}
		if diff > occurrenceMatchWindow {
			continue
		}
		if bestDiff < 0 || diff < bestDiff {
			best, bestDiff = o, diff
		}
	}
	return best, bestDiff >= 0
}

func positive(v int) *int {
	if v <= 0 {
		return nil
	}
	return entities.IntPtr(v)
}
