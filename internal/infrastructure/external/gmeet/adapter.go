package gmeet

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
)

// CloudEvent types published by the Workspace Events API
const (
	ConferenceEnded     = "google.workspace.meet.conference.v2.ended"
	TranscriptGenerated = "google.workspace.meet.transcript.v2.fileGenerated"
)

// PushEnvelope is a Pub/Sub push request
type PushEnvelope struct {
	Message struct {
		Data        []byte            `json:"data"`
		Attributes  map[string]string `json:"attributes"`
		MessageID   string            `json:"messageId"`
		OrderingKey string            `json:"orderingKey"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// Type returns the CloudEvent type of the message
func (p *PushEnvelope) Type() string {
	return p.Message.Attributes["ce-type"]
}

// SubscriptionID is the Workspace Events subscription that produced the message
func (p *PushEnvelope) SubscriptionID() string {
	if src := p.Message.Attributes["ce-source"]; strings.HasPrefix(src, "//workspaceevents.googleapis.com/subscriptions/") {
		return src[strings.LastIndex(src, "/")+1:]
	}
	key := p.Message.OrderingKey
	return key[strings.LastIndex(key, "/")+1:]
}

const channelPrefix = "meeting-sync-"

// ChannelID names a Calendar push channel of a user. Google rejects a
// reused id while the old channel lives, so every watch gets its own seq.
func ChannelID(userID uuid.UUID, seq int64) string {
	return channelPrefix + userID.String() + "-" + strconv.FormatInt(seq, 36)
}

// UserFromChannel recovers the user a Calendar push channel belongs to
func UserFromChannel(channelID string) (uuid.UUID, bool) {
	rest, ok := strings.CutPrefix(channelID, channelPrefix)
	if !ok || len(rest) < 36 {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(rest[:36])
	return id, err == nil
}

// MeetPayload is the decoded data of a Meet CloudEvent
type MeetPayload struct {
	ConferenceRecord struct {
		Name string `json:"name"`
	} `json:"conferenceRecord"`
	Transcript struct {
		Name string `json:"name"`
	} `json:"transcript"`
}

// RecordName returns the conference record the event is about
func (m MeetPayload) RecordName() string {
	if m.ConferenceRecord.Name != "" {
		return m.ConferenceRecord.Name
	}
	// conferenceRecords/{id}/transcripts/{id}
	if i := strings.Index(m.Transcript.Name, "/transcripts/"); i > 0 {
		return m.Transcript.Name[:i]
	}
	return ""
}

// Payload decodes the message data
func (p *PushEnvelope) Payload() (MeetPayload, error) {
	var out MeetPayload
	err := json.Unmarshal(p.Message.Data, &out)
	return out, err
}

// Attendees converts Calendar attendees, skipping rooms
func Attendees(list []Person) []entities.AttendeeRef {
	out := make([]entities.AttendeeRef, 0, len(list))
	for _, p := range list {
		if p.Resource || p.Email == "" {
			continue
		}
		out = append(out, entities.AttendeeRef{
			Email:          p.Email,
			DisplayName:    p.DisplayName,
			ResponseStatus: strings.ToLower(p.ResponseStatus),
		}.Normalized())
	}
	return out
}

// ToInbound maps a Calendar event. Instances of a series are keyed by the
// series id plus their instance id; cancelled events become deletions.
func ToInbound(ev *Event, kind entities.EventKind, owner *entities.PlatformConnection) entities.InboundEvent {
	if ev.IsCancelled() && kind != entities.EventKindReport {
		kind = entities.EventKindDeleted
	}
	start, duration := schedule(ev)
	out := entities.InboundEvent{
		Platform:  entities.PlatformGmeet,
		Kind:      kind,
		Attendees: Attendees(ev.Attendees),
		Keys: entities.KeyBag{
			EventID:           ev.ID,
			PlatformMeetingID: entities.StringPtr(ev.MeetingCode()),
			ScheduledStart:    start,
			ScheduledDuration: duration,
		},
		Patch: patchFrom(ev),
	}
	if ev.RecurringEventID != "" {
		out.Keys.EventID = ev.RecurringEventID
		out.Keys.OccurrenceID = entities.StringPtr(ev.ID)
	}

	if email := entities.NormalizeEmail(ev.Organizer.Email); email != "" {
		out.Organizer = &entities.AttendeeRef{Email: email, DisplayName: ev.Organizer.DisplayName}
		if owner != nil && email == entities.NormalizeEmail(owner.Email) {
			id := owner.UserID
			out.OrganizerUserID = &id
			out.Patch.OrganizerID = &id
			out.Patch.ForceOrganizer = true
		}
	}
	return out
}

// SeriesToInbound maps a recurring master with its expanded occurrences
func SeriesToInbound(master *Event, kind entities.EventKind, owner *entities.PlatformConnection, occurrences []entities.Occurrence, w entities.Window) entities.InboundEvent {
	out := ToInbound(master, kind, owner)
	if out.Kind == entities.EventKindDeleted {
		return out
	}
	out.Series = &entities.Series{Window: w, Occurrences: occurrences}
	return out
}

// ReportInput bundles what a finished Meet session produced
type ReportInput struct {
	Record     *ConferenceRecord
	Event      *Event
	Transcript string
	Owner      *entities.PlatformConnection
}

// ReportToInbound maps a finished session onto its calendar entry. The
// conference record id is the report id. Without a calendar entry the
// session is keyed by its meeting code.
func ReportToInbound(in ReportInput, meetingCode string) entities.InboundEvent {
	var out entities.InboundEvent
	if in.Event != nil {
		out = ToInbound(in.Event, entities.EventKindReport, in.Owner)
	} else {
		out = entities.InboundEvent{
			Platform: entities.PlatformGmeet,
			Kind:     entities.EventKindReport,
			Keys:     entities.KeyBag{PlatformMeetingID: entities.StringPtr(meetingCode)},
			Patch:    entities.MeetingPatch{PlatformMeetingID: entities.StringPtr(meetingCode)},
		}
		if in.Owner != nil {
			id := in.Owner.UserID
			out.OrganizerUserID = &id
		}
	}

	reportID := entities.StringPtr(in.Record.ID())
	out.Keys.ReportID = reportID
	out.Patch.ReportID = reportID
	out.Patch.Transcript = in.Transcript
	out.Patch.Status = ""
	out.Patch.ActualStart = entities.TimePtr(in.Record.StartTime)
	if !in.Record.StartTime.IsZero() && in.Record.EndTime.After(in.Record.StartTime) {
		out.Patch.ActualDuration = entities.IntPtr(minutes(in.Record.EndTime.Sub(in.Record.StartTime)))
	}
	return out
}

func patchFrom(ev *Event) entities.MeetingPatch {
	start, duration := schedule(ev)
	p := entities.MeetingPatch{
		Title:             strings.TrimSpace(ev.Summary),
		Description:       strings.TrimSpace(ev.Description),
		JoinURL:           ev.HangoutLink,
		PlatformMeetingID: entities.StringPtr(ev.MeetingCode()),
		ScheduledStart:    start,
		ScheduledDuration: duration,
		Status:            entities.MeetingStatusScheduled,
	}
	if ev.IsCancelled() {
		p.Status = entities.MeetingStatusCancelled
	}
	return p
}

func schedule(ev *Event) (*time.Time, *int) {
	start, ok := ev.Start.Time()
	if !ok {
		return nil, nil
	}
	end, ok := ev.End.Time()
	if !ok || end.Before(start) {
		return entities.TimePtr(start), nil
	}
	return entities.TimePtr(start), entities.IntPtr(minutes(end.Sub(start)))
}

func minutes(d time.Duration) int {
	return int(math.Round(d.Minutes()))
}
