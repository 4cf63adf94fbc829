package teams

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
)

// Notification is one Graph change notification
type Notification struct {
	SubscriptionID string `json:"subscriptionId"`
	ClientState    string `json:"clientState"`
	ChangeType     string `json:"changeType"`
	Resource       string `json:"resource"`
	ResourceData   struct {
		ID string `json:"id"`
	} `json:"resourceData"`
}

// NotificationBatch is the body Graph posts to a webhook
type NotificationBatch struct {
	Value []Notification `json:"value"`
}

// ResourceID is the last path segment of the notification resource,
// i.e. the event or message id.
func (n Notification) ResourceID() string {
	if n.ResourceData.ID != "" {
		return n.ResourceData.ID
	}
	r := strings.TrimRight(n.Resource, "/")
	if i := strings.LastIndex(r, "/"); i >= 0 {
		r = r[i+1:]
	}
	// Messages('id') style resources
	if i := strings.Index(r, "('"); i >= 0 && strings.HasSuffix(r, "')") {
		r = r[i+2 : len(r)-2]
	}
	return r
}

// ResourceOwner returns the Graph user id of a Users/{id}/... resource
func (n Notification) ResourceOwner() string {
	parts := strings.Split(strings.Trim(n.Resource, "/"), "/")
	first := parts[0]
	if len(first) > 8 && strings.EqualFold(first[:7], "users('") && strings.HasSuffix(first, "')") {
		return first[7 : len(first)-2]
	}
	if len(parts) < 2 || !strings.EqualFold(first, "users") {
		return ""
	}
	return parts[1]
}

// Kind maps the change type onto an event kind
func (n Notification) Kind() entities.EventKind {
	switch strings.ToLower(n.ChangeType) {
	case "deleted":
		return entities.EventKindDeleted
	case "created":
		return entities.EventKindCreated
	default:
		return entities.EventKindUpdated
	}
}

// Attendees converts Graph attendees, skipping rooms and resources
func Attendees(list []Attendee) []entities.AttendeeRef {
	out := make([]entities.AttendeeRef, 0, len(list))
	for _, a := range list {
		if strings.EqualFold(a.Type, "resource") || a.EmailAddress.Address == "" {
			continue
		}
		out = append(out, entities.AttendeeRef{
			Email:          a.EmailAddress.Address,
			DisplayName:    a.EmailAddress.Name,
			ResponseStatus: strings.ToLower(a.Status.Response),
		}.Normalized())
	}
	return out
}

// ToInbound turns a calendar event into an inbound signal. owner is the
// connection the notification arrived on; when it organizes the event it
// becomes the organizer user. onlineMeetingID may be empty.
func ToInbound(ev *Event, kind entities.EventKind, owner *entities.PlatformConnection, onlineMeetingID string) entities.InboundEvent {
	out := entities.InboundEvent{
		Platform:  entities.PlatformTeams,
		Kind:      kind,
		Attendees: Attendees(ev.Attendees),
	}

	start, duration := schedule(ev.Start, ev.End)
	out.Keys = entities.KeyBag{
		EventID:           ev.ID,
		PlatformMeetingID: entities.StringPtr(onlineMeetingID),
		ScheduledStart:    start,
		ScheduledDuration: duration,
	}
	if ev.SeriesMasterID != "" {
		// a single occurrence or exception of a series
		out.Keys.EventID = ev.SeriesMasterID
		out.Keys.OccurrenceID = entities.StringPtr(ev.ID)
	}

	out.Patch = patchFrom(ev)
	out.Patch.PlatformMeetingID = entities.StringPtr(onlineMeetingID)

	if addr := entities.NormalizeEmail(ev.Organizer.EmailAddress.Address); addr != "" {
		out.Organizer = &entities.AttendeeRef{Email: addr, DisplayName: ev.Organizer.EmailAddress.Name}
		if owner != nil && addr == entities.NormalizeEmail(owner.Email) {
			id := owner.UserID
			out.OrganizerUserID = &id
			out.Patch.OrganizerID = &id
			out.Patch.ForceOrganizer = true
		}
	}
	return out
}

// WithInstances attaches the enumerated occurrences of a series master
func WithInstances(ev entities.InboundEvent, instances []Event, w entities.Window) entities.InboundEvent {
	series := &entities.Series{Window: w}
	for i := range instances {
		inst := &instances[i]
		start, duration := schedule(inst.Start, inst.End)
		if start == nil {
			continue
		}
		occ := entities.Occurrence{
			OccurrenceID: inst.ID,
			Start:        *start,
			Cancelled:    inst.IsCancelled,
			Patch:        patchFrom(inst),
		}
		if duration != nil {
			occ.Duration = *duration
		}
		if len(inst.Attendees) > 0 {
			occ.Attendees = Attendees(inst.Attendees)
		}
		series.Occurrences = append(series.Occurrences, occ)
	}
	ev.Series = series
	return ev
}

// ReportInput bundles what a finished Teams meeting produced
type ReportInput struct {
	Event           *Event
	OnlineMeetingID string
	Report          AttendanceReport
	Records         []AttendanceRecord
	Transcript      string
	Owner           *entities.PlatformConnection
}

// ReportToInbound builds the report signal of one attendance report
func ReportToInbound(in ReportInput) entities.InboundEvent {
	out := ToInbound(in.Event, entities.EventKindReport, in.Owner, in.OnlineMeetingID)
	out.Keys.ReportID = entities.StringPtr(in.Report.ID)
	out.Patch.ReportID = entities.StringPtr(in.Report.ID)
	out.Patch.Transcript = in.Transcript
	out.Patch.ActualStart = entities.TimePtr(in.Report.MeetingStartDateTime)
	if !in.Report.MeetingStartDateTime.IsZero() && in.Report.MeetingEndDateTime.After(in.Report.MeetingStartDateTime) {
		out.Patch.ActualDuration = entities.IntPtr(minutes(in.Report.MeetingEndDateTime.Sub(in.Report.MeetingStartDateTime)))
	}

	// Attendance says who joined, not how they answered the invite.
	for _, r := range in.Records {
		if r.EmailAddress == "" {
			continue
		}
		out.Attendees = append(out.Attendees, entities.AttendeeRef{
			Email:       r.EmailAddress,
			DisplayName: r.Identity.DisplayName,
		}.Normalized())
	}
	return out
}

func patchFrom(ev *Event) entities.MeetingPatch {
	start, duration := schedule(ev.Start, ev.End)
	p := entities.MeetingPatch{
		Title:             strings.TrimSpace(ev.Subject),
		Description:       strings.TrimSpace(ev.Body.Content),
		JoinURL:           ev.JoinURL(),
		ScheduledStart:    start,
		ScheduledDuration: duration,
		Status:            entities.MeetingStatusScheduled,
	}
	if ev.IsCancelled {
		p.Status = entities.MeetingStatusCancelled
	}
	return p
}

func schedule(from, to DateTimeTimeZone) (*time.Time, *int) {
	start, ok := from.Time()
	if !ok {
		return nil, nil
	}
	end, ok := to.Time()
	if !ok || end.Before(start) {
		return entities.TimePtr(start), nil
	}
	return entities.TimePtr(start), entities.IntPtr(minutes(end.Sub(start)))
}

func minutes(d time.Duration) int {
	return int(math.Round(d.Minutes()))
}

// OwnerIsOrganizer reports whether conn organizes the event
func OwnerIsOrganizer(ev *Event, conn *entities.PlatformConnection) bool {
	return conn != nil && conn.Email != "" &&
		entities.NormalizeEmail(ev.Organizer.EmailAddress.Address) == entities.NormalizeEmail(conn.Email)
}

// ResponsibleConnection picks which connected user handles an event so that
// one notification fan-out is processed once: the organizer when connected,
// otherwise the first connected attendee in invitation order.
func ResponsibleConnection(ev *Event, connected []*entities.PlatformConnection) uuid.UUID {
	byEmail := make(map[string]uuid.UUID, len(connected))
	for _, c := range connected {
		if c.Email != "" {
			byEmail[entities.NormalizeEmail(c.Email)] = c.UserID
		}
	}
	if id, ok := byEmail[entities.NormalizeEmail(ev.Organizer.EmailAddress.Address)]; ok {
		return id
	}
	for _, a := range ev.Attendees {
		if id, ok := byEmail[entities.NormalizeEmail(a.EmailAddress.Address)]; ok {
			return id
		}
	}
	return uuid.Nil
}
