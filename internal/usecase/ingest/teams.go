package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/external/ics"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/external/teams"
)

// reportSlack is how far a session may drift from its scheduled slot and
// still belong to that occurrence
const reportSlack = 2 * time.Hour

func (s *IngestService) teamsConnection(ctx context.Context, n teams.Notification) (*entities.PlatformConnection, error) {
	conn, err := s.conns.FindBySubscriptionID(ctx, n.SubscriptionID)
	if errors.Is(err, entities.ErrConnectionNotFound) {
		if owner := n.ResourceOwner(); owner != "" {
			conn, err = s.conns.FindByAccountID(ctx, entities.PlatformTeams, owner)
		}
	}
	return connected(conn, err)
}

// TeamsNotification handles one Graph calendar change notification
func (s *IngestService) TeamsNotification(ctx context.Context, n teams.Notification) error {
	if s.teams == nil {
		return entities.ErrUnsupportedPlatform
	}
	conn, err := s.teamsConnection(ctx, n)
	if err != nil {
		return fmt.Errorf("failed to resolve connection for subscription %q: %w", n.SubscriptionID, err)
	}
	id := n.ResourceID()
	if id == "" {
		return fmt.Errorf("notification without resource id: %w", entities.ErrMissingKeys)
	}

	ev, err := s.teams.GetEvent(ctx, conn, id)
	switch {
	case errors.Is(err, entities.ErrMeetingNotFound):
		return s.teamsDeleted(ctx, id, nil)
	case err != nil:
		if n.Kind() == entities.EventKindDeleted {
			return s.teamsDeleted(ctx, id, nil)
		}
		return fmt.Errorf("failed to fetch event %q: %w", id, err)
	case n.Kind() == entities.EventKindDeleted:
		return s.teamsDeleted(ctx, id, ev)
	}
	return s.teamsEvent(ctx, conn, ev, n.Kind())
}

// teamsDeleted removes a vanished event. ev, when still readable, tells
// whether the id was a single occurrence of a series.
func (s *IngestService) teamsDeleted(ctx context.Context, id string, ev *teams.Event) error {
	keys := entities.KeyBag{EventID: id}
	if ev != nil && ev.SeriesMasterID != "" {
		keys.EventID = ev.SeriesMasterID
		keys.OccurrenceID = entities.StringPtr(ev.ID)
	}
	return s.process(ctx, entities.InboundEvent{
		Platform: entities.PlatformTeams,
		Kind:     entities.EventKindDeleted,
		Keys:     keys,
	})
}

// responsible reports whether conn should handle ev. Every invitee's
// subscription fires for a shared event; only one of them processes it.
func (s *IngestService) responsible(ctx context.Context, conn *entities.PlatformConnection, ev *teams.Event) bool {
	list, err := s.conns.ListConnected(ctx, entities.PlatformTeams)
	if err != nil {
		s.warn("Failed to list connections, processing anyway", conn, err)
		return true
	}
	owner := teams.ResponsibleConnection(ev, list)
	return owner == uuid.Nil || owner == conn.UserID
}

func (s *IngestService) teamsEvent(ctx context.Context, conn *entities.PlatformConnection, ev *teams.Event, kind entities.EventKind) error {
	if !s.responsible(ctx, conn, ev) {
		s.logger.Debug("Event handled by another connection", zap.String("event_id", ev.ID))
		return nil
	}

	var onlineID string
	if link := ev.JoinURL(); link != "" {
		om, err := s.teams.FindOnlineMeeting(ctx, conn, link)
		switch {
		case err != nil:
			s.warn("Failed to resolve online meeting", conn, err, zap.String("event_id", ev.ID))
		case om != nil:
			onlineID = om.ID
		}
	}

	in := teams.ToInbound(ev, kind, conn, onlineID)
	if ev.IsRecurring() && !ev.IsCancelled {
		w := s.leading()
		instances, err := s.teams.ListInstances(ctx, conn, ev.ID, w)
		if err != nil {
			return fmt.Errorf("failed to list instances of %q: %w", ev.ID, err)
		}
		in = teams.WithInstances(in, instances, w)
	}
	return s.process(ctx, in)
}

// TeamsMail handles a mailbox notification carrying calendar invites
func (s *IngestService) TeamsMail(ctx context.Context, n teams.Notification) error {
	if s.teams == nil {
		return entities.ErrUnsupportedPlatform
	}
	conn, err := s.teamsConnection(ctx, n)
	if err != nil {
		return fmt.Errorf("failed to resolve connection for subscription %q: %w", n.SubscriptionID, err)
	}
	id := n.ResourceID()
	msg, err := s.teams.GetMessage(ctx, conn, id)
	if errors.Is(err, entities.ErrMeetingNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to fetch message %q: %w", id, err)
	}
	if !msg.HasAttachments {
		return nil
	}
	attachments, err := s.teams.ListAttachments(ctx, conn, msg.ID)
	if err != nil {
		return fmt.Errorf("failed to list attachments of %q: %w", msg.ID, err)
	}

	w := s.leading()
	var errs []error
	for _, a := range attachments {
		if !a.IsCalendar() {
			continue
		}
		events, err := ics.Parse(bytes.NewReader(a.ContentBytes), ics.Options{Fallback: entities.PlatformTeams, Window: w})
		if err != nil {
			s.warn("Failed to parse calendar attachment", conn, err, zap.String("attachment", a.Name))
			continue
		}
		for _, in := range events {
			errs = append(errs, s.invite(ctx, conn, in))
		}
	}
	return errors.Join(errs...)
}

// invite processes one event from a mailed iCalendar file. Teams invites
// are looked up in the calendar first so they carry Graph ids; anything
// else is reconciled as parsed.
func (s *IngestService) invite(ctx context.Context, conn *entities.PlatformConnection, in entities.InboundEvent) error {
	if in.Platform == entities.PlatformTeams && in.Keys.EventID != "" {
		ev, err := s.teams.FindEventByICalUID(ctx, conn, in.Keys.EventID)
		switch {
		case err != nil:
			s.warn("Failed to look up invite in calendar", conn, err, zap.String("uid", in.Keys.EventID))
		case ev != nil:
			return s.teamsEvent(ctx, conn, ev, in.Kind)
		}
	}
	if in.Organizer != nil && conn.Email != "" && in.Organizer.Email == entities.NormalizeEmail(conn.Email) {
		id := conn.UserID
		in.OrganizerUserID = &id
		in.Patch.OrganizerID = &id
		in.Patch.ForceOrganizer = true
	}
	return s.process(ctx, in)
}

func (s *IngestService) pollTeams(ctx context.Context, conn *entities.PlatformConnection, w entities.Window) (int, error) {
	events, err := s.teams.CalendarView(ctx, conn, w)
	if err != nil {
		return 0, fmt.Errorf("failed to read calendar: %w", err)
	}
	now := s.now()
	var (
		count int
		errs  []error
	)
	for i := range events {
		ev := &events[i]
		start, ok := ev.Start.Time()
		if ev.IsCancelled || ev.JoinURL() == "" || !ok || start.After(now) {
			continue
		}
		n, err := s.teamsReports(ctx, conn, ev)
		count += n
		errs = append(errs, err)
	}
	return count, errors.Join(errs...)
}

// teamsReports processes the attendance reports of one calendar entry
func (s *IngestService) teamsReports(ctx context.Context, conn *entities.PlatformConnection, ev *teams.Event) (int, error) {
	if !s.responsible(ctx, conn, ev) {
		return 0, nil
	}
	om, err := s.teams.FindOnlineMeeting(ctx, conn, ev.JoinURL())
	if err != nil || om == nil {
		return 0, err
	}
	reports, err := s.teams.ListAttendanceReports(ctx, conn, om.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to list attendance reports: %w", err)
	}
	reports = reportsFor(ev, reports)
	if len(reports) == 0 {
		return 0, nil
	}

	var transcripts []teams.Transcript
	if list, err := s.teams.ListTranscripts(ctx, conn, om.ID); err != nil {
		s.warn("Failed to list transcripts", conn, err, zap.String("online_meeting_id", om.ID))
	} else {
		transcripts = list
	}

	count := 0
	var errs []error
	for _, r := range reports {
		if s.alreadyReported(ctx, entities.PlatformTeams, r.ID) {
			continue
		}
		records, err := s.teams.GetAttendanceRecords(ctx, conn, om.ID, r.ID)
		if err != nil {
			s.warn("Failed to read attendance records", conn, err, zap.String("report_id", r.ID))
		}
		var text string
		if t, ok := transcriptFor(transcripts, r); ok {
			if text, err = s.teams.GetTranscriptText(ctx, conn, om.ID, t.ID); err != nil {
				s.warn("Failed to download transcript", conn, err, zap.String("transcript_id", t.ID))
			}
		}
		err = s.process(ctx, teams.ReportToInbound(teams.ReportInput{
			Event:           ev,
			OnlineMeetingID: om.ID,
			Report:          r,
			Records:         records,
			Transcript:      text,
			Owner:           conn,
		}))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		count++
	}
	return count, errors.Join(errs...)
}

// reportsFor keeps the sessions that belong to ev. Occurrences of a series
// share one online meeting, so their reports are told apart by start time.
func reportsFor(ev *teams.Event, reports []teams.AttendanceReport) []teams.AttendanceReport {
	if ev.SeriesMasterID == "" {
		return reports
	}
	start, ok := ev.Start.Time()
	if !ok {
		return nil
	}
	end, ok := ev.End.Time()
	if !ok {
		end = start
	}
	out := reports[:0:0]
	for _, r := range reports {
		if !r.MeetingStartDateTime.Before(start.Add(-reportSlack)) && r.MeetingStartDateTime.Before(end.Add(reportSlack)) {
			out = append(out, r)
		}
	}
	return out
}

// transcriptFor picks the transcript produced during the session of r
func transcriptFor(list []teams.Transcript, r teams.AttendanceReport) (teams.Transcript, bool) {
	if len(list) == 1 && r.MeetingStartDateTime.IsZero() {
		return list[0], true
	}
	end := r.MeetingEndDateTime
	if end.IsZero() {
		end = r.MeetingStartDateTime
	}
	for _, t := range list {
		if !t.CreatedDateTime.Before(r.MeetingStartDateTime) && t.CreatedDateTime.Before(end.Add(reportSlack)) {
			return t, true
		}
	}
	return teams.Transcript{}, false
}
