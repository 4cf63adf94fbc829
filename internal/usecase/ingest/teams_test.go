package ingest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/external/teams"
)

const joinLink = "https://teams.microsoft.com/l/meetup-join/19%3ameeting_abc"

func newTestService(d Deps) (*IngestService, *recorder) {
	rec := &recorder{}
	if d.Reconciler == nil {
		d.Reconciler = rec
	}
	svc := NewIngestService(d)
	svc.now = func() time.Time { return testNow }
	return svc, rec
}

func graphTime(s string) teams.DateTimeTimeZone {
	return teams.DateTimeTimeZone{DateTime: s, TimeZone: "UTC"}
}

func weeklyMaster(organizer string) *teams.Event {
	ev := &teams.Event{
		ID:         "AAA",
		Subject:    "Design review",
		Type:       "seriesMaster",
		Start:      graphTime("2026-10-19T09:00:00"),
		End:        graphTime("2026-10-19T09:30:00"),
		Recurrence: json.RawMessage(`{"pattern":{"type":"weekly"}}`),
	}
	ev.Organizer.EmailAddress.Address = organizer
	ev.OnlineMeeting = &struct {
		JoinURL string `json:"joinUrl"`
	}{JoinURL: joinLink}
	return ev
}

func TestTeamsNotification_ExpandsSeries(t *testing.T) {
	conn := newConn(entities.PlatformTeams, "lee@acme.io")
	conn.SubscriptionID = "sub-1"
	api := &fakeTeams{
		events: map[string]*teams.Event{"AAA": weeklyMaster("Lee@acme.io")},
		instances: map[string][]teams.Event{"AAA": {
			{ID: "AAA-1", SeriesMasterID: "AAA", Start: graphTime("2026-10-19T09:00:00"), End: graphTime("2026-10-19T09:30:00")},
			{ID: "AAA-2", SeriesMasterID: "AAA", Start: graphTime("2026-10-26T09:00:00"), End: graphTime("2026-10-26T09:45:00"), IsCancelled: true},
		}},
		online: map[string]*teams.OnlineMeeting{joinLink: {ID: "om-1"}},
	}
	svc, rec := newTestService(Deps{Connections: &memConns{rows: []*entities.PlatformConnection{conn}}, Teams: api})

	err := svc.TeamsNotification(context.Background(), teams.Notification{
		SubscriptionID: "sub-1",
		ChangeType:     "updated",
		Resource:       "Users/u-1/Events/AAA",
	})
	require.NoError(t, err)

	require.Len(t, rec.events, 1)
	in := rec.events[0]
	assert.Equal(t, entities.EventKindUpdated, in.Kind)
	assert.Equal(t, "AAA", in.Keys.EventID)
	assert.Equal(t, "om-1", *in.Keys.PlatformMeetingID)
	require.NotNil(t, in.OrganizerUserID)
	assert.Equal(t, conn.UserID, *in.OrganizerUserID)
	require.NotNil(t, in.Series)
	require.Len(t, in.Series.Occurrences, 2)
	assert.True(t, in.Series.Occurrences[1].Cancelled)
	assert.Equal(t, 45, in.Series.Occurrences[1].Duration)
}

func TestTeamsNotification_DeletedOccurrence(t *testing.T) {
	conn := newConn(entities.PlatformTeams, "lee@acme.io")
	conn.SubscriptionID = "sub-1"
	api := &fakeTeams{events: map[string]*teams.Event{
		"AAA-2": {ID: "AAA-2", SeriesMasterID: "AAA", IsCancelled: true},
	}}
	svc, rec := newTestService(Deps{Connections: &memConns{rows: []*entities.PlatformConnection{conn}}, Teams: api})

	require.NoError(t, svc.TeamsNotification(context.Background(), teams.Notification{
		SubscriptionID: "sub-1", ChangeType: "deleted", Resource: "Users/u-1/Events/AAA-2",
	}))
	require.Len(t, rec.events, 1)
	assert.Equal(t, entities.EventKindDeleted, rec.events[0].Kind)
	assert.Equal(t, "AAA", rec.events[0].Keys.EventID)
	assert.Equal(t, "AAA-2", *rec.events[0].Keys.OccurrenceID)

	// gone entirely: the id itself is the event
	require.NoError(t, svc.TeamsNotification(context.Background(), teams.Notification{
		SubscriptionID: "sub-1", ChangeType: "updated", Resource: "Users/u-1/Events/BBB",
	}))
	require.Len(t, rec.events, 2)
	assert.Equal(t, entities.EventKindDeleted, rec.events[1].Kind)
	assert.Equal(t, "BBB", rec.events[1].Keys.EventID)
	assert.Nil(t, rec.events[1].Keys.OccurrenceID)
}

func TestTeamsNotification_FallsBackToResourceOwner(t *testing.T) {
	conn := newConn(entities.PlatformTeams, "kim@acme.io")
	conn.AccountID = "graph-user-7"
	api := &fakeTeams{events: map[string]*teams.Event{"CCC": {ID: "CCC", Subject: "1:1",
		Start: graphTime("2026-10-20T10:00:00"), End: graphTime("2026-10-20T10:30:00")}}}
	svc, rec := newTestService(Deps{Connections: &memConns{rows: []*entities.PlatformConnection{conn}}, Teams: api})

	require.NoError(t, svc.TeamsNotification(context.Background(), teams.Notification{
		SubscriptionID: "expired-sub", ChangeType: "created", Resource: "Users('graph-user-7')/Events('CCC')",
	}))
	require.Len(t, rec.events, 1)
	assert.Equal(t, "CCC", rec.events[0].Keys.EventID)
	assert.Equal(t, entities.EventKindCreated, rec.events[0].Kind)
}

func TestTeamsNotification_OnlyResponsibleConnectionProcesses(t *testing.T) {
	organizer := newConn(entities.PlatformTeams, "lee@acme.io")
	organizer.SubscriptionID = "sub-lee"
	invitee := newConn(entities.PlatformTeams, "kim@acme.io")
	invitee.SubscriptionID = "sub-kim"
	ev := weeklyMaster("lee@acme.io")
	ev.Recurrence = nil
	api := &fakeTeams{events: map[string]*teams.Event{"AAA": ev}}
	svc, rec := newTestService(Deps{Connections: &memConns{rows: []*entities.PlatformConnection{organizer, invitee}}, Teams: api})

	ctx := context.Background()
	require.NoError(t, svc.TeamsNotification(ctx, teams.Notification{SubscriptionID: "sub-kim", Resource: "Users/k/Events/AAA"}))
	assert.Empty(t, rec.events, "the invitee's copy is skipped")

	require.NoError(t, svc.TeamsNotification(ctx, teams.Notification{SubscriptionID: "sub-lee", Resource: "Users/l/Events/AAA"}))
	assert.Len(t, rec.events, 1)
}

func TestTeamsNotification_UnknownSubscription(t *testing.T) {
	svc, rec := newTestService(Deps{Connections: &memConns{}, Teams: &fakeTeams{}})
	err := svc.TeamsNotification(context.Background(), teams.Notification{SubscriptionID: "nope", Resource: "Events/x"})
	assert.ErrorIs(t, err, entities.ErrConnectionNotFound)
	assert.Empty(t, rec.events)
}

const mailedInvite = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//Acme//Mail//EN\r\n" +
	"METHOD:REQUEST\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:zoom-invite-1\r\n" +
	"SUMMARY:Vendor call\r\n" +
	"DTSTART:20261021T150000Z\r\n" +
	"DTEND:20261021T154500Z\r\n" +
	"ORGANIZER;CN=Kim:mailto:kim@acme.io\r\n" +
	"LOCATION:https://acme.zoom.us/j/123456789\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:teams-invite-1\r\n" +
	"SUMMARY:Design review\r\n" +
	"DTSTART:20261019T090000Z\r\n" +
	"DTEND:20261019T093000Z\r\n" +
	"X-MICROSOFT-SKYPETEAMSMEETINGURL:" + joinLink + "\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestTeamsMail_ParsesCalendarAttachments(t *testing.T) {
	conn := newConn(entities.PlatformTeams, "kim@acme.io")
	conn.SubscriptionID = "mail-sub"
	master := weeklyMaster("kim@acme.io")
	master.Recurrence = nil
	api := &fakeTeams{
		messages: map[string]*teams.Message{"M1": {ID: "M1", HasAttachments: true}},
		attachments: map[string][]teams.Attachment{"M1": {
			{Name: "logo.png", ContentType: "image/png", ContentBytes: []byte{0x89}},
			{Name: "invite.ics", ContentType: "text/calendar", ContentBytes: []byte(mailedInvite)},
		}},
		byUID: map[string]*teams.Event{"teams-invite-1": master},
	}
	svc, rec := newTestService(Deps{Connections: &memConns{rows: []*entities.PlatformConnection{conn}}, Teams: api})

	require.NoError(t, svc.TeamsMail(context.Background(), teams.Notification{
		SubscriptionID: "mail-sub", Resource: "Users/u/Messages/M1",
	}))

	require.Len(t, rec.events, 2)
	zoomInvite := rec.events[0]
	assert.Equal(t, entities.PlatformZoom, zoomInvite.Platform)
	assert.Equal(t, "zoom-invite-1", zoomInvite.Keys.EventID)
	require.NotNil(t, zoomInvite.OrganizerUserID, "the mailbox owner organizes it")
	assert.Equal(t, conn.UserID, *zoomInvite.OrganizerUserID)

	teamsInvite := rec.events[1]
	assert.Equal(t, entities.PlatformTeams, teamsInvite.Platform)
	assert.Equal(t, "AAA", teamsInvite.Keys.EventID, "Graph ids replace the iCalendar UID")
}

func TestTeamsMail_MissingMessageIsIgnored(t *testing.T) {
	conn := newConn(entities.PlatformTeams, "kim@acme.io")
	conn.SubscriptionID = "mail-sub"
	svc, rec := newTestService(Deps{Connections: &memConns{rows: []*entities.PlatformConnection{conn}}, Teams: &fakeTeams{}})

	assert.NoError(t, svc.TeamsMail(context.Background(), teams.Notification{SubscriptionID: "mail-sub", Resource: "Messages/gone"}))
	assert.Empty(t, rec.events)
}

func TestPollReports_Teams(t *testing.T) {
	conn := newConn(entities.PlatformTeams, "lee@acme.io")
	occurrence := func(id, day string) teams.Event {
		ev := *weeklyMaster("lee@acme.io")
		ev.ID, ev.SeriesMasterID, ev.Recurrence = id, "AAA", nil
		ev.Start = graphTime(day + "T09:00:00")
		ev.End = graphTime(day + "T09:30:00")
		return ev
	}
	future := occurrence("AAA-3", "2026-10-19")
	api := &fakeTeams{
		view:   []teams.Event{occurrence("AAA-1", "2026-10-05"), occurrence("AAA-2", "2026-10-12"), future},
		online: map[string]*teams.OnlineMeeting{joinLink: {ID: "om-1"}},
		reports: map[string][]teams.AttendanceReport{"om-1": {
			{ID: "r-1", MeetingStartDateTime: time.Date(2026, 10, 5, 9, 1, 0, 0, time.UTC), MeetingEndDateTime: time.Date(2026, 10, 5, 9, 29, 0, 0, time.UTC)},
			{ID: "r-2", MeetingStartDateTime: time.Date(2026, 10, 12, 9, 3, 0, 0, time.UTC), MeetingEndDateTime: time.Date(2026, 10, 12, 9, 40, 0, 0, time.UTC)},
		}},
		records: map[string][]teams.AttendanceRecord{"r-2": {{EmailAddress: "kim@acme.io"}}},
		transcripts: map[string][]teams.Transcript{"om-1": {
			{ID: "t-2", CreatedDateTime: time.Date(2026, 10, 12, 9, 41, 0, 0, time.UTC)},
		}},
		texts: map[string]string{"t-2": "Lee: shipping friday"},
	}
	reports := memReports{"teams|r-1": {Transcript: "already here"}}
	svc, rec := newTestService(Deps{
		Connections: &memConns{rows: []*entities.PlatformConnection{conn}},
		Reports:     reports,
		Teams:       api,
	})

	n, err := svc.PollReports(context.Background(), conn, entities.Window{Start: testNow.Add(-14 * 24 * time.Hour), End: testNow})
	require.NoError(t, err)
	assert.Equal(t, 1, n, "r-1 is stored, AAA-3 has not happened")

	require.Len(t, rec.events, 1)
	in := rec.events[0]
	assert.Equal(t, entities.EventKindReport, in.Kind)
	assert.Equal(t, "r-2", *in.Keys.ReportID)
	assert.Equal(t, "AAA-2", *in.Keys.OccurrenceID)
	assert.Equal(t, "Lee: shipping friday", in.Patch.Transcript)
	assert.Equal(t, 37, *in.Patch.ActualDuration)
	require.Len(t, in.Attendees, 1)
}

func TestReportsFor_SingleEventKeepsAll(t *testing.T) {
	reports := []teams.AttendanceReport{{ID: "a"}, {ID: "b"}}
	assert.Len(t, reportsFor(&teams.Event{ID: "x"}, reports), 2)
}
