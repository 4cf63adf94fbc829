package ics

import (
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
)

func crlf(lines ...string) string {
	return strings.Join(lines, "\r\n") + "\r\n"
}

var window = entities.Window{
	Start: time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2026, 10, 30, 0, 0, 0, 0, time.UTC),
}

func TestParse_TeamsRequest(t *testing.T) {
	body := crlf(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:Microsoft Exchange Server 2010",
		"METHOD:REQUEST",
		"BEGIN:VEVENT",
		"UID:040000008200E00074C5B7101A82E008",
		"SEQUENCE:0",
		"SUMMARY;LANGUAGE=en-US:Quarterly review\\, Q4",
		"DTSTART;TZID=W. Europe Standard Time:20261021T140000",
		"DTEND;TZID=W. Europe Standard Time:20261021T150000",
		"ORGANIZER;CN=Dana Park:mailto:Dana@Acme.io",
		"ATTENDEE;ROLE=REQ-PARTICIPANT;PARTSTAT=NEEDS-ACTION;CN=Kim:mailto:KIM@acme.io",
		"ATTENDEE;CUTYPE=ROOM;PARTSTAT=ACCEPTED;CN=Room 4:mailto:room4@acme.io",
		"ATTENDEE;PARTSTAT=ACCEPTED;CN=Lee:mailto:lee@acme.io",
		"X-MICROSOFT-SKYPETEAMSMEETINGURL:https://teams.microsoft.com/l/meetup-join/19%3ameeting_abc",
		"END:VEVENT",
		"END:VCALENDAR",
	)

	events, err := Parse(strings.NewReader(body), Options{Window: window})
	require.NoError(t, err)
	require.Len(t, events, 1)
	ev := events[0]

	assert.Equal(t, entities.PlatformTeams, ev.Platform)
	assert.Equal(t, entities.EventKindCreated, ev.Kind)
	assert.Equal(t, "040000008200E00074C5B7101A82E008", ev.Keys.EventID)
	assert.Nil(t, ev.Keys.OccurrenceID)
	assert.Equal(t, "Quarterly review, Q4", ev.Patch.Title)
	assert.Equal(t, "https://teams.microsoft.com/l/meetup-join/19%3ameeting_abc", ev.Patch.JoinURL)
	require.NotNil(t, ev.Keys.ScheduledStart)
	assert.Equal(t, time.Date(2026, 10, 21, 12, 0, 0, 0, time.UTC), *ev.Keys.ScheduledStart)
	assert.Equal(t, 60, *ev.Keys.ScheduledDuration)

	require.NotNil(t, ev.Organizer)
	assert.Equal(t, "dana@acme.io", ev.Organizer.Email)
	assert.Equal(t, "Dana Park", ev.Organizer.DisplayName)

	require.Len(t, ev.Attendees, 2, "rooms are skipped")
	assert.Equal(t, "kim@acme.io", ev.Attendees[0].Email)
	assert.Equal(t, "needsaction", ev.Attendees[0].ResponseStatus)
	assert.Equal(t, "accepted", ev.Attendees[1].ResponseStatus)
	assert.Nil(t, ev.Series)
}

func TestParse_CancelledOccurrence(t *testing.T) {
	body := crlf(
		"BEGIN:VCALENDAR",
		"METHOD:CANCEL",
		"BEGIN:VEVENT",
		"UID:series-1",
		"RECURRENCE-ID;TZID=Europe/Berlin:20261026T090000",
		"DTSTART;TZID=Europe/Berlin:20261026T090000",
		"DTEND;TZID=Europe/Berlin:20261026T093000",
		"LOCATION:https://zoom.us/j/85012345678?pwd=x",
		"END:VEVENT",
		"END:VCALENDAR",
	)

	events, err := Parse(strings.NewReader(body), Options{Window: window})
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, entities.PlatformZoom, ev.Platform)
	assert.Equal(t, entities.EventKindDeleted, ev.Kind)
	require.NotNil(t, ev.Keys.OccurrenceID)
	assert.Equal(t, "20261026T080000Z", *ev.Keys.OccurrenceID)
}

func TestParse_RecurringSeries(t *testing.T) {
	body := crlf(
		"BEGIN:VCALENDAR",
		"METHOD:REQUEST",
		"BEGIN:VEVENT",
		"UID:standup@acme.io",
		"SEQUENCE:2",
		"SUMMARY:Standup",
		"DTSTART;TZID=Europe/Berlin:20261019T090000",
		"DTEND;TZID=Europe/Berlin:20261019T091500",
		"RRULE:FREQ=DAILY;BYDAY=MO,TU,WE,TH,FR",
		"EXDATE;TZID=Europe/Berlin:20261021T090000",
		"DESCRIPTION:Join https://example.com/agenda or https://meet.google.com/abc-defg-hij",
		"END:VEVENT",
		"END:VCALENDAR",
	)

	w := entities.Window{
		Start: time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 10, 24, 0, 0, 0, 0, time.UTC),
	}
	events, err := Parse(strings.NewReader(body), Options{Window: w})
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, entities.PlatformGmeet, ev.Platform)
	assert.Equal(t, entities.EventKindUpdated, ev.Kind, "sequence above zero is an update")
	assert.Equal(t, "https://meet.google.com/abc-defg-hij", ev.Patch.JoinURL)
	require.NotNil(t, ev.Series)

	ids := make([]string, 0, len(ev.Series.Occurrences))
	for _, o := range ev.Series.Occurrences {
		ids = append(ids, o.OccurrenceID)
		assert.Equal(t, 15, o.Duration)
	}
	assert.Equal(t, []string{"20261019T070000Z", "20261020T070000Z", "20261022T070000Z", "20261023T070000Z"}, ids)
}

func TestParse_UnknownPlatform(t *testing.T) {
	body := crlf(
		"BEGIN:VCALENDAR",
		"BEGIN:VEVENT",
		"UID:lunch",
		"DTSTART:20261021T120000Z",
		"LOCATION:Canteen",
		"END:VEVENT",
		"END:VCALENDAR",
	)

	events, err := Parse(strings.NewReader(body), Options{})
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = Parse(strings.NewReader(body), Options{Fallback: entities.PlatformTeams})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, entities.PlatformTeams, events[0].Platform)
	assert.Nil(t, events[0].Keys.ScheduledDuration)
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse(strings.NewReader("BEGIN:VCALENDAR\r\nthis is not a property\r\nEND:VCALENDAR\r\n"), Options{})
	assert.Error(t, err)
}

func TestPlatformOf(t *testing.T) {
	tests := []struct {
		link string
		want entities.Platform
	}{
		{"https://teams.microsoft.com/l/meetup-join/x", entities.PlatformTeams},
		{"https://us02web.zoom.us/j/123", entities.PlatformZoom},
		{"https://meet.google.com/abc-defg-hij", entities.PlatformGmeet},
		{"https://example.com", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.link, func(t *testing.T) {
			assert.Equal(t, tt.want, PlatformOf(tt.link))
		})
	}
}
