package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
)

func seedMeeting(t *testing.T, repo *fakeMeetings, m *entities.Meeting) *entities.Meeting {
	t.Helper()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Platform == "" {
		m.Platform = entities.PlatformTeams
	}
	require.NoError(t, repo.Insert(context.Background(), m))
	return m
}

func TestResolver_ReportIDWins(t *testing.T) {
	repo := newFakeMeetings()
	open := seedMeeting(t, repo, &entities.Meeting{EventID: "E1"})
	reported := seedMeeting(t, repo, &entities.Meeting{EventID: "E1", ReportID: strPtr("R1")})

	r := NewResolver(repo)
	got, err := r.Resolve(context.Background(), entities.PlatformTeams, entities.KeyBag{EventID: "E1", ReportID: strPtr("R1")}, MatchSchedule)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, reported.ID, got.ID)

	got, err = r.Resolve(context.Background(), entities.PlatformTeams, entities.KeyBag{EventID: "E1"}, MatchIdentity)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, open.ID, got.ID)
}

func TestResolver_OccurrenceSpacesNeverCrossMatch(t *testing.T) {
	repo := newFakeMeetings()
	lone := seedMeeting(t, repo, &entities.Meeting{EventID: "E1"})
	instance := seedMeeting(t, repo, &entities.Meeting{EventID: "E1", OccurrenceID: strPtr("occ-1")})
	r := NewResolver(repo)

	got, err := r.Resolve(context.Background(), entities.PlatformTeams, entities.KeyBag{EventID: "E1", OccurrenceID: strPtr("occ-1")}, MatchIdentity)
	require.NoError(t, err)
	assert.Equal(t, instance.ID, got.ID)

	got, err = r.Resolve(context.Background(), entities.PlatformTeams, entities.KeyBag{EventID: "E1"}, MatchIdentity)
	require.NoError(t, err)
	assert.Equal(t, lone.ID, got.ID)

	got, err = r.Resolve(context.Background(), entities.PlatformTeams, entities.KeyBag{EventID: "E1", OccurrenceID: strPtr("occ-2")}, MatchIdentity)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResolver_SummarizedRowsAreClosed(t *testing.T) {
	repo := newFakeMeetings()
	seedMeeting(t, repo, &entities.Meeting{EventID: "E1", Summary: "done"})

	got, err := NewResolver(repo).Resolve(context.Background(), entities.PlatformTeams, entities.KeyBag{EventID: "E1"}, MatchIdentity)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResolver_ScheduleOnlyComparedForReports(t *testing.T) {
	repo := newFakeMeetings()
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	row := seedMeeting(t, repo, &entities.Meeting{EventID: "E1", ScheduledStart: &start, ScheduledDuration: entities.IntPtr(30)})
	r := NewResolver(repo)

	moved := start.Add(2 * time.Hour)
	keys := entities.KeyBag{EventID: "E1", ScheduledStart: &moved, ScheduledDuration: entities.IntPtr(30)}

	got, err := r.Resolve(context.Background(), entities.PlatformTeams, keys, MatchIdentity)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, row.ID, got.ID)

	got, err = r.Resolve(context.Background(), entities.PlatformTeams, keys, MatchSchedule)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResolver_FallsBackToPlatformMeetingID(t *testing.T) {
	repo := newFakeMeetings()
	row := seedMeeting(t, repo, &entities.Meeting{Platform: entities.PlatformZoom, PlatformMeetingID: strPtr("8812")})

	got, err := NewResolver(repo).Resolve(context.Background(), entities.PlatformZoom, entities.KeyBag{PlatformMeetingID: strPtr("8812")}, MatchIdentity)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, row.ID, got.ID)
}

func TestResolver_NoKeysCreatesNew(t *testing.T) {
	got, err := NewResolver(newFakeMeetings()).Resolve(context.Background(), entities.PlatformTeams, entities.KeyBag{}, MatchIdentity)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResolver_OldestRowWinsTies(t *testing.T) {
	repo := newFakeMeetings()
	// Rows without an event id sit outside the open unique index, so duplicates can exist.
	first := seedMeeting(t, repo, &entities.Meeting{Platform: entities.PlatformZoom, PlatformMeetingID: strPtr("77")})
	seedMeeting(t, repo, &entities.Meeting{Platform: entities.PlatformZoom, PlatformMeetingID: strPtr("77")})

	got, err := NewResolver(repo).Resolve(context.Background(), entities.PlatformZoom, entities.KeyBag{PlatformMeetingID: strPtr("77")}, MatchIdentity)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
}
