package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/external/gmeet"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/external/teams"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/external/zoom"
	"github.com/johnquangdev/meeting-sync/internal/usecase/reconcile"
)

var testNow = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []entities.InboundEvent
	err    error
}

func (r *recorder) Process(_ context.Context, ev entities.InboundEvent) (reconcile.Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	if r.err != nil {
		return reconcile.Outcome{}, r.err
	}
	return reconcile.Outcome{MeetingIDs: []uuid.UUID{uuid.New()}, Created: 1}, nil
}

func (r *recorder) Windows() reconcile.Windows { return reconcile.DefaultWindows }

func (r *recorder) Wait() {}

type memConns struct {
	rows []*entities.PlatformConnection
}

func (m *memConns) FindByUser(_ context.Context, platform entities.Platform, userID uuid.UUID) (*entities.PlatformConnection, error) {
	for _, c := range m.rows {
		if c.Platform == platform && c.UserID == userID {
			return c, nil
		}
	}
	return nil, entities.ErrConnectionNotFound
}

func (m *memConns) FindBySubscriptionID(_ context.Context, id string) (*entities.PlatformConnection, error) {
	for _, c := range m.rows {
		if c.SubscriptionID == id && c.IsConnected {
			return c, nil
		}
	}
	return nil, entities.ErrConnectionNotFound
}

func (m *memConns) FindByAccountID(_ context.Context, platform entities.Platform, accountID string) (*entities.PlatformConnection, error) {
	for _, c := range m.rows {
		if c.Platform == platform && c.AccountID == accountID && c.IsConnected {
			return c, nil
		}
	}
	return nil, entities.ErrConnectionNotFound
}

func (m *memConns) ListConnected(_ context.Context, platform entities.Platform) ([]*entities.PlatformConnection, error) {
	var out []*entities.PlatformConnection
	for _, c := range m.rows {
		if c.IsConnected && (platform == "" || c.Platform == platform) {
			out = append(out, c)
		}
	}
	return out, nil
}

func newConn(platform entities.Platform, email string) *entities.PlatformConnection {
	return &entities.PlatformConnection{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Platform:    platform,
		Email:       email,
		IsConnected: true,
	}
}

type memReports map[string]*entities.Meeting

func (m memReports) FindByReportID(_ context.Context, platform entities.Platform, reportID string) (*entities.Meeting, error) {
	if row, ok := m[string(platform)+"|"+reportID]; ok {
		return row, nil
	}
	return nil, entities.ErrMeetingNotFound
}

type fakeTeams struct {
	events      map[string]*teams.Event
	instances   map[string][]teams.Event
	view        []teams.Event
	online      map[string]*teams.OnlineMeeting
	byUID       map[string]*teams.Event
	reports     map[string][]teams.AttendanceReport
	records     map[string][]teams.AttendanceRecord
	transcripts map[string][]teams.Transcript
	texts       map[string]string
	messages    map[string]*teams.Message
	attachments map[string][]teams.Attachment

	instanceCalls int
}

func (f *fakeTeams) GetEvent(_ context.Context, _ *entities.PlatformConnection, id string) (*teams.Event, error) {
	if ev, ok := f.events[id]; ok {
		return ev, nil
	}
	return nil, entities.ErrMeetingNotFound
}

func (f *fakeTeams) ListInstances(_ context.Context, _ *entities.PlatformConnection, seriesID string, _ entities.Window) ([]teams.Event, error) {
	f.instanceCalls++
	return f.instances[seriesID], nil
}

func (f *fakeTeams) CalendarView(context.Context, *entities.PlatformConnection, entities.Window) ([]teams.Event, error) {
	return f.view, nil
}

func (f *fakeTeams) FindOnlineMeeting(_ context.Context, _ *entities.PlatformConnection, joinURL string) (*teams.OnlineMeeting, error) {
	return f.online[joinURL], nil
}

func (f *fakeTeams) FindEventByICalUID(_ context.Context, _ *entities.PlatformConnection, uid string) (*teams.Event, error) {
	return f.byUID[uid], nil
}

func (f *fakeTeams) ListAttendanceReports(_ context.Context, _ *entities.PlatformConnection, meetingID string) ([]teams.AttendanceReport, error) {
	return f.reports[meetingID], nil
}

func (f *fakeTeams) GetAttendanceRecords(_ context.Context, _ *entities.PlatformConnection, _, reportID string) ([]teams.AttendanceRecord, error) {
	return f.records[reportID], nil
}

func (f *fakeTeams) ListTranscripts(_ context.Context, _ *entities.PlatformConnection, meetingID string) ([]teams.Transcript, error) {
	return f.transcripts[meetingID], nil
}

func (f *fakeTeams) GetTranscriptText(_ context.Context, _ *entities.PlatformConnection, _, transcriptID string) (string, error) {
	return f.texts[transcriptID], nil
}

func (f *fakeTeams) GetMessage(_ context.Context, _ *entities.PlatformConnection, id string) (*teams.Message, error) {
	if m, ok := f.messages[id]; ok {
		return m, nil
	}
	return nil, entities.ErrMeetingNotFound
}

func (f *fakeTeams) ListAttachments(_ context.Context, _ *entities.PlatformConnection, id string) ([]teams.Attachment, error) {
	return f.attachments[id], nil
}

type fakeZoom struct {
	meetings     map[string]*zoom.Meeting
	recordings   map[string]*zoom.Recording
	list         []zoom.Recording
	participants map[string][]zoom.Participant
	transcripts  map[string]string
	recordingErr error
}

func (f *fakeZoom) GetMeeting(_ context.Context, _ *entities.PlatformConnection, id string) (*zoom.Meeting, error) {
	if m, ok := f.meetings[id]; ok {
		return m, nil
	}
	return nil, entities.ErrMeetingNotFound
}

func (f *fakeZoom) GetRecording(_ context.Context, _ *entities.PlatformConnection, id string) (*zoom.Recording, error) {
	if f.recordingErr != nil {
		return nil, f.recordingErr
	}
	if r, ok := f.recordings[id]; ok {
		return r, nil
	}
	return nil, entities.ErrNoRecording
}

func (f *fakeZoom) ListRecordings(context.Context, *entities.PlatformConnection, entities.Window) ([]zoom.Recording, error) {
	return f.list, nil
}

func (f *fakeZoom) ListParticipants(_ context.Context, _ *entities.PlatformConnection, id string) ([]zoom.Participant, error) {
	return f.participants[id], nil
}

func (f *fakeZoom) DownloadTranscript(_ context.Context, _ *entities.PlatformConnection, file zoom.RecordingFile) (string, error) {
	return f.transcripts[file.DownloadURL], nil
}

type fakeGmeet struct {
	updated     []gmeet.Event
	events      []gmeet.Event
	exceptions  map[string][]gmeet.Event
	records     map[string]*gmeet.ConferenceRecord
	byCode      map[string][]gmeet.ConferenceRecord
	spaces      map[string]*gmeet.Space
	transcripts map[string][]gmeet.Transcript
	docs        map[string]string

	since     time.Time
	slotAsked []entities.Window
}

func (f *fakeGmeet) ListUpdated(_ context.Context, _ *entities.PlatformConnection, since time.Time) ([]gmeet.Event, error) {
	f.since = since
	return f.updated, nil
}

func (f *fakeGmeet) ListEvents(context.Context, *entities.PlatformConnection, entities.Window) ([]gmeet.Event, error) {
	return f.events, nil
}

func (f *fakeGmeet) ListExceptions(_ context.Context, _ *entities.PlatformConnection, seriesID string, _ entities.Window) ([]gmeet.Event, error) {
	return f.exceptions[seriesID], nil
}

func (f *fakeGmeet) FindEventByMeetingCode(_ context.Context, _ *entities.PlatformConnection, code string, _ entities.Window) (*gmeet.Event, error) {
	for i := range f.events {
		if f.events[i].MeetingCode() == code {
			return &f.events[i], nil
		}
	}
	return nil, nil
}

func (f *fakeGmeet) GetConferenceRecord(_ context.Context, _ *entities.PlatformConnection, name string) (*gmeet.ConferenceRecord, error) {
	if r, ok := f.records[name]; ok {
		return r, nil
	}
	return nil, entities.ErrMeetingNotFound
}

func (f *fakeGmeet) ListConferenceRecords(_ context.Context, _ *entities.PlatformConnection, code string, w entities.Window) ([]gmeet.ConferenceRecord, error) {
	f.slotAsked = append(f.slotAsked, w)
	var out []gmeet.ConferenceRecord
	for _, r := range f.byCode[code] {
		if w.Contains(r.StartTime) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeGmeet) GetSpace(_ context.Context, _ *entities.PlatformConnection, name string) (*gmeet.Space, error) {
	if sp, ok := f.spaces[name]; ok {
		return sp, nil
	}
	return nil, entities.ErrMeetingNotFound
}

func (f *fakeGmeet) ListTranscripts(_ context.Context, _ *entities.PlatformConnection, record string) ([]gmeet.Transcript, error) {
	return f.transcripts[record], nil
}

func (f *fakeGmeet) ExportText(_ context.Context, _ *entities.PlatformConnection, doc string) (string, error) {
	return f.docs[doc], nil
}
