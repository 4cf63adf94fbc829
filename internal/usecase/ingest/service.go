package ingest

import (
	"context"
	"time"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/external/gmeet"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/external/teams"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/external/zoom"
)

// Service defines the interface for turning provider notifications into
// reconciliation calls
type Service interface {
	// TeamsNotification handles one Graph calendar change notification
	TeamsNotification(ctx context.Context, n teams.Notification) error

	// TeamsMail handles a mailbox notification carrying calendar invites
	TeamsMail(ctx context.Context, n teams.Notification) error

	// ZoomEvent handles a verified Zoom webhook
	ZoomEvent(ctx context.Context, ev *zoom.WebhookEvent) error

	// GmeetCalendarChange pulls the calendar changes behind a push ping
	GmeetCalendarChange(ctx context.Context, channelID, resourceState string) error

	// GmeetConference handles a Meet conference event delivered by Pub/Sub
	GmeetConference(ctx context.Context, env *gmeet.PushEnvelope) error

	// PollReports fetches finished sessions of one connection inside w and
	// returns how many report signals were processed
	PollReports(ctx context.Context, conn *entities.PlatformConnection, w entities.Window) (int, error)
}

// Ensure IngestService implements Service interface
var _ Service = (*IngestService)(nil)

// TeamsAPI is the part of the Graph client ingestion uses
type TeamsAPI interface {
	GetEvent(ctx context.Context, conn *entities.PlatformConnection, eventID string) (*teams.Event, error)
	ListInstances(ctx context.Context, conn *entities.PlatformConnection, seriesID string, w entities.Window) ([]teams.Event, error)
	CalendarView(ctx context.Context, conn *entities.PlatformConnection, w entities.Window) ([]teams.Event, error)
	FindOnlineMeeting(ctx context.Context, conn *entities.PlatformConnection, joinURL string) (*teams.OnlineMeeting, error)
	FindEventByICalUID(ctx context.Context, conn *entities.PlatformConnection, uid string) (*teams.Event, error)
	ListAttendanceReports(ctx context.Context, conn *entities.PlatformConnection, meetingID string) ([]teams.AttendanceReport, error)
	GetAttendanceRecords(ctx context.Context, conn *entities.PlatformConnection, meetingID, reportID string) ([]teams.AttendanceRecord, error)
	ListTranscripts(ctx context.Context, conn *entities.PlatformConnection, meetingID string) ([]teams.Transcript, error)
	GetTranscriptText(ctx context.Context, conn *entities.PlatformConnection, meetingID, transcriptID string) (string, error)
	GetMessage(ctx context.Context, conn *entities.PlatformConnection, messageID string) (*teams.Message, error)
	ListAttachments(ctx context.Context, conn *entities.PlatformConnection, messageID string) ([]teams.Attachment, error)
}

// ZoomAPI is the part of the Zoom client ingestion uses
type ZoomAPI interface {
	GetMeeting(ctx context.Context, conn *entities.PlatformConnection, meetingID string) (*zoom.Meeting, error)
	GetRecording(ctx context.Context, conn *entities.PlatformConnection, meetingUUID string) (*zoom.Recording, error)
	ListRecordings(ctx context.Context, conn *entities.PlatformConnection, w entities.Window) ([]zoom.Recording, error)
	ListParticipants(ctx context.Context, conn *entities.PlatformConnection, meetingUUID string) ([]zoom.Participant, error)
	DownloadTranscript(ctx context.Context, conn *entities.PlatformConnection, f zoom.RecordingFile) (string, error)
}

// GmeetAPI is the part of the Calendar/Meet client ingestion uses
type GmeetAPI interface {
	ListUpdated(ctx context.Context, conn *entities.PlatformConnection, since time.Time) ([]gmeet.Event, error)
	ListEvents(ctx context.Context, conn *entities.PlatformConnection, w entities.Window) ([]gmeet.Event, error)
	ListExceptions(ctx context.Context, conn *entities.PlatformConnection, seriesID string, w entities.Window) ([]gmeet.Event, error)
	FindEventByMeetingCode(ctx context.Context, conn *entities.PlatformConnection, code string, w entities.Window) (*gmeet.Event, error)
	GetConferenceRecord(ctx context.Context, conn *entities.PlatformConnection, name string) (*gmeet.ConferenceRecord, error)
	ListConferenceRecords(ctx context.Context, conn *entities.PlatformConnection, meetingCode string, w entities.Window) ([]gmeet.ConferenceRecord, error)
	GetSpace(ctx context.Context, conn *entities.PlatformConnection, name string) (*gmeet.Space, error)
	ListTranscripts(ctx context.Context, conn *entities.PlatformConnection, recordName string) ([]gmeet.Transcript, error)
	ExportText(ctx context.Context, conn *entities.PlatformConnection, documentID string) (string, error)
}

var (
	_ TeamsAPI = (*teams.Client)(nil)
	_ ZoomAPI  = (*zoom.Client)(nil)
	_ GmeetAPI = (*gmeet.Client)(nil)
)
