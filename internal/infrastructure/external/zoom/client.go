// Package zoom talks to the Zoom REST API and maps its payloads onto inbound events.
package zoom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/external/httpclient"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/external/vtt"
)

// DefaultBaseURL is the Zoom API v2 endpoint
const DefaultBaseURL = "https://api.zoom.us/v2"

// codeNoRecording is returned when a meeting has no cloud recording (yet)
const codeNoRecording = 3301

// Occurrence is one instance of a recurring Zoom meeting
type Occurrence struct {
	OccurrenceID string `json:"occurrence_id"`
	StartTime    string `json:"start_time"`
	Duration     int    `json:"duration"`
	Status       string `json:"status"`
}

// Meeting is a scheduled Zoom meeting. It is also the "object" of meeting.* webhooks.
type Meeting struct {
	ID          json.Number  `json:"id"`
	UUID        string       `json:"uuid"`
	HostID      string       `json:"host_id"`
	HostEmail   string       `json:"host_email"`
	Topic       string       `json:"topic"`
	Agenda      string       `json:"agenda"`
	Type        int          `json:"type"`
	StartTime   string       `json:"start_time"`
	Duration    int          `json:"duration"`
	Timezone    string       `json:"timezone"`
	JoinURL     string       `json:"join_url"`
	Occurrences []Occurrence `json:"occurrences"`
}

// IsRecurring reports whether the meeting is a recurring series with fixed times
func (m *Meeting) IsRecurring() bool {
	return m.Type == 8 || len(m.Occurrences) > 0
}

// RecordingFile is one file of a cloud recording
type RecordingFile struct {
	ID             string `json:"id"`
	RecordingType  string `json:"recording_type"`
	FileType       string `json:"file_type"`
	DownloadURL    string `json:"download_url"`
	PlayURL        string `json:"play_url"`
	Status         string `json:"status"`
	RecordingStart string `json:"recording_start"`
}

// IsTranscript reports whether the file is the audio transcript
func (f RecordingFile) IsTranscript() bool {
	return strings.EqualFold(f.FileType, "TRANSCRIPT") ||
		strings.Contains(strings.ToLower(f.RecordingType), "transcript")
}

// Recording is the cloud recording of one meeting session.
// It is also the "object" of recording.* webhooks.
type Recording struct {
	ID             json.Number     `json:"id"`
	UUID           string          `json:"uuid"`
	HostID         string          `json:"host_id"`
	HostEmail      string          `json:"host_email"`
	Topic          string          `json:"topic"`
	StartTime      string          `json:"start_time"`
	Duration       int             `json:"duration"`
	ShareURL       string          `json:"share_url"`
	RecordingFiles []RecordingFile `json:"recording_files"`
}

// Transcript returns the transcript file, if any
func (r *Recording) Transcript() (RecordingFile, bool) {
	for _, f := range r.RecordingFiles {
		if f.IsTranscript() {
			return f, true
		}
	}
	return RecordingFile{}, false
}

// Participant attended a past meeting
type Participant struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	UserEmail string `json:"user_email"`
}

// APIError is the error body Zoom returns
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// apiCode extracts Zoom's error code from a failed request
func apiCode(err error) int {
	var se *httpclient.StatusError
	if !errors.As(err, &se) {
		return 0
	}
	var body APIError
	if json.Unmarshal([]byte(se.Body), &body) != nil {
		return 0
	}
	return body.Code
}

// Client is a Zoom REST client
type Client struct {
	http    *httpclient.Client
	baseURL string
}

// NewClient creates a Zoom client
func NewClient(hc *httpclient.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{http: hc, baseURL: strings.TrimRight(baseURL, "/")}
}

// GetMeeting fetches a meeting with all of its occurrences
func (c *Client) GetMeeting(ctx context.Context, conn *entities.PlatformConnection, meetingID string) (*Meeting, error) {
	var m Meeting
	u := c.baseURL + "/meetings/" + url.PathEscape(meetingID) + "?show_previous_occurrences=true"
	if err := c.http.GetJSON(ctx, conn, u, &m); err != nil {
		if httpclient.IsStatus(err, http.StatusNotFound) {
			return nil, entities.ErrMeetingNotFound
		}
		return nil, fmt.Errorf("get zoom meeting %s: %w", meetingID, err)
	}
	return &m, nil
}

// GetRecording fetches the cloud recording of a meeting session.
// Zoom's 3301 answer becomes entities.ErrNoRecording.
func (c *Client) GetRecording(ctx context.Context, conn *entities.PlatformConnection, meetingUUID string) (*Recording, error) {
	var r Recording
	if err := c.http.GetJSON(ctx, conn, c.baseURL+"/meetings/"+EscapeUUID(meetingUUID)+"/recordings", &r); err != nil {
		if apiCode(err) == codeNoRecording {
			return nil, entities.ErrNoRecording
		}
		return nil, fmt.Errorf("get zoom recording: %w", err)
	}
	return &r, nil
}

// ListRecordings lists the user's cloud recordings that started inside the window
func (c *Client) ListRecordings(ctx context.Context, conn *entities.PlatformConnection, w entities.Window) ([]Recording, error) {
	var out []Recording
	next := ""
	for {
		q := url.Values{}
		q.Set("from", w.Start.UTC().Format("2006-01-02"))
		q.Set("to", w.End.UTC().Format("2006-01-02"))
		q.Set("page_size", "300")
		if next != "" {
			q.Set("next_page_token", next)
		}
		var page struct {
			Meetings      []Recording `json:"meetings"`
			NextPageToken string      `json:"next_page_token"`
		}
		if err := c.http.GetJSON(ctx, conn, c.baseURL+"/users/me/recordings?"+q.Encode(), &page); err != nil {
			return nil, fmt.Errorf("list zoom recordings: %w", err)
		}
		out = append(out, page.Meetings...)
		if page.NextPageToken == "" {
			return out, nil
		}
		next = page.NextPageToken
	}
}

// ListParticipants returns everyone who joined a past meeting session
func (c *Client) ListParticipants(ctx context.Context, conn *entities.PlatformConnection, meetingUUID string) ([]Participant, error) {
	var out []Participant
	next := ""
	for {
		q := url.Values{}
		q.Set("page_size", "300")
		if next != "" {
			q.Set("next_page_token", next)
		}
		var page struct {
			Participants  []Participant `json:"participants"`
			NextPageToken string        `json:"next_page_token"`
		}
		u := c.baseURL + "/past_meetings/" + EscapeUUID(meetingUUID) + "/participants?" + q.Encode()
		if err := c.http.GetJSON(ctx, conn, u, &page); err != nil {
			return nil, fmt.Errorf("list zoom participants: %w", err)
		}
		out = append(out, page.Participants...)
		if page.NextPageToken == "" {
			return out, nil
		}
		next = page.NextPageToken
	}
}

// DownloadTranscript fetches a transcript file and flattens it to text
func (c *Client) DownloadTranscript(ctx context.Context, conn *entities.PlatformConnection, f RecordingFile) (string, error) {
	if f.DownloadURL == "" {
		return "", fmt.Errorf("transcript %s has no download url", f.ID)
	}
	body, err := c.http.Do(ctx, conn, http.MethodGet, f.DownloadURL, nil)
	if err != nil {
		return "", fmt.Errorf("download zoom transcript: %w", err)
	}
	return vtt.ToText(string(body)), nil
}

// EscapeUUID encodes a meeting UUID for use in a path. Zoom requires
// double encoding when the UUID starts with "/" or contains "//".
func EscapeUUID(id string) string {
	escaped := url.PathEscape(id)
	if strings.HasPrefix(id, "/") || strings.Contains(id, "//") {
		escaped = url.PathEscape(escaped)
	}
	return escaped
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return entities.TimePtr(t)
}
