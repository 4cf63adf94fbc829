// Package gmeet talks to Google Calendar and Google Meet for connected users.
package gmeet

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/external/httpclient"
)

// Endpoints are the Google API roots the client uses
type Endpoints struct {
	Calendar string
	Meet     string
	Drive    string
	Events   string
}

// DefaultEndpoints are Google's public API roots
var DefaultEndpoints = Endpoints{
	Calendar: "https://www.googleapis.com/calendar/v3",
	Meet:     "https://meet.googleapis.com/v2",
	Drive:    "https://www.googleapis.com/drive/v3",
	Events:   "https://workspaceevents.googleapis.com/v1",
}

// EventTime is a Calendar start/end. All-day events carry Date instead of DateTime.
type EventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

// Time returns the instant of a timed event
func (t EventTime) Time() (time.Time, bool) {
	if t.DateTime == "" {
		return time.Time{}, false
	}
	v, err := time.Parse(time.RFC3339, t.DateTime)
	if err != nil {
		return time.Time{}, false
	}
	return v.UTC(), true
}

// Location returns the event's zone, UTC when unknown
func (t EventTime) Location() *time.Location {
	if t.TimeZone != "" {
		if loc, err := time.LoadLocation(t.TimeZone); err == nil {
			return loc
		}
	}
	return time.UTC
}

// Person is an organizer, creator or attendee
type Person struct {
	Email          string `json:"email"`
	DisplayName    string `json:"displayName"`
	ResponseStatus string `json:"responseStatus"`
	Organizer      bool   `json:"organizer"`
	Resource       bool   `json:"resource"`
	Self           bool   `json:"self"`
}

// Event is the subset of a Calendar event we reconcile
type Event struct {
	ID                string     `json:"id"`
	ICalUID           string     `json:"iCalUID"`
	Status            string     `json:"status"`
	Summary           string     `json:"summary"`
	Description       string     `json:"description"`
	HangoutLink       string     `json:"hangoutLink"`
	Start             EventTime  `json:"start"`
	End               EventTime  `json:"end"`
	Recurrence        []string   `json:"recurrence"`
	RecurringEventID  string     `json:"recurringEventId"`
	OriginalStartTime *EventTime `json:"originalStartTime"`
	Organizer         Person     `json:"organizer"`
	Creator           Person     `json:"creator"`
	Attendees         []Person   `json:"attendees"`
	Sequence          int        `json:"sequence"`
	Updated           string     `json:"updated"`
	ConferenceData    *struct {
		ConferenceID string `json:"conferenceId"`
	} `json:"conferenceData"`
}

// IsCancelled reports whether the event or instance was cancelled
func (e *Event) IsCancelled() bool {
	return strings.EqualFold(e.Status, "cancelled")
}

// IsSeries reports whether the event is a recurring master
func (e *Event) IsSeries() bool {
	return len(e.Recurrence) > 0 && e.RecurringEventID == ""
}

// MeetingCode returns the Meet code (abc-defg-hij) of the event's conference
func (e *Event) MeetingCode() string {
	if e.ConferenceData != nil && e.ConferenceData.ConferenceID != "" {
		return e.ConferenceData.ConferenceID
	}
	if i := strings.LastIndex(e.HangoutLink, "/"); i >= 0 {
		return e.HangoutLink[i+1:]
	}
	return ""
}

// ConferenceRecord is one Meet session
type ConferenceRecord struct {
	Name      string    `json:"name"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Space     string    `json:"space"`
}

// ID is the last segment of the record name
func (r *ConferenceRecord) ID() string {
	return strings.TrimPrefix(r.Name, "conferenceRecords/")
}

// Space is a Meet meeting space
type Space struct {
	Name        string `json:"name"`
	MeetingURI  string `json:"meetingUri"`
	MeetingCode string `json:"meetingCode"`
}

// Transcript is a Meet transcript stored as a Google Doc
type Transcript struct {
	Name            string `json:"name"`
	State           string `json:"state"`
	DocsDestination struct {
		Document  string `json:"document"`
		ExportURI string `json:"exportUri"`
	} `json:"docsDestination"`
}

// Ready reports whether the document has been generated
func (t Transcript) Ready() bool {
	return t.State == "FILE_GENERATED" && t.DocsDestination.Document != ""
}

// Client is a Google Calendar / Meet client
type Client struct {
	http      *httpclient.Client
	endpoints Endpoints
}

// NewClient creates a client. Empty endpoints fall back to the defaults.
func NewClient(hc *httpclient.Client, endpoints Endpoints) *Client {
	if endpoints.Calendar == "" {
		endpoints.Calendar = DefaultEndpoints.Calendar
	}
	if endpoints.Meet == "" {
		endpoints.Meet = DefaultEndpoints.Meet
	}
	if endpoints.Drive == "" {
		endpoints.Drive = DefaultEndpoints.Drive
	}
	if endpoints.Events == "" {
		endpoints.Events = DefaultEndpoints.Events
	}
	endpoints.Calendar = strings.TrimRight(endpoints.Calendar, "/")
	endpoints.Meet = strings.TrimRight(endpoints.Meet, "/")
	endpoints.Drive = strings.TrimRight(endpoints.Drive, "/")
	endpoints.Events = strings.TrimRight(endpoints.Events, "/")
	return &Client{http: hc, endpoints: endpoints}
}

type eventList struct {
	Items         []Event `json:"items"`
	NextPageToken string  `json:"nextPageToken"`
}

// GetEvent fetches an event of the primary calendar. 404 and 410 mean it is gone.
func (c *Client) GetEvent(ctx context.Context, conn *entities.PlatformConnection, eventID string) (*Event, error) {
	var ev Event
	err := c.http.GetJSON(ctx, conn, c.endpoints.Calendar+"/calendars/primary/events/"+url.PathEscape(eventID), &ev)
	if httpclient.IsStatus(err, http.StatusNotFound) || httpclient.IsStatus(err, http.StatusGone) {
		return nil, entities.ErrMeetingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get calendar event %s: %w", eventID, err)
	}
	return &ev, nil
}

// ListUpdated returns events changed since the given time, cancelled ones included.
// Recurring masters are returned once, not expanded.
func (c *Client) ListUpdated(ctx context.Context, conn *entities.PlatformConnection, since time.Time) ([]Event, error) {
	q := url.Values{}
	q.Set("updatedMin", since.UTC().Format(time.RFC3339))
	q.Set("showDeleted", "true")
	q.Set("singleEvents", "false")
	q.Set("maxResults", "250")
	return c.listEvents(ctx, conn, c.endpoints.Calendar+"/calendars/primary/events", q)
}

// ListEvents returns single events and expanded instances starting inside the window
func (c *Client) ListEvents(ctx context.Context, conn *entities.PlatformConnection, w entities.Window) ([]Event, error) {
	q := url.Values{}
	q.Set("timeMin", w.Start.UTC().Format(time.RFC3339))
	q.Set("timeMax", w.End.UTC().Format(time.RFC3339))
	q.Set("singleEvents", "true")
	q.Set("orderBy", "startTime")
	q.Set("maxResults", "250")
	return c.listEvents(ctx, conn, c.endpoints.Calendar+"/calendars/primary/events", q)
}

// ListExceptions returns the instances of a series inside the window that were
// cancelled or moved away from their recurrence slot.
func (c *Client) ListExceptions(ctx context.Context, conn *entities.PlatformConnection, seriesID string, w entities.Window) ([]Event, error) {
	q := url.Values{}
	q.Set("timeMin", w.Start.UTC().Format(time.RFC3339))
	q.Set("timeMax", w.End.UTC().Format(time.RFC3339))
	q.Set("showDeleted", "true")
	q.Set("maxResults", "250")
	all, err := c.listEvents(ctx, conn, c.endpoints.Calendar+"/calendars/primary/events/"+url.PathEscape(seriesID)+"/instances", q)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, ev := range all {
		if ev.IsCancelled() || moved(ev) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func moved(ev Event) bool {
	if ev.OriginalStartTime == nil {
		return false
	}
	orig, ok1 := ev.OriginalStartTime.Time()
	start, ok2 := ev.Start.Time()
	return ok1 && ok2 && !orig.Equal(start)
}

func (c *Client) listEvents(ctx context.Context, conn *entities.PlatformConnection, base string, q url.Values) ([]Event, error) {
	var out []Event
	for {
		var page eventList
		if err := c.http.GetJSON(ctx, conn, base+"?"+q.Encode(), &page); err != nil {
			return nil, fmt.Errorf("list calendar events: %w", err)
		}
		out = append(out, page.Items...)
		if page.NextPageToken == "" {
			return out, nil
		}
		q.Set("pageToken", page.NextPageToken)
	}
}

// FindEventByMeetingCode finds the calendar entry that owns a Meet code
func (c *Client) FindEventByMeetingCode(ctx context.Context, conn *entities.PlatformConnection, code string, w entities.Window) (*Event, error) {
	if code == "" {
		return nil, nil
	}
	events, err := c.ListEvents(ctx, conn, w)
	if err != nil {
		return nil, err
	}
	for i := range events {
		if strings.EqualFold(events[i].MeetingCode(), code) {
			return &events[i], nil
		}
	}
	return nil, nil
}

// GetConferenceRecord fetches a Meet session by resource name
func (c *Client) GetConferenceRecord(ctx context.Context, conn *entities.PlatformConnection, name string) (*ConferenceRecord, error) {
	var rec ConferenceRecord
	if err := c.http.GetJSON(ctx, conn, c.endpoints.Meet+"/"+strings.TrimPrefix(name, "/"), &rec); err != nil {
		return nil, fmt.Errorf("get conference record: %w", err)
	}
	return &rec, nil
}

// ListConferenceRecords lists the sessions held in a meeting space that started inside the window
func (c *Client) ListConferenceRecords(ctx context.Context, conn *entities.PlatformConnection, meetingCode string, w entities.Window) ([]ConferenceRecord, error) {
	filter := fmt.Sprintf(`space.meeting_code = "%s" AND start_time >= "%s" AND start_time < "%s"`,
		meetingCode, w.Start.UTC().Format(time.RFC3339), w.End.UTC().Format(time.RFC3339))
	q := url.Values{}
	q.Set("filter", filter)

	var out []ConferenceRecord
	for {
		var page struct {
			ConferenceRecords []ConferenceRecord `json:"conferenceRecords"`
			NextPageToken     string             `json:"nextPageToken"`
		}
		if err := c.http.GetJSON(ctx, conn, c.endpoints.Meet+"/conferenceRecords?"+q.Encode(), &page); err != nil {
			return nil, fmt.Errorf("list conference records: %w", err)
		}
		out = append(out, page.ConferenceRecords...)
		if page.NextPageToken == "" {
			return out, nil
		}
		q.Set("pageToken", page.NextPageToken)
	}
}

// Channel is a Calendar push notification channel
type Channel struct {
	ID         string `json:"id"`
	ResourceID string `json:"resourceId"`
	Expiration string `json:"expiration,omitempty"`
}

// WatchCalendar opens a push channel on the primary calendar
func (c *Client) WatchCalendar(ctx context.Context, conn *entities.PlatformConnection, channelID, address, token string) (*Channel, error) {
	payload := map[string]string{
		"id":      channelID,
		"type":    "web_hook",
		"address": address,
		"token":   token,
	}
	var ch Channel
	if err := c.http.PostJSON(ctx, conn, c.endpoints.Calendar+"/calendars/primary/events/watch", payload, &ch); err != nil {
		return nil, fmt.Errorf("watch calendar: %w", err)
	}
	return &ch, nil
}

// meetEventTypes are the Workspace events a connected user is subscribed to
var meetEventTypes = []string{ConferenceEnded, TranscriptGenerated}

type operation struct {
	Name     string `json:"name"`
	Done     bool   `json:"done"`
	Response struct {
		Name string `json:"name"`
	} `json:"response"`
}

// SubscribeMeetEvents subscribes the user's Meet conferences to a Pub/Sub
// topic. It returns the subscription id, or "" while Google is still
// creating it.
func (c *Client) SubscribeMeetEvents(ctx context.Context, conn *entities.PlatformConnection, topic string) (string, error) {
	payload := map[string]interface{}{
		"targetResource":       "//cloudidentity.googleapis.com/users/" + conn.AccountID,
		"eventTypes":           meetEventTypes,
		"notificationEndpoint": map[string]string{"pubsubTopic": topic},
		"payloadOptions":       map[string]bool{"includeResource": false},
	}
	var op operation
	if err := c.http.PostJSON(ctx, conn, c.endpoints.Events+"/subscriptions", payload, &op); err != nil {
		return "", fmt.Errorf("create meet subscription: %w", err)
	}
	if !op.Done {
		return "", nil
	}
	return strings.TrimPrefix(op.Response.Name, "subscriptions/"), nil
}

// RenewMeetSubscription resets a subscription to its maximum lifetime.
// A 404 means it already expired.
func (c *Client) RenewMeetSubscription(ctx context.Context, conn *entities.PlatformConnection, id string) error {
	u := c.endpoints.Events + "/subscriptions/" + url.PathEscape(id) + "?updateMask=ttl"
	_, err := c.http.Do(ctx, conn, http.MethodPatch, u, []byte(`{"ttl":"0s"}`))
	if httpclient.IsStatus(err, http.StatusNotFound) {
		return entities.ErrConnectionNotFound
	}
	if err != nil {
		return fmt.Errorf("renew meet subscription %s: %w", id, err)
	}
	return nil
}

// GetSpace fetches a Meet space by resource name
func (c *Client) GetSpace(ctx context.Context, conn *entities.PlatformConnection, name string) (*Space, error) {
	var sp Space
	if err := c.http.GetJSON(ctx, conn, c.endpoints.Meet+"/"+strings.TrimPrefix(name, "/"), &sp); err != nil {
		return nil, fmt.Errorf("get meet space: %w", err)
	}
	return &sp, nil
}

// ListTranscripts lists the transcripts of a session
func (c *Client) ListTranscripts(ctx context.Context, conn *entities.PlatformConnection, recordName string) ([]Transcript, error) {
	var resp struct {
		Transcripts []Transcript `json:"transcripts"`
	}
	if err := c.http.GetJSON(ctx, conn, c.endpoints.Meet+"/"+strings.TrimPrefix(recordName, "/")+"/transcripts", &resp); err != nil {
		return nil, fmt.Errorf("list meet transcripts: %w", err)
	}
	return resp.Transcripts, nil
}

// ExportText exports a Google Doc as plain text
func (c *Client) ExportText(ctx context.Context, conn *entities.PlatformConnection, documentID string) (string, error) {
	u := c.endpoints.Drive + "/files/" + url.PathEscape(documentID) + "/export?mimeType=" + url.QueryEscape("text/plain")
	body, err := c.http.Do(ctx, conn, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("export transcript document: %w", err)
	}
	return strings.TrimSpace(strings.TrimPrefix(string(body), "\ufeff")), nil
}
