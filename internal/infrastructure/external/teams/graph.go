// Package teams talks to Microsoft Graph on behalf of connected Teams users.
package teams

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/external/httpclient"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/external/vtt"
)

// DefaultBaseURL is the Graph v1.0 endpoint
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

const graphTimeLayout = "2006-01-02T15:04:05"

// DateTimeTimeZone is Graph's wall-clock time plus zone name
type DateTimeTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

// Time converts to an absolute time. Unknown zone names fall back to UTC,
// which is what Graph returns without a Prefer header.
func (d DateTimeTimeZone) Time() (time.Time, bool) {
	if d.DateTime == "" {
		return time.Time{}, false
	}
	loc := time.UTC
	if d.TimeZone != "" && !strings.EqualFold(d.TimeZone, "UTC") {
		if l, err := time.LoadLocation(d.TimeZone); err == nil {
			loc = l
		}
	}
	t, err := time.ParseInLocation(graphTimeLayout, d.DateTime, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// EmailAddress is a Graph recipient address
type EmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Recipient wraps an address
type Recipient struct {
	EmailAddress EmailAddress `json:"emailAddress"`
}

// Attendee is an event invitee with its response
type Attendee struct {
	Type         string       `json:"type"`
	EmailAddress EmailAddress `json:"emailAddress"`
	Status       struct {
		Response string `json:"response"`
	} `json:"status"`
}

// Event is the subset of a Graph calendar event we reconcile
type Event struct {
	ID             string           `json:"id"`
	ICalUID        string           `json:"iCalUId"`
	Subject        string           `json:"subject"`
	Type           string           `json:"type"`
	SeriesMasterID string           `json:"seriesMasterId"`
	OccurrenceID   string           `json:"occurrenceId"`
	IsCancelled    bool             `json:"isCancelled"`
	IsOnline       bool             `json:"isOnlineMeeting"`
	Start          DateTimeTimeZone `json:"start"`
	End            DateTimeTimeZone `json:"end"`
	Organizer      Recipient        `json:"organizer"`
	Attendees      []Attendee       `json:"attendees"`
	Recurrence     json.RawMessage  `json:"recurrence"`
	Body           struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
	OnlineMeeting *struct {
		JoinURL string `json:"joinUrl"`
	} `json:"onlineMeeting"`
}

// IsRecurring reports whether the event is a series master
func (e *Event) IsRecurring() bool {
	return len(e.Recurrence) > 0 && string(e.Recurrence) != "null"
}

// JoinURL returns the Teams join link, if any
func (e *Event) JoinURL() string {
	if e.OnlineMeeting == nil {
		return ""
	}
	return e.OnlineMeeting.JoinURL
}

// OnlineMeeting is the Teams meeting behind a calendar event
type OnlineMeeting struct {
	ID         string `json:"id"`
	JoinWebURL string `json:"joinWebUrl"`
	Subject    string `json:"subject"`
}

// AttendanceReport summarizes one session of an online meeting
type AttendanceReport struct {
	ID                   string    `json:"id"`
	MeetingStartDateTime time.Time `json:"meetingStartDateTime"`
	MeetingEndDateTime   time.Time `json:"meetingEndDateTime"`
	TotalParticipants    int       `json:"totalParticipantCount"`
}

// AttendanceRecord is one attendee of a report
type AttendanceRecord struct {
	EmailAddress string `json:"emailAddress"`
	Role         string `json:"role"`
	Identity     struct {
		DisplayName string `json:"displayName"`
	} `json:"identity"`
	TotalAttendanceInSeconds int `json:"totalAttendanceInSeconds"`
}

// Transcript is a transcript resource of an online meeting
type Transcript struct {
	ID              string    `json:"id"`
	CallID          string    `json:"callId"`
	CreatedDateTime time.Time `json:"createdDateTime"`
}

// Message is a mailbox message
type Message struct {
	ID             string    `json:"id"`
	Subject        string    `json:"subject"`
	From           Recipient `json:"from"`
	HasAttachments bool      `json:"hasAttachments"`
}

// Attachment is a file attachment; ContentBytes arrives base64 encoded
type Attachment struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ContentType  string `json:"contentType"`
	ContentBytes []byte `json:"contentBytes"`
}

// IsCalendar reports whether the attachment is an iCalendar file
func (a Attachment) IsCalendar() bool {
	return strings.HasPrefix(strings.ToLower(a.ContentType), "text/calendar") ||
		strings.HasSuffix(strings.ToLower(a.Name), ".ics")
}

type listResponse[T any] struct {
	Value    []T    `json:"value"`
	NextLink string `json:"@odata.nextLink"`
}

// Client is a Microsoft Graph client
type Client struct {
	http    *httpclient.Client
	baseURL string
}

// NewClient creates a Graph client
func NewClient(hc *httpclient.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{http: hc, baseURL: strings.TrimRight(baseURL, "/")}
}

// GetEvent fetches one calendar event. A 404 means the event is gone.
func (c *Client) GetEvent(ctx context.Context, conn *entities.PlatformConnection, eventID string) (*Event, error) {
	var ev Event
	err := c.http.GetJSON(ctx, conn, c.baseURL+"/me/events/"+url.PathEscape(eventID), &ev)
	if httpclient.IsStatus(err, http.StatusNotFound) {
		return nil, entities.ErrMeetingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", eventID, err)
	}
	return &ev, nil
}

// ListInstances enumerates the occurrences of a series inside the window
func (c *Client) ListInstances(ctx context.Context, conn *entities.PlatformConnection, seriesID string, w entities.Window) ([]Event, error) {
	q := url.Values{}
	q.Set("startDateTime", w.Start.UTC().Format(time.RFC3339))
	q.Set("endDateTime", w.End.UTC().Format(time.RFC3339))
	return listAll[Event](ctx, c, conn, c.baseURL+"/me/events/"+url.PathEscape(seriesID)+"/instances?"+q.Encode())
}

// CalendarView lists the events of the user's calendar inside the window
func (c *Client) CalendarView(ctx context.Context, conn *entities.PlatformConnection, w entities.Window) ([]Event, error) {
	q := url.Values{}
	q.Set("startDateTime", w.Start.UTC().Format(time.RFC3339))
	q.Set("endDateTime", w.End.UTC().Format(time.RFC3339))
	q.Set("$top", "100")
	return listAll[Event](ctx, c, conn, c.baseURL+"/me/calendar/calendarView?"+q.Encode())
}

// FindOnlineMeeting looks up the online meeting behind a join URL. It returns nil when there is none.
func (c *Client) FindOnlineMeeting(ctx context.Context, conn *entities.PlatformConnection, joinURL string) (*OnlineMeeting, error) {
	if joinURL == "" {
		return nil, nil
	}
	filter := fmt.Sprintf("JoinWebUrl eq '%s'", strings.ReplaceAll(joinURL, "'", "''"))
	var resp listResponse[OnlineMeeting]
	if err := c.http.GetJSON(ctx, conn, c.baseURL+"/me/onlineMeetings?$filter="+url.QueryEscape(filter), &resp); err != nil {
		return nil, fmt.Errorf("find online meeting: %w", err)
	}
	if len(resp.Value) == 0 {
		return nil, nil
	}
	return &resp.Value[0], nil
}

// FindEventByICalUID finds the calendar event behind an invitation UID. It returns nil when there is none.
func (c *Client) FindEventByICalUID(ctx context.Context, conn *entities.PlatformConnection, uid string) (*Event, error) {
	if uid == "" {
		return nil, nil
	}
	filter := fmt.Sprintf("iCalUId eq '%s'", strings.ReplaceAll(uid, "'", "''"))
	var resp listResponse[Event]
	if err := c.http.GetJSON(ctx, conn, c.baseURL+"/me/events?$filter="+url.QueryEscape(filter), &resp); err != nil {
		return nil, fmt.Errorf("find event by uid: %w", err)
	}
	for i := range resp.Value {
		if resp.Value[i].Type != "occurrence" && resp.Value[i].Type != "exception" {
			return &resp.Value[i], nil
		}
	}
	if len(resp.Value) > 0 {
		return &resp.Value[0], nil
	}
	return nil, nil
}

// ListAttendanceReports lists the attendance reports of an online meeting
func (c *Client) ListAttendanceReports(ctx context.Context, conn *entities.PlatformConnection, meetingID string) ([]AttendanceReport, error) {
	return listAll[AttendanceReport](ctx, c, conn, c.baseURL+"/me/onlineMeetings/"+url.PathEscape(meetingID)+"/attendanceReports")
}

// GetAttendanceRecords returns the attendees of one report
func (c *Client) GetAttendanceRecords(ctx context.Context, conn *entities.PlatformConnection, meetingID, reportID string) ([]AttendanceRecord, error) {
	var resp struct {
		AttendanceRecords []AttendanceRecord `json:"attendanceRecords"`
	}
	u := c.baseURL + "/me/onlineMeetings/" + url.PathEscape(meetingID) +
		"/attendanceReports/" + url.PathEscape(reportID) + "?$expand=attendanceRecords"
	if err := c.http.GetJSON(ctx, conn, u, &resp); err != nil {
		return nil, fmt.Errorf("get attendance records: %w", err)
	}
	return resp.AttendanceRecords, nil
}

// ListTranscripts lists the transcripts of an online meeting
func (c *Client) ListTranscripts(ctx context.Context, conn *entities.PlatformConnection, meetingID string) ([]Transcript, error) {
	return listAll[Transcript](ctx, c, conn, c.baseURL+"/me/onlineMeetings/"+url.PathEscape(meetingID)+"/transcripts")
}

// GetTranscriptText downloads a transcript as WebVTT and flattens it
func (c *Client) GetTranscriptText(ctx context.Context, conn *entities.PlatformConnection, meetingID, transcriptID string) (string, error) {
	u := c.baseURL + "/me/onlineMeetings/" + url.PathEscape(meetingID) +
		"/transcripts/" + url.PathEscape(transcriptID) + "/content?$format=text/vtt"
	body, err := c.http.Do(ctx, conn, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("get transcript content: %w", err)
	}
	return vtt.ToText(string(body)), nil
}

// SubscriptionLifetime is just under Graph's maximum for calendar and mail resources
const SubscriptionLifetime = 70 * time.Hour

// Subscription is a Graph change notification subscription
type Subscription struct {
	ID                 string    `json:"id,omitempty"`
	ChangeType         string    `json:"changeType,omitempty"`
	NotificationURL    string    `json:"notificationUrl,omitempty"`
	Resource           string    `json:"resource,omitempty"`
	ClientState        string    `json:"clientState,omitempty"`
	ExpirationDateTime time.Time `json:"expirationDateTime"`
}

// Subscribe asks Graph to post changes of resource to notificationURL
func (c *Client) Subscribe(ctx context.Context, conn *entities.PlatformConnection, resource, changeType, notificationURL, clientState string) (*Subscription, error) {
	in := Subscription{
		ChangeType:         changeType,
		NotificationURL:    notificationURL,
		Resource:           resource,
		ClientState:        clientState,
		ExpirationDateTime: time.Now().UTC().Add(SubscriptionLifetime),
	}
	var out Subscription
	if err := c.http.PostJSON(ctx, conn, c.baseURL+"/subscriptions", in, &out); err != nil {
		return nil, fmt.Errorf("create subscription on %s: %w", resource, err)
	}
	return &out, nil
}

// RenewSubscription extends a subscription. A 404 means it already expired.
func (c *Client) RenewSubscription(ctx context.Context, conn *entities.PlatformConnection, id string) error {
	payload, err := json.Marshal(map[string]time.Time{"expirationDateTime": time.Now().UTC().Add(SubscriptionLifetime)})
	if err != nil {
		return err
	}
	_, err = c.http.Do(ctx, conn, http.MethodPatch, c.baseURL+"/subscriptions/"+url.PathEscape(id), payload)
	if httpclient.IsStatus(err, http.StatusNotFound) {
		return entities.ErrConnectionNotFound
	}
	if err != nil {
		return fmt.Errorf("renew subscription %s: %w", id, err)
	}
	return nil
}

// GetMessage fetches one mailbox message
func (c *Client) GetMessage(ctx context.Context, conn *entities.PlatformConnection, messageID string) (*Message, error) {
	var m Message
	u := c.baseURL + "/me/messages/" + url.PathEscape(messageID) + "?$select=id,subject,from,hasAttachments"
	if err := c.http.GetJSON(ctx, conn, u, &m); err != nil {
		if httpclient.IsStatus(err, http.StatusNotFound) {
			return nil, entities.ErrMeetingNotFound
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return &m, nil
}

// ListAttachments returns the file attachments of a message
func (c *Client) ListAttachments(ctx context.Context, conn *entities.PlatformConnection, messageID string) ([]Attachment, error) {
	return listAll[Attachment](ctx, c, conn, c.baseURL+"/me/messages/"+url.PathEscape(messageID)+"/attachments")
}

func listAll[T any](ctx context.Context, c *Client, conn *entities.PlatformConnection, u string) ([]T, error) {
	var out []T
	for u != "" {
		var page listResponse[T]
		if err := c.http.GetJSON(ctx, conn, u, &page); err != nil {
			return nil, err
		}
		out = append(out, page.Value...)
		u = page.NextLink
	}
	return out, nil
}
