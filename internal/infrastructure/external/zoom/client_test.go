package zoom

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/external/httpclient"
)

type staticTokens struct{}

func (staticTokens) AccessToken(context.Context, *entities.PlatformConnection) (string, error) {
	return "zoom-token", nil
}

func (staticTokens) ForceRefresh(context.Context, *entities.PlatformConnection) (string, error) {
	return "zoom-token", nil
}

var testConn = &entities.PlatformConnection{UserID: uuid.New(), Platform: entities.PlatformZoom}

func newTestClient(t *testing.T, h http.Handler) (*Client, string) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	hc := httpclient.New(staticTokens{}, httpclient.Options{InitialInterval: time.Millisecond, MaxElapsed: 50 * time.Millisecond}, nil)
	return NewClient(hc, srv.URL), srv.URL
}

func TestGetRecording_NoRecordingYet(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/meetings/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":3301,"message":"This recording does not exist."}`))
	})
	c, _ := newTestClient(t, mux)

	_, err := c.GetRecording(context.Background(), testConn, "abc==")
	assert.ErrorIs(t, err, entities.ErrNoRecording)
}

func TestGetRecording_OtherErrorsSurface(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/meetings/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":300,"message":"Invalid meeting id."}`))
	})
	c, _ := newTestClient(t, mux)

	_, err := c.GetRecording(context.Background(), testConn, "abc==")
	require.Error(t, err)
	assert.NotErrorIs(t, err, entities.ErrNoRecording)
	assert.True(t, httpclient.IsStatus(err, http.StatusBadRequest))
}

func TestGetRecording_FindsTranscript(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/meetings/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/meetings/%252Fab%252F%252Fcd==/recordings", r.URL.EscapedPath())
		_, _ = w.Write([]byte(`{
			"id": 81234567890, "uuid": "/ab//cd==", "topic": "Demo", "duration": 42,
			"recording_files": [
				{"id": "f1", "file_type": "MP4", "recording_type": "shared_screen_with_speaker_view"},
				{"id": "f2", "file_type": "TRANSCRIPT", "recording_type": "audio_transcript", "download_url": "https://zoom.us/rec/download/f2"}
			]
		}`))
	})
	c, _ := newTestClient(t, mux)

	rec, err := c.GetRecording(context.Background(), testConn, "/ab//cd==")
	require.NoError(t, err)
	assert.Equal(t, "81234567890", rec.ID.String())
	f, ok := rec.Transcript()
	require.True(t, ok)
	assert.Equal(t, "f2", f.ID)
}

func TestListParticipants_Paginates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/past_meetings/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("next_page_token") == "" {
			_, _ = w.Write([]byte(`{"participants": [{"name": "A", "user_email": "a@x.io"}], "next_page_token": "p2"}`))
			return
		}
		_, _ = w.Write([]byte(`{"participants": [{"name": "B", "user_email": "b@x.io"}], "next_page_token": ""}`))
	})
	c, _ := newTestClient(t, mux)

	got, err := c.ListParticipants(context.Background(), testConn, "u==")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b@x.io", got[1].UserEmail)
}

func TestDownloadTranscript(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rec/download/f2", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer zoom-token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte("WEBVTT\n\n1\n00:00:00.500 --> 00:00:02.000\nDana: hello\n"))
	})
	c, base := newTestClient(t, mux)

	text, err := c.DownloadTranscript(context.Background(), testConn, RecordingFile{ID: "f2", DownloadURL: base + "/rec/download/f2"})
	require.NoError(t, err)
	assert.Equal(t, "00:00:00.500 --> 00:00:02.000\nDana: hello", text)

	_, err = c.DownloadTranscript(context.Background(), testConn, RecordingFile{ID: "f3"})
	assert.Error(t, err)
}

func TestEscapeUUID(t *testing.T) {
	assert.Equal(t, "abc==", EscapeUUID("abc=="))
	assert.Equal(t, "%252Fabc", EscapeUUID("/abc"))
	assert.Equal(t, "a%252F%252Fb", EscapeUUID("a//b"))
}
