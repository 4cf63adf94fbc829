package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/http/middleware"
	connectionUsecase "github.com/johnquangdev/meeting-sync/internal/usecase/connection"
	usecaseErrors "github.com/johnquangdev/meeting-sync/internal/usecase/errors"
	"github.com/johnquangdev/meeting-sync/pkg/config"
	"github.com/johnquangdev/meeting-sync/pkg/jwt"
	"github.com/johnquangdev/meeting-sync/pkg/validator"
)

type fakeMeetingService struct {
	meetings map[uuid.UUID]*entities.Meeting
	retryErr error
}

func (f *fakeMeetingService) GetMeeting(_ context.Context, id uuid.UUID) (*entities.Meeting, error) {
	if m, ok := f.meetings[id]; ok {
		return m, nil
	}
	return nil, entities.ErrMeetingNotFound
}

func (f *fakeMeetingService) ListParticipants(ctx context.Context, id uuid.UUID) ([]*entities.MeetingParticipant, error) {
	if _, err := f.GetMeeting(ctx, id); err != nil {
		return nil, err
	}
	return []*entities.MeetingParticipant{
		entities.NewMeetingParticipant(id, uuid.New(), entities.ParticipantRoleOrganizer),
	}, nil
}

func (f *fakeMeetingService) ListJobs(context.Context, uuid.UUID) ([]*entities.MeetingJob, error) {
	return nil, fmt.Errorf("failed to list jobs: %w", errors.New("pq: connection refused"))
}

func (f *fakeMeetingService) ListTasks(context.Context, uuid.UUID) ([]*entities.MeetingTask, error) {
	return nil, nil
}

func (f *fakeMeetingService) RetryJob(_ context.Context, id uuid.UUID, jobType string) (*entities.MeetingJob, error) {
	if f.retryErr != nil {
		return nil, f.retryErr
	}
	jt, _ := entities.ParseJobType(jobType)
	return entities.NewMeetingJob(id, jt, 3), nil
}

type fakeConnectionService struct {
	registered []connectionUsecase.RegisterInput
	registerE  error
	gone       []string
}

func (f *fakeConnectionService) Register(_ context.Context, in connectionUsecase.RegisterInput) (*entities.PlatformConnection, error) {
	if f.registerE != nil {
		return nil, f.registerE
	}
	f.registered = append(f.registered, in)
	return &entities.PlatformConnection{
		ID:           uuid.New(),
		UserID:       uuid.New(),
		Platform:     in.Platform,
		Email:        "lee@acme.io",
		AccessToken:  in.AccessToken,
		RefreshToken: in.RefreshToken,
		IsConnected:  true,
	}, nil
}

func (f *fakeConnectionService) Disconnect(_ context.Context, platform entities.Platform, userID uuid.UUID) error {
	f.gone = append(f.gone, entities.ConnectionKey(platform, userID))
	return nil
}

func (f *fakeConnectionService) RenewSubscriptions(context.Context, *entities.PlatformConnection) error {
	return nil
}

func (f *fakeConnectionService) Resume(context.Context) (int, error) { return 0, nil }

type adminFixture struct {
	e        *echo.Echo
	token    string
	meetings *fakeMeetingService
	conns    *fakeConnectionService
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.Environment = "test"
	cfg.Server.WebhookConcurrency = 1

	manager := jwt.NewManager("admin-secret", "meeting-sync", time.Hour)
	token, err := manager.Generate("ops@acme.io", jwt.RoleAdmin)
	require.NoError(t, err)

	f := &adminFixture{
		e:        echo.New(),
		token:    token,
		meetings: &fakeMeetingService{meetings: map[uuid.UUID]*entities.Meeting{}},
		conns:    &fakeConnectionService{},
	}
	f.e.Validator = validator.New()
	f.e.HTTPErrorHandler = ErrorHandler(nil)
	NewRouter(cfg,
		NewWebhookHandler(&fakeIngest{}, nil, nil, cfg, nil),
		NewMeetingHandler(f.meetings, nil),
		NewConnectionHandler(f.conns, nil),
		middleware.EchoAdminAuth(manager, nil),
		nil,
	).Setup(f.e)
	return f
}

func (f *adminFixture) call(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+f.token)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var body struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Success)
	require.NoError(t, json.Unmarshal(body.Data, v))
}

func TestAdmin_RequiresToken(t *testing.T) {
	f := newAdminFixture(t)
	f.token = "forged"

	rec := f.call(http.MethodGet, "/v1/meetings/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHENTICATED", errorCode(t, rec))
}

func TestHealthIsPublic(t *testing.T) {
	f := newAdminFixture(t)
	f.token = ""

	rec := f.call(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"environment":"test"`)
}

func TestGetMeeting(t *testing.T) {
	f := newAdminFixture(t)
	m := &entities.Meeting{
		ID:         uuid.New(),
		Platform:   entities.PlatformZoom,
		EventID:    "85746065432",
		Title:      "Weekly sync",
		Transcript: "WEBVTT",
		Status:     entities.MeetingStatusScheduled,
	}
	f.meetings.meetings[m.ID] = m

	rec := f.call(http.MethodGet, "/v1/meetings/"+m.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		ID            string `json:"id"`
		Title         string `json:"title"`
		HasTranscript bool   `json:"has_transcript"`
	}
	decodeData(t, rec, &got)
	assert.Equal(t, m.ID.String(), got.ID)
	assert.Equal(t, "Weekly sync", got.Title)
	assert.True(t, got.HasTranscript)
	assert.NotContains(t, rec.Body.String(), "WEBVTT")
}

func TestGetMeeting_Errors(t *testing.T) {
	f := newAdminFixture(t)

	rec := f.call(http.MethodGet, "/v1/meetings/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_ARGUMENT", errorCode(t, rec))

	rec = f.call(http.MethodGet, "/v1/meetings/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "MEETING_NOT_FOUND", errorCode(t, rec))

	rec = f.call(http.MethodGet, "/v1/meetings/"+uuid.NewString()+"/jobs", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL", errorCode(t, rec))
	assert.NotContains(t, rec.Body.String(), "pq:", "raw causes stay in the logs")
}

func TestListParticipants_Handler(t *testing.T) {
	f := newAdminFixture(t)
	m := &entities.Meeting{ID: uuid.New()}
	f.meetings.meetings[m.ID] = m

	rec := f.call(http.MethodGet, "/v1/meetings/"+m.ID.String()+"/participants", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []map[string]interface{}
	decodeData(t, rec, &got)
	require.Len(t, got, 1)
	assert.Equal(t, string(entities.ParticipantRoleOrganizer), got[0]["role"])
}

func TestRetryJob_Handler(t *testing.T) {
	f := newAdminFixture(t)
	id := uuid.New()

	rec := f.call(http.MethodPost, "/v1/meetings/"+id.String()+"/jobs/summarize/retry", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	f.meetings.retryErr = fmt.Errorf("job %s: %w", "summarize", usecaseErrors.ErrJobNotRetryable)
	rec = f.call(http.MethodPost, "/v1/meetings/"+id.String()+"/jobs/summarize/retry", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "JOB_NOT_RETRYABLE", errorCode(t, rec))

	f.meetings.retryErr = usecaseErrors.ErrInvalidJobType
	rec = f.call(http.MethodPost, "/v1/meetings/"+id.String()+"/jobs/transcribe/retry", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_JOB_TYPE", errorCode(t, rec))
}

func TestRegisterConnection(t *testing.T) {
	f := newAdminFixture(t)
	body := `{"platform":"Teams","access_token":"at-1","refresh_token":"rt-1","token_type":"Bearer","expiry":"2026-10-16T10:30:00Z"}`

	rec := f.call(http.MethodPost, "/v1/connections", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, f.conns.registered, 1)
	in := f.conns.registered[0]
	assert.Equal(t, entities.PlatformTeams, in.Platform)
	assert.Equal(t, "rt-1", in.RefreshToken)
	assert.True(t, in.Expiry.Equal(time.Date(2026, 10, 16, 10, 30, 0, 0, time.UTC)))

	assert.NotContains(t, rec.Body.String(), "at-1", "tokens are never echoed back")
	assert.NotContains(t, rec.Body.String(), "rt-1")
}

func TestRegisterConnection_Rejections(t *testing.T) {
	f := newAdminFixture(t)

	rec := f.call(http.MethodPost, "/v1/connections", `{"platform":"webex","access_token":"a","refresh_token":"r"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.call(http.MethodPost, "/v1/connections", `{"platform":"zoom","access_token":"a"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.conns.registered)

	f.conns.registerE = fmt.Errorf("%w: 401", usecaseErrors.ErrProviderAuth)
	rec = f.call(http.MethodPost, "/v1/connections", `{"platform":"zoom","access_token":"a","refresh_token":"r"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "PROVIDER_AUTH", errorCode(t, rec))
}

func TestDisconnectConnection(t *testing.T) {
	f := newAdminFixture(t)
	userID := uuid.New()

	rec := f.call(http.MethodPost, "/v1/connections/gmeet/"+userID.String()+"/disconnect", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{entities.ConnectionKey(entities.PlatformGmeet, userID)}, f.conns.gone)

	rec = f.call(http.MethodPost, "/v1/connections/gmeet/nobody/disconnect", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
