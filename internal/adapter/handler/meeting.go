package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	appErrors "github.com/johnquangdev/meeting-sync/errors"
	"github.com/johnquangdev/meeting-sync/internal/adapter/presenter"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/http/middleware"
	meetingUsecase "github.com/johnquangdev/meeting-sync/internal/usecase/meeting"
)

// Meeting handles the operator endpoints for reconciled meetings
type Meeting struct {
	meetingService meetingUsecase.Service
	logger         *zap.Logger
}

// NewMeetingHandler creates a new meeting handler
func NewMeetingHandler(meetingService meetingUsecase.Service, logger *zap.Logger) *Meeting {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Meeting{
		meetingService: meetingService,
		logger:         logger,
	}
}

func meetingID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, appErrors.ErrInvalidArgument("meeting id must be a UUID")
	}
	return id, nil
}

// GetMeeting handles GET /v1/meetings/:id
func (h *Meeting) GetMeeting(c echo.Context) error {
	id, err := meetingID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	m, err := h.meetingService.GetMeeting(c.Request().Context(), id)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, http.StatusOK, presenter.ToMeetingResponse(m))
}

// ListParticipants handles GET /v1/meetings/:id/participants
func (h *Meeting) ListParticipants(c echo.Context) error {
	id, err := meetingID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	list, err := h.meetingService.ListParticipants(c.Request().Context(), id)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, http.StatusOK, presenter.ToParticipantResponses(list))
}

// ListJobs handles GET /v1/meetings/:id/jobs
func (h *Meeting) ListJobs(c echo.Context) error {
	id, err := meetingID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	jobs, err := h.meetingService.ListJobs(c.Request().Context(), id)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, http.StatusOK, presenter.ToJobResponses(jobs))
}

// ListTasks handles GET /v1/meetings/:id/tasks
func (h *Meeting) ListTasks(c echo.Context) error {
	id, err := meetingID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	tasks, err := h.meetingService.ListTasks(c.Request().Context(), id)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, http.StatusOK, presenter.ToTaskResponses(tasks))
}

// RetryJob handles POST /v1/meetings/:id/jobs/:type/retry
func (h *Meeting) RetryJob(c echo.Context) error {
	id, err := meetingID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	job, err := h.meetingService.RetryJob(c.Request().Context(), id, c.Param("type"))
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	operator := ""
	if claims, ok := middleware.ClaimsFrom(c); ok {
		operator = claims.Subject
	}
	h.logger.Info("Job retry requested",
		zap.String("meeting_id", id.String()),
		zap.String("job_type", string(job.JobType)),
		zap.String("operator", operator),
	)
	return HandleSuccess(h.logger, c, http.StatusAccepted, presenter.ToJobResponse(job))
}
