package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	appErrors "github.com/johnquangdev/meeting-sync/errors"
	connectionDTO "github.com/johnquangdev/meeting-sync/internal/adapter/dto/connection"
	"github.com/johnquangdev/meeting-sync/internal/adapter/presenter"
	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
	connectionUsecase "github.com/johnquangdev/meeting-sync/internal/usecase/connection"
)

// Connection handles the operator endpoints for platform connections
type Connection struct {
	connectionService connectionUsecase.Service
	logger            *zap.Logger
}

// NewConnectionHandler creates a new connection handler
func NewConnectionHandler(connectionService connectionUsecase.Service, logger *zap.Logger) *Connection {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Connection{
		connectionService: connectionService,
		logger:            logger,
	}
}

// Register handles POST /v1/connections
func (h *Connection) Register(c echo.Context) error {
	var req connectionDTO.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, appErrors.ErrInvalidArgument("invalid request body"))
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, appErrors.ErrInvalidArgument(err.Error()))
	}
	platform, _ := entities.ParsePlatform(req.Platform)

	conn, err := h.connectionService.Register(c.Request().Context(), connectionUsecase.RegisterInput{
		Platform:     platform,
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		TokenType:    req.TokenType,
		Expiry:       req.Expiry,
	})
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, http.StatusCreated, presenter.ToConnectionResponse(conn))
}

// Disconnect handles POST /v1/connections/:platform/:user_id/disconnect
func (h *Connection) Disconnect(c echo.Context) error {
	var params connectionDTO.ConnectionParams
	if err := (&echo.DefaultBinder{}).BindPathParams(c, &params); err != nil {
		return HandleError(h.logger, c, appErrors.ErrInvalidArgument("invalid path"))
	}
	if err := c.Validate(&params); err != nil {
		return HandleError(h.logger, c, appErrors.ErrInvalidArgument(err.Error()))
	}
	platform, _ := entities.ParsePlatform(params.Platform)
	userID := uuid.MustParse(params.UserID)

	if err := h.connectionService.Disconnect(c.Request().Context(), platform, userID); err != nil {
		return HandleError(h.logger, c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
