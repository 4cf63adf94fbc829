package handler

import (
	stdErrors "errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-sync/errors"
	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
	usecaseErrors "github.com/johnquangdev/meeting-sync/internal/usecase/errors"
)

// Response shapes
type success struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

type errs struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Code    errors.ErrorCode  `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}

// getRequestID tries to read X-Request-ID from the request
func getRequestID(c echo.Context) string {
	if c == nil || c.Request() == nil {
		return ""
	}
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return c.Request().Header.Get(echo.HeaderXRequestID)
}

// HandleSuccess writes a standardized success response
func HandleSuccess(logger *zap.Logger, c echo.Context, status int, data interface{}) error {
	if logger != nil {
		logger.Debug("http.response.success",
			zap.String("request_id", getRequestID(c)),
			zap.String("path", c.Path()),
		)
	}
	return c.JSON(status, success{Success: true, Data: data})
}

// HandleError maps err to an AppError, logs it and writes the error body.
// Raw causes are logged but never sent to the caller.
func HandleError(logger *zap.Logger, c echo.Context, err error) error {
	appErr := mapError(c, err)

	if logger != nil {
		fields := []zap.Field{
			zap.String("request_id", getRequestID(c)),
			zap.String("path", c.Path()),
			zap.String("app_code", appErr.Code.String()),
			zap.Error(err),
		}
		if appErr.HTTPCode >= http.StatusInternalServerError {
			logger.Error("http.response.error", fields...)
		} else {
			logger.Warn("http.response.error", fields...)
		}
	}

	return c.JSON(appErr.HTTPCode, errs{
		Error:   appErr.Message,
		Code:    appErr.Code,
		Details: appErr.Details,
	})
}

func mapError(c echo.Context, err error) errors.AppError {
	var appErr errors.AppError
	if stdErrors.As(err, &appErr) {
		return appErr
	}
	var httpErr *echo.HTTPError
	if stdErrors.As(err, &httpErr) {
		msg, _ := httpErr.Message.(string)
		if msg == "" {
			msg = http.StatusText(httpErr.Code)
		}
		return errors.AppError{HTTPCode: httpErr.Code, Code: codeForStatus(httpErr.Code), Message: msg}
	}

	switch {
	case stdErrors.Is(err, entities.ErrMeetingNotFound):
		return errors.ErrMeetingNotFound(c.Param("id"))
	case stdErrors.Is(err, entities.ErrConnectionNotFound):
		return errors.ErrConnectionNotFound(c.Param("platform"), c.Param("user_id"))
	case stdErrors.Is(err, entities.ErrJobNotFound):
		return errors.ErrJobNotFound(c.Param("id"), c.Param("type"))
	case stdErrors.Is(err, usecaseErrors.ErrInvalidJobType):
		return errors.ErrInvalidJobType(c.Param("type"))
	case stdErrors.Is(err, usecaseErrors.ErrJobNotRetryable):
		return errors.ErrJobNotRetryable(c.Param("id"), c.Param("type"))
	case stdErrors.Is(err, entities.ErrUnsupportedPlatform):
		return errors.ErrInvalidArgument("platform is not configured")
	case stdErrors.Is(err, usecaseErrors.ErrNoRefreshToken):
		return errors.ErrInvalidArgument(usecaseErrors.ErrNoRefreshToken.Error())
	case stdErrors.Is(err, usecaseErrors.ErrProviderAuth):
		platform := c.Param("platform")
		if platform == "" {
			platform = "the provider"
		}
		return errors.ErrProviderAuth(platform, err)
	case stdErrors.Is(err, usecaseErrors.ErrInvalidInput):
		return errors.ErrInvalidArgument(err.Error())
	default:
		return errors.ErrInternal(err)
	}
}

func codeForStatus(status int) errors.ErrorCode {
	switch {
	case status == http.StatusUnauthorized:
		return errors.ErrorCode_UNAUTHENTICATED
	case status == http.StatusForbidden:
		return errors.ErrorCode_PERMISSION_DENIED
	case status == http.StatusNotFound, status == http.StatusMethodNotAllowed:
		return errors.ErrorCode_NOT_FOUND
	case status >= http.StatusInternalServerError:
		return errors.ErrorCode_INTERNAL
	default:
		return errors.ErrorCode_INVALID_ARGUMENT
	}
}

// ErrorHandler renders errors escaping handlers and middleware in the
// same shape as HandleError
func ErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(mapError(c, err).HTTPCode)
			return
		}
		_ = HandleError(logger, c, err)
	}
}
