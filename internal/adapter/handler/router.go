package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/johnquangdev/meeting-sync/pkg/config"
)

// Pinger reports whether a backing service is reachable
type Pinger func(ctx context.Context) error

// Router holds all handlers
type Router struct {
	cfg               *config.Config
	webhookHandler    *WebhookHandler
	meetingHandler    *Meeting
	connectionHandler *Connection
	adminMW           echo.MiddlewareFunc
	ping              Pinger
}

// NewRouter creates a new router with all handlers
func NewRouter(cfg *config.Config, webhookHandler *WebhookHandler, meetingHandler *Meeting, connectionHandler *Connection, adminMW echo.MiddlewareFunc, ping Pinger) *Router {
	return &Router{
		cfg:               cfg,
		webhookHandler:    webhookHandler,
		meetingHandler:    meetingHandler,
		connectionHandler: connectionHandler,
		adminMW:           adminMW,
		ping:              ping,
	}
}

// Setup configures all application routes
func (rt *Router) Setup(e *echo.Echo) {
	e.GET("/health", rt.healthCheck)

	rt.setupWebhookRoutes(e)

	v1 := e.Group("/v1", rt.adminMW)
	rt.setupMeetingRoutes(v1)
	rt.setupConnectionRoutes(v1)
	rt.setupArchiveRoutes(v1)
}

// setupWebhookRoutes configures the provider callbacks. The paths are the
// ones registered with each provider and must not change.
func (rt *Router) setupWebhookRoutes(e *echo.Echo) {
	wh := rt.webhookHandler

	// Graph validates a subscription with a POST carrying validationToken
	e.POST("/api/teams/webhook", wh.TeamsEvents)
	e.POST("/api/teams/handleEmailWebhook", wh.TeamsMail)

	e.POST("/webhook", wh.Zoom)

	e.POST("/api/gmeet/webhook", wh.GmeetConference)
	e.POST("/api/gmeet/calendar", wh.GmeetCalendar)
}

// setupMeetingRoutes configures the operator meeting routes
func (rt *Router) setupMeetingRoutes(g *echo.Group) {
	meetings := g.Group("/meetings")
	meetings.GET("/:id", rt.meetingHandler.GetMeeting)
	meetings.GET("/:id/participants", rt.meetingHandler.ListParticipants)
	meetings.GET("/:id/jobs", rt.meetingHandler.ListJobs)
	meetings.GET("/:id/tasks", rt.meetingHandler.ListTasks)
	meetings.POST("/:id/jobs/:type/retry", rt.meetingHandler.RetryJob)
}

// setupConnectionRoutes configures the operator connection routes
func (rt *Router) setupConnectionRoutes(g *echo.Group) {
	connections := g.Group("/connections")
	connections.POST("", rt.connectionHandler.Register)
	connections.POST("/:platform/:user_id/disconnect", rt.connectionHandler.Disconnect)
}

// setupArchiveRoutes configures the webhook archive routes
func (rt *Router) setupArchiveRoutes(g *echo.Group) {
	archive := g.Group("/archive")
	archive.GET("", rt.webhookHandler.ListArchive)
	archive.POST("/replay", rt.webhookHandler.Replay)
}

// healthCheck returns health status
func (rt *Router) healthCheck(c echo.Context) error {
	status, code := "ok", http.StatusOK
	if rt.ping != nil {
		if err := rt.ping(c.Request().Context()); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}
	return c.JSON(code, map[string]interface{}{
		"status":      status,
		"environment": rt.cfg.Server.Environment,
	})
}
