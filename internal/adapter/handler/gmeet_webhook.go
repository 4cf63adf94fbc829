package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	appErrors "github.com/johnquangdev/meeting-sync/errors"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/external/gmeet"
)

// GmeetConference receives Meet conference events pushed by Pub/Sub. The
// push subscription endpoint carries the shared token as a query parameter.
func (h *WebhookHandler) GmeetConference(c echo.Context) error {
	if !secretMatches(h.cfg.Gmeet.VerificationToken, c.QueryParam("token")) {
		return HandleError(h.logger, c, appErrors.ErrWebhookSignature("gmeet"))
	}

	body, err := readBody(c)
	if err != nil {
		return HandleError(h.logger, c, appErrors.ErrInvalidArgument("unreadable body"))
	}
	var env gmeet.PushEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return HandleError(h.logger, c, appErrors.ErrInvalidArgument("invalid push envelope"))
	}

	h.keep(c, "gmeet", "conference", body)
	if h.seen(c, "gmeet", body) {
		return c.NoContent(http.StatusNoContent)
	}

	h.logger.Info("📥 Meet event received",
		zap.String("type", env.Type()),
		zap.String("message_id", env.Message.MessageID),
	)
	err = h.background(c, "gmeet", "conference", func(ctx context.Context) error {
		return h.ingest.GmeetConference(ctx, &env)
	})
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GmeetCalendar receives Calendar push channel pings. They carry no event
// data; the ingest service pulls the changes since the last cursor.
func (h *WebhookHandler) GmeetCalendar(c echo.Context) error {
	req := c.Request()
	if !secretMatches(h.cfg.Gmeet.VerificationToken, req.Header.Get("X-Goog-Channel-Token")) {
		return HandleError(h.logger, c, appErrors.ErrWebhookSignature("gmeet"))
	}

	channelID := req.Header.Get("X-Goog-Channel-ID")
	state := req.Header.Get("X-Goog-Resource-State")
	if channelID == "" {
		return HandleError(h.logger, c, appErrors.ErrInvalidArgument("missing channel id"))
	}
	if state == "sync" {
		return c.NoContent(http.StatusOK)
	}

	// a redelivered ping keeps its message number
	key := []byte(channelID + "|" + req.Header.Get("X-Goog-Message-Number"))
	if h.seen(c, "gmeet-calendar", key) {
		return c.NoContent(http.StatusOK)
	}

	err := h.background(c, "gmeet", "calendar", func(ctx context.Context) error {
		return h.ingest.GmeetCalendarChange(ctx, channelID, state)
	})
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return c.NoContent(http.StatusOK)
}
