package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	appErrors "github.com/johnquangdev/meeting-sync/errors"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/external/teams"
)

// TeamsEvents receives Graph calendar change notifications
func (h *WebhookHandler) TeamsEvents(c echo.Context) error {
	return h.teams(c, "events", h.ingest.TeamsNotification)
}

// TeamsMail receives Graph notifications for new inbox messages
func (h *WebhookHandler) TeamsMail(c echo.Context) error {
	return h.teams(c, "mail", h.ingest.TeamsMail)
}

func (h *WebhookHandler) teams(c echo.Context, kind string, handle func(context.Context, teams.Notification) error) error {
	// subscription handshake: echo the token as plain text
	if token := c.QueryParam("validationToken"); token != "" {
		return c.String(http.StatusOK, token)
	}

	body, err := readBody(c)
	if err != nil {
		return HandleError(h.logger, c, appErrors.ErrInvalidArgument("unreadable body"))
	}
	var batch teams.NotificationBatch
	if err := json.Unmarshal(body, &batch); err != nil {
		return HandleError(h.logger, c, appErrors.ErrInvalidArgument("invalid notification payload"))
	}

	accepted := make([]teams.Notification, 0, len(batch.Value))
	for _, n := range batch.Value {
		if !secretMatches(h.cfg.Teams.ClientState, n.ClientState) {
			h.logger.Warn("⚠️ Dropped Teams notification with foreign clientState",
				zap.String("subscription_id", n.SubscriptionID),
			)
			continue
		}
		accepted = append(accepted, n)
	}
	// Graph keeps redelivering anything not acknowledged
	if len(accepted) == 0 {
		return c.NoContent(http.StatusAccepted)
	}

	h.keep(c, "teams", kind, body)
	if h.seen(c, "teams", body) {
		return c.NoContent(http.StatusAccepted)
	}

	h.logger.Info("📥 Teams notifications received",
		zap.String("kind", kind),
		zap.Int("count", len(accepted)),
	)
	err = h.background(c, "teams", kind, func(ctx context.Context) error {
		var errs []error
		for _, n := range accepted {
			if err := handle(ctx, n); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return c.NoContent(http.StatusAccepted)
}
