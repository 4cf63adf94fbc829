package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	appErrors "github.com/johnquangdev/meeting-sync/errors"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/external/zoom"
	"github.com/johnquangdev/meeting-sync/pkg/ai"
)

// zoomMaxSkew rejects replays of captured deliveries
const zoomMaxSkew = 5 * time.Minute

type zoomValidationResponse struct {
	PlainToken     string `json:"plainToken"`
	EncryptedToken string `json:"encryptedToken"`
}

// Zoom receives Zoom webhooks, including the endpoint validation challenge
func (h *WebhookHandler) Zoom(c echo.Context) error {
	body, err := readBody(c)
	if err != nil {
		return HandleError(h.logger, c, appErrors.ErrInvalidArgument("unreadable body"))
	}
	var ev zoom.WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return HandleError(h.logger, c, appErrors.ErrInvalidArgument("invalid event payload"))
	}

	if ev.Event == zoom.EventURLValidation {
		plain := ev.Payload.PlainToken
		if plain == "" || h.cfg.Zoom.WebhookSecretToken == "" {
			return HandleError(h.logger, c, appErrors.ErrInvalidArgument("cannot answer url validation"))
		}
		return c.JSON(http.StatusOK, zoomValidationResponse{
			PlainToken:     plain,
			EncryptedToken: ai.Sign(h.cfg.Zoom.WebhookSecretToken, []byte(plain)),
		})
	}

	if !h.verifyZoom(c.Request(), body) {
		h.logger.Warn("⚠️ Rejected Zoom webhook",
			zap.String("event", ev.Event),
			zap.String("account_id", ev.Payload.AccountID),
		)
		return HandleError(h.logger, c, appErrors.ErrWebhookSignature("zoom"))
	}

	h.keep(c, "zoom", ev.Event, body)
	if h.seen(c, "zoom", body) {
		return c.NoContent(http.StatusOK)
	}

	h.logger.Info("📥 Zoom event received",
		zap.String("event", ev.Event),
		zap.String("account_id", ev.Payload.AccountID),
	)
	err = h.background(c, "zoom", ev.Event, func(ctx context.Context) error {
		return h.ingest.ZoomEvent(ctx, &ev)
	})
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return c.NoContent(http.StatusOK)
}

// verifyZoom checks the v0 HMAC signature and its timestamp. Apps created
// before signed webhooks send the legacy verification token instead.
func (h *WebhookHandler) verifyZoom(r *http.Request, body []byte) bool {
	secret := h.cfg.Zoom.WebhookSecretToken
	if secret == "" {
		return secretMatches(h.cfg.Zoom.VerificationToken, r.Header.Get("Authorization"))
	}

	ts := r.Header.Get("x-zm-request-timestamp")
	if !ai.VerifyZoomSignature(secret, ts, body, r.Header.Get("x-zm-signature")) {
		return false
	}
	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	skew := h.now().Sub(time.Unix(sec, 0))
	if skew < 0 {
		skew = -skew
	}
	return skew <= zoomMaxSkew
}
