package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	appErrors "github.com/johnquangdev/meeting-sync/errors"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/external/gmeet"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/external/teams"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/external/zoom"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/storage"
)

// ArchiveReader reads archived webhook bodies back
type ArchiveReader interface {
	ListFiles(ctx context.Context, prefix string) ([]string, error)
	Fetch(ctx context.Context, objectName string) ([]byte, error)
}

var _ ArchiveReader = (*storage.MinIOClient)(nil)

type replayRequest struct {
	Object string `json:"object" validate:"required"`
}

// ListArchive handles GET /v1/archive?prefix=webhooks/zoom/
func (h *WebhookHandler) ListArchive(c echo.Context) error {
	if h.reader == nil {
		return HandleError(h.logger, c, appErrors.ErrNotFound("webhook archive"))
	}
	prefix := c.QueryParam("prefix")
	if prefix == "" {
		prefix = "webhooks/"
	}

	files, err := h.reader.ListFiles(c.Request().Context(), prefix)
	if err != nil {
		return HandleError(h.logger, c, appErrors.ErrStorageFailed("list", err))
	}
	return HandleSuccess(h.logger, c, http.StatusOK, map[string]interface{}{
		"files":  files,
		"count":  len(files),
		"prefix": prefix,
	})
}

// Replay handles POST /v1/archive/replay. The archived body was verified
// when it first arrived, so it goes straight to ingestion and the result is
// returned to the operator.
func (h *WebhookHandler) Replay(c echo.Context) error {
	if h.reader == nil {
		return HandleError(h.logger, c, appErrors.ErrNotFound("webhook archive"))
	}
	var req replayRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, appErrors.ErrInvalidArgument("invalid request body"))
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, appErrors.ErrInvalidArgument(err.Error()))
	}
	platform, kind, ok := storage.ParseObjectName(req.Object)
	if !ok {
		return HandleError(h.logger, c, appErrors.ErrInvalidArgument("not an archived webhook"))
	}

	ctx := c.Request().Context()
	body, err := h.reader.Fetch(ctx, req.Object)
	if err != nil {
		return HandleError(h.logger, c, appErrors.ErrStorageFailed("fetch", err))
	}

	if err := h.replay(ctx, platform, kind, body); err != nil {
		if errors.Is(err, errUnknownArchive) {
			return HandleError(h.logger, c, appErrors.ErrInvalidArgument(err.Error()))
		}
		return HandleError(h.logger, c, err)
	}

	h.logger.Info("🔁 Webhook replayed",
		zap.String("object", req.Object),
		zap.String("platform", platform),
		zap.String("kind", kind),
	)
	return HandleSuccess(h.logger, c, http.StatusOK, map[string]string{"object": req.Object})
}

var errUnknownArchive = errors.New("archived payload cannot be replayed")

func (h *WebhookHandler) replay(ctx context.Context, platform, kind string, body []byte) error {
	switch {
	case platform == "teams":
		var batch teams.NotificationBatch
		if err := json.Unmarshal(body, &batch); err != nil {
			return fmt.Errorf("%w: %v", errUnknownArchive, err)
		}
		handle := h.ingest.TeamsNotification
		if kind == "mail" {
			handle = h.ingest.TeamsMail
		}
		var errs []error
		for _, n := range batch.Value {
			if err := handle(ctx, n); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)

	case platform == "zoom" && strings.Contains(kind, "."):
		var ev zoom.WebhookEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("%w: %v", errUnknownArchive, err)
		}
		return h.ingest.ZoomEvent(ctx, &ev)

	case platform == "gmeet" && kind == "conference":
		var env gmeet.PushEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			return fmt.Errorf("%w: %v", errUnknownArchive, err)
		}
		return h.ingest.GmeetConference(ctx, &env)
	}
	return fmt.Errorf("%w: %s/%s", errUnknownArchive, platform, kind)
}
