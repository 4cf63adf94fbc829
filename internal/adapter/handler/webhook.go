package handler

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/johnquangdev/meeting-sync/internal/infrastructure/cache"
	ingestUsecase "github.com/johnquangdev/meeting-sync/internal/usecase/ingest"
	"github.com/johnquangdev/meeting-sync/pkg/config"
)

const (
	// providers redeliver when they miss an acknowledgement
	dedupeTTL = 10 * time.Minute

	// bounds the background work started by one notification
	backgroundTimeout = 5 * time.Minute

	maxWebhookBody = 4 << 20

	dedupeKeyCtx = "webhook_dedupe_key"
)

// Archiver keeps a copy of raw webhook bodies
type Archiver interface {
	Archive(ctx context.Context, platform, kind string, body []byte) (string, error)
}

// WebhookHandler receives provider notifications, acknowledges them quickly
// and hands the work to the ingest service in the background
type WebhookHandler struct {
	ingest  ingestUsecase.Service
	archive Archiver
	reader  ArchiveReader
	store   cache.Store
	cfg     *config.Config
	logger  *zap.Logger

	sem *semaphore.Weighted
	wg  sync.WaitGroup
	now func() time.Time
}

// NewWebhookHandler creates a new webhook handler. archive and store may be
// nil, which disables archiving and redelivery dedupe.
func NewWebhookHandler(ingest ingestUsecase.Service, archive Archiver, store cache.Store, cfg *config.Config, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := int64(cfg.Server.WebhookConcurrency)
	if limit < 1 {
		limit = 1
	}
	return &WebhookHandler{
		ingest:  ingest,
		archive: archive,
		store:   store,
		cfg:     cfg,
		logger:  logger,
		sem:     semaphore.NewWeighted(limit),
		now:     time.Now,
	}
}

// WithReader enables the operator archive routes
func (h *WebhookHandler) WithReader(r ArchiveReader) *WebhookHandler {
	h.reader = r
	return h
}

// Wait blocks until background work finishes or ctx is done
func (h *WebhookHandler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func readBody(c echo.Context) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxWebhookBody {
		return nil, fmt.Errorf("body exceeds %d bytes", maxWebhookBody)
	}
	return body, nil
}

// secretMatches compares a shared secret in constant time. An unset secret
// matches nothing.
func secretMatches(want, got string) bool {
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}

// keep archives the raw body when archiving is enabled. Failures only cost
// the copy.
func (h *WebhookHandler) keep(c echo.Context, platform, kind string, body []byte) {
	if h.archive == nil {
		return
	}
	name, err := h.archive.Archive(c.Request().Context(), platform, kind, body)
	if err != nil {
		h.logger.Warn("⚠️ Failed to archive webhook",
			zap.String("platform", platform),
			zap.String("kind", kind),
			zap.Error(err),
		)
		return
	}
	h.logger.Debug("Webhook archived", zap.String("object", name))
}

// seen reports whether an identical body was delivered recently
func (h *WebhookHandler) seen(c echo.Context, platform string, body []byte) bool {
	if h.store == nil {
		return false
	}
	sum := sha256.Sum256(body)
	key := "webhook:" + platform + ":" + hex.EncodeToString(sum[:])
	first, err := h.store.SetNX(c.Request().Context(), key, "1", dedupeTTL)
	if err != nil {
		h.logger.Warn("⚠️ Webhook dedupe unavailable", zap.String("platform", platform), zap.Error(err))
		return false
	}
	if !first {
		h.logger.Info("Duplicate webhook ignored", zap.String("platform", platform))
		return true
	}
	c.Set(dedupeKeyCtx, key)
	return false
}

// forget drops the dedupe mark of a delivery we did not take, so the
// provider's retry is processed
func (h *WebhookHandler) forget(c echo.Context) {
	key, ok := c.Get(dedupeKeyCtx).(string)
	if !ok || h.store == nil {
		return
	}
	if err := h.store.Delete(c.Request().Context(), key); err != nil {
		h.logger.Warn("⚠️ Failed to clear webhook dedupe key", zap.String("key", key), zap.Error(err))
	}
}

// background runs fn after the response is written. The request context
// keeps its values but not its cancellation.
func (h *WebhookHandler) background(c echo.Context, platform, kind string, fn func(ctx context.Context) error) error {
	// never wait for a slot: providers give up on slow acknowledgements
	if !h.sem.TryAcquire(1) {
		h.forget(c)
		h.logger.Warn("⚠️ Webhook rejected, background work saturated",
			zap.String("platform", platform),
			zap.String("kind", kind),
		)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Too many notifications in flight")
	}

	parent := context.WithoutCancel(c.Request().Context())
	reqID := getRequestID(c)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer h.sem.Release(1)

		ctx, cancel := context.WithTimeout(parent, backgroundTimeout)
		defer cancel()

		start := time.Now()
		err := run(ctx, fn)
		fields := []zap.Field{
			zap.String("platform", platform),
			zap.String("kind", kind),
			zap.String("request_id", reqID),
			zap.Duration("took", time.Since(start)),
		}
		if err != nil {
			h.logger.Error("❌ Webhook processing failed", append(fields, zap.Error(err))...)
			return
		}
		h.logger.Info("✅ Webhook processed", fields...)
	}()
	return nil
}

func run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic recovered: %v", p)
		}
	}()
	return fn(ctx)
}
