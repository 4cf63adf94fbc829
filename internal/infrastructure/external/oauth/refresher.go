package oauth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
	"github.com/johnquangdev/meeting-sync/internal/domain/repositories"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/cache"
	"github.com/johnquangdev/meeting-sync/pkg/config"
)

// TokenRefresher exchanges a refresh token for a new token
type TokenRefresher interface {
	Refresh(ctx context.Context, current *oauth2.Token) (*oauth2.Token, error)
}

type refreshTask struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Refresher keeps the access token of every connected user fresh.
// There is at most one background task per platform/user pair.
type Refresher struct {
	providers map[entities.Platform]TokenRefresher
	conns     repositories.ConnectionRepository
	cache     cache.Store
	lead      time.Duration
	cacheTTL  time.Duration
	// retryDelay is the wait after a failed background refresh
	retryDelay time.Duration
	logger     *zap.Logger

	mu    sync.Mutex
	tasks map[string]*refreshTask
	locks map[string]*sync.Mutex
}

// NewRefresher creates a refresher. cache may be nil.
func NewRefresher(
	providers map[entities.Platform]TokenRefresher,
	conns repositories.ConnectionRepository,
	store cache.Store,
	cfg config.TokenRefreshConfig,
	logger *zap.Logger,
) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Lead <= 0 {
		cfg.Lead = 5 * time.Minute
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 50 * time.Minute
	}
	return &Refresher{
		providers:  providers,
		conns:      conns,
		cache:      store,
		lead:       cfg.Lead,
		cacheTTL:   cfg.CacheTTL,
		retryDelay: time.Minute,
		logger:     logger,
		tasks:      make(map[string]*refreshTask),
		locks:      make(map[string]*sync.Mutex),
	}
}

// RefreshersFrom adapts the platform providers to the refresher contract
func RefreshersFrom(providers map[entities.Platform]*Provider) map[entities.Platform]TokenRefresher {
	out := make(map[entities.Platform]TokenRefresher, len(providers))
	for p, prov := range providers {
		out[p] = prov
	}
	return out
}

// Start schedules background refresh for conn, replacing any running task
func (r *Refresher) Start(conn *entities.PlatformConnection) {
	key := conn.Key()
	ctx, cancel := context.WithCancel(context.Background())
	task := &refreshTask{cancel: cancel, done: make(chan struct{})}

	r.mu.Lock()
	old := r.tasks[key]
	r.tasks[key] = task
	r.mu.Unlock()

	if old != nil {
		old.cancel()
		<-old.done
	}

	go r.loop(ctx, task, conn.Platform, conn.UserID, conn.Expiry)

	r.logger.Info("🔄 Token refresh scheduled",
		zap.String("platform", string(conn.Platform)),
		zap.String("user_id", conn.UserID.String()),
	)
}

// Stop cancels the task of one connection and drops its cached token
func (r *Refresher) Stop(ctx context.Context, platform entities.Platform, userID uuid.UUID) {
	key := entities.ConnectionKey(platform, userID)

	r.mu.Lock()
	task := r.tasks[key]
	delete(r.tasks, key)
	r.mu.Unlock()

	if task != nil {
		task.cancel()
		<-task.done
	}
	if r.cache != nil {
		if err := r.cache.Delete(ctx, tokenKey(key)); err != nil {
			r.logger.Warn("⚠️ Failed to drop cached token", zap.String("key", key), zap.Error(err))
		}
	}
}

// StopAll cancels every task; used on shutdown
func (r *Refresher) StopAll() {
	r.mu.Lock()
	tasks := r.tasks
	r.tasks = make(map[string]*refreshTask)
	r.mu.Unlock()

	for _, t := range tasks {
		t.cancel()
	}
	for _, t := range tasks {
		<-t.done
	}
	r.logger.Info("✅ Token refresh tasks stopped", zap.Int("count", len(tasks)))
}

// Running reports whether a task exists for the platform/user pair
func (r *Refresher) Running(platform entities.Platform, userID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tasks[entities.ConnectionKey(platform, userID)]
	return ok
}

// AccessToken returns a usable access token, refreshing when the stored one is near expiry
func (r *Refresher) AccessToken(ctx context.Context, conn *entities.PlatformConnection) (string, error) {
	key := conn.Key()
	if r.cache != nil {
		if tok, err := r.cache.Get(ctx, tokenKey(key)); err == nil && tok != "" {
			return tok, nil
		}
	}

	if conn.AccessToken != "" && r.fresh(conn.Expiry) {
		r.remember(ctx, key, conn.AccessToken, conn.Expiry)
		return conn.AccessToken, nil
	}

	updated, err := r.refresh(ctx, conn.Platform, conn.UserID, false)
	if err != nil {
		return "", err
	}
	return updated.AccessToken, nil
}

// ForceRefresh refreshes immediately. Clients call it after a 401.
func (r *Refresher) ForceRefresh(ctx context.Context, conn *entities.PlatformConnection) (string, error) {
	updated, err := r.refresh(ctx, conn.Platform, conn.UserID, true)
	if err != nil {
		return "", err
	}
	return updated.AccessToken, nil
}

func (r *Refresher) fresh(expiry *time.Time) bool {
	return expiry == nil || time.Until(*expiry) > r.lead
}

// refresh serializes refreshes per connection. Without force, a token that
// another caller just refreshed is reused.
func (r *Refresher) refresh(ctx context.Context, platform entities.Platform, userID uuid.UUID, force bool) (*entities.PlatformConnection, error) {
	key := entities.ConnectionKey(platform, userID)
	lock := r.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	conn, err := r.conns.FindByUser(ctx, platform, userID)
	if err != nil {
		return nil, err
	}
	if !conn.IsConnected {
		return nil, entities.ErrNotConnected
	}
	if !force && conn.AccessToken != "" && r.fresh(conn.Expiry) {
		r.remember(ctx, key, conn.AccessToken, conn.Expiry)
		return conn, nil
	}

	provider, ok := r.providers[platform]
	if !ok {
		return nil, fmt.Errorf("%w: no oauth provider for %s", entities.ErrUnsupportedPlatform, platform)
	}

	token, err := provider.Refresh(ctx, conn.Token())
	if err != nil {
		return nil, err
	}
	conn.ApplyToken(token)
	if err := r.conns.UpdateTokens(ctx, conn); err != nil {
		return nil, err
	}
	r.remember(ctx, key, conn.AccessToken, conn.Expiry)

	r.logger.Info("🔑 Token refreshed",
		zap.String("platform", string(platform)),
		zap.String("user_id", userID.String()),
		zap.Bool("forced", force),
	)
	return conn, nil
}

func (r *Refresher) remember(ctx context.Context, key, token string, expiry *time.Time) {
	if r.cache == nil || token == "" {
		return
	}
	ttl := r.cacheTTL
	if expiry != nil {
		if until := time.Until(*expiry) - r.lead; until < ttl {
			ttl = until
		}
	}
	if ttl <= 0 {
		return
	}
	if err := r.cache.Set(ctx, tokenKey(key), token, ttl); err != nil {
		r.logger.Warn("⚠️ Failed to cache token", zap.String("key", key), zap.Error(err))
	}
}

func (r *Refresher) lockFor(key string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[key]
	if !ok {
		l = &sync.Mutex{}
		r.locks[key] = l
	}
	return l
}

func (r *Refresher) loop(ctx context.Context, task *refreshTask, platform entities.Platform, userID uuid.UUID, expiry *time.Time) {
	defer close(task.done)

	for {
		wait := r.cacheTTL
		if expiry != nil {
			wait = time.Until(*expiry) - r.lead
		}
		if wait < 0 {
			wait = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		conn, err := r.refresh(ctx, platform, userID, true)
		switch {
		case err == nil:
			expiry = conn.Expiry
			continue
		case ctx.Err() != nil:
			return
		case errors.Is(err, entities.ErrNotConnected), errors.Is(err, entities.ErrConnectionNotFound):
			r.logger.Info("⏹️ Connection gone, stopping token refresh",
				zap.String("platform", string(platform)),
				zap.String("user_id", userID.String()),
			)
			r.mu.Lock()
			if r.tasks[entities.ConnectionKey(platform, userID)] == task {
				delete(r.tasks, entities.ConnectionKey(platform, userID))
			}
			r.mu.Unlock()
			return
		}

		r.logger.Error("❌ Token refresh failed",
			zap.String("platform", string(platform)),
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		retryAt := time.Now().Add(r.retryDelay + r.lead)
		expiry = &retryAt
	}
}

func tokenKey(connKey string) string {
	return "oauth:token:" + connKey
}
