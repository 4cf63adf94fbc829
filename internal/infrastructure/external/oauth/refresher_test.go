package oauth

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/cache"
	"github.com/johnquangdev/meeting-sync/pkg/config"
)

type countingProvider struct {
	calls int32
	ttl   time.Duration
}

func (p *countingProvider) Refresh(_ context.Context, current *oauth2.Token) (*oauth2.Token, error) {
	n := atomic.AddInt32(&p.calls, 1)
	return &oauth2.Token{
		AccessToken:  fmt.Sprintf("access-%d", n),
		RefreshToken: current.RefreshToken + "+",
		Expiry:       time.Now().Add(p.ttl),
	}, nil
}

func (p *countingProvider) count() int { return int(atomic.LoadInt32(&p.calls)) }

type memConnections struct {
	mu    sync.Mutex
	byKey map[string]*entities.PlatformConnection
}

func newMemConnections(conns ...*entities.PlatformConnection) *memConnections {
	m := &memConnections{byKey: make(map[string]*entities.PlatformConnection)}
	for _, c := range conns {
		m.byKey[c.Key()] = c
	}
	return m
}

func (m *memConnections) FindByUser(_ context.Context, platform entities.Platform, userID uuid.UUID) (*entities.PlatformConnection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byKey[entities.ConnectionKey(platform, userID)]
	if !ok {
		return nil, entities.ErrConnectionNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memConnections) FindBySubscriptionID(context.Context, string) (*entities.PlatformConnection, error) {
	return nil, entities.ErrConnectionNotFound
}

func (m *memConnections) FindByAccountID(context.Context, entities.Platform, string) (*entities.PlatformConnection, error) {
	return nil, entities.ErrConnectionNotFound
}

func (m *memConnections) ListConnected(context.Context, entities.Platform) ([]*entities.PlatformConnection, error) {
	return nil, nil
}

func (m *memConnections) Save(_ context.Context, c *entities.PlatformConnection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.byKey[c.Key()] = &cp
	return nil
}

func (m *memConnections) UpdateTokens(_ context.Context, c *entities.PlatformConnection) error {
	return m.Save(context.Background(), c)
}

func (m *memConnections) UpdateSubscription(context.Context, uuid.UUID, string) error {
	return nil
}

func (m *memConnections) MarkDisconnected(_ context.Context, platform entities.Platform, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byKey[entities.ConnectionKey(platform, userID)]
	if !ok {
		return entities.ErrConnectionNotFound
	}
	c.IsConnected = false
	return nil
}

func newConn(expiresIn time.Duration) *entities.PlatformConnection {
	exp := time.Now().Add(expiresIn)
	return &entities.PlatformConnection{
		ID:           uuid.New(),
		UserID:       uuid.New(),
		Platform:     entities.PlatformZoom,
		AccessToken:  "initial",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       &exp,
		IsConnected:  true,
	}
}

func newTestRefresher(provider TokenRefresher, conns *memConnections, store cache.Store) *Refresher {
	return NewRefresher(
		map[entities.Platform]TokenRefresher{entities.PlatformZoom: provider},
		conns,
		store,
		config.TokenRefreshConfig{Lead: 5 * time.Minute, CacheTTL: 50 * time.Minute},
		nil,
	)
}

func TestAccessToken_UsesStoredTokenWhileFresh(t *testing.T) {
	conn := newConn(time.Hour)
	provider := &countingProvider{ttl: time.Hour}
	store := cache.NewMemoryStore()
	defer store.Close()
	r := newTestRefresher(provider, newMemConnections(conn), store)

	tok, err := r.AccessToken(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, "initial", tok)
	assert.Zero(t, provider.count())

	cached, err := store.Get(context.Background(), tokenKey(conn.Key()))
	require.NoError(t, err)
	assert.Equal(t, "initial", cached)
}

func TestAccessToken_RefreshesNearExpiry(t *testing.T) {
	conn := newConn(time.Minute)
	conns := newMemConnections(conn)
	provider := &countingProvider{ttl: time.Hour}
	r := newTestRefresher(provider, conns, nil)

	tok, err := r.AccessToken(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok)

	stored, err := conns.FindByUser(context.Background(), conn.Platform, conn.UserID)
	require.NoError(t, err)
	assert.Equal(t, "access-1", stored.AccessToken)
	assert.Equal(t, "refresh+", stored.RefreshToken)
}

func TestForceRefresh_AlwaysHitsProvider(t *testing.T) {
	conn := newConn(time.Hour)
	conns := newMemConnections(conn)
	provider := &countingProvider{ttl: time.Hour}
	store := cache.NewMemoryStore()
	defer store.Close()
	r := newTestRefresher(provider, conns, store)

	first, err := r.ForceRefresh(context.Background(), conn)
	require.NoError(t, err)
	second, err := r.ForceRefresh(context.Background(), conn)
	require.NoError(t, err)

	assert.Equal(t, "access-1", first)
	assert.Equal(t, "access-2", second)
	assert.Equal(t, 2, provider.count())

	tok, err := r.AccessToken(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, "access-2", tok, "cache holds the latest token")
}

func TestForceRefresh_DisconnectedConnection(t *testing.T) {
	conn := newConn(time.Hour)
	conn.IsConnected = false
	r := newTestRefresher(&countingProvider{ttl: time.Hour}, newMemConnections(conn), nil)

	_, err := r.ForceRefresh(context.Background(), conn)
	assert.ErrorIs(t, err, entities.ErrNotConnected)
}

func TestStart_RefreshesBeforeExpiryAndStops(t *testing.T) {
	conn := newConn(time.Minute) // already inside the lead window
	conns := newMemConnections(conn)
	provider := &countingProvider{ttl: time.Hour}
	r := newTestRefresher(provider, conns, nil)

	r.Start(conn)
	assert.True(t, r.Running(conn.Platform, conn.UserID))

	require.Eventually(t, func() bool { return provider.count() == 1 }, time.Second, 5*time.Millisecond)

	r.Stop(context.Background(), conn.Platform, conn.UserID)
	assert.False(t, r.Running(conn.Platform, conn.UserID))

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, provider.count(), "next refresh is an hour away")
}

func TestStart_ReplacesExistingTask(t *testing.T) {
	conn := newConn(time.Hour)
	r := newTestRefresher(&countingProvider{ttl: time.Hour}, newMemConnections(conn), nil)

	r.Start(conn)
	r.Start(conn)

	r.mu.Lock()
	n := len(r.tasks)
	r.mu.Unlock()
	assert.Equal(t, 1, n)

	r.StopAll()
	assert.False(t, r.Running(conn.Platform, conn.UserID))
}

func TestLoop_StopsWhenConnectionIsGone(t *testing.T) {
	conn := newConn(time.Minute)
	conns := newMemConnections(conn)
	require.NoError(t, conns.MarkDisconnected(context.Background(), conn.Platform, conn.UserID))
	provider := &countingProvider{ttl: time.Hour}
	r := newTestRefresher(provider, conns, nil)

	r.Start(conn)
	require.Eventually(t, func() bool { return !r.Running(conn.Platform, conn.UserID) }, time.Second, 5*time.Millisecond)
	assert.Zero(t, provider.count())
}
