package connection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
	"github.com/johnquangdev/meeting-sync/internal/domain/repositories"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/cache"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/external/gmeet"
	usecaseErrors "github.com/johnquangdev/meeting-sync/internal/usecase/errors"
	"github.com/johnquangdev/meeting-sync/pkg/config"
)

const (
	teamsEventsResource = "me/events"
	teamsMailResource   = "me/mailFolders('Inbox')/messages"

	// the connection row holds the events subscription; the mail
	// subscription id is kept in the cache
	mailSubTTL = 30 * 24 * time.Hour
)

// Deps holds the collaborators of the connection service
type Deps struct {
	Users       repositories.UserRepository
	Connections repositories.ConnectionRepository
	Providers   map[entities.Platform]AccountReader
	Tokens      TokenKeeper
	Teams       TeamsSubscriber
	Gmeet       GmeetWatcher
	Store       cache.Store
	Config      *config.Config
	Logger      *zap.Logger
}

// ConnectionService implements Service
type ConnectionService struct {
	users     repositories.UserRepository
	conns     repositories.ConnectionRepository
	providers map[entities.Platform]AccountReader
	tokens    TokenKeeper
	teams     TeamsSubscriber
	gmeet     GmeetWatcher
	store     cache.Store
	cfg       *config.Config
	logger    *zap.Logger
	now       func() time.Time
}

var _ Service = (*ConnectionService)(nil)

// NewConnectionService creates a new connection service
func NewConnectionService(d Deps) *ConnectionService {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConnectionService{
		users:     d.Users,
		conns:     d.Connections,
		providers: d.Providers,
		tokens:    d.Tokens,
		teams:     d.Teams,
		gmeet:     d.Gmeet,
		store:     d.Store,
		cfg:       d.Config,
		logger:    logger,
		now:       time.Now,
	}
}

// Register stores the connection behind a token. The account is read from
// the provider, linked to the user with the same email (created on first
// sight), and its webhooks are registered.
func (s *ConnectionService) Register(ctx context.Context, in RegisterInput) (*entities.PlatformConnection, error) {
	provider, ok := s.providers[in.Platform]
	if !ok {
		return nil, entities.ErrUnsupportedPlatform
	}
	if in.RefreshToken == "" {
		return nil, usecaseErrors.ErrNoRefreshToken
	}

	token := in.Token()
	acct, err := provider.GetAccount(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", usecaseErrors.ErrProviderAuth, err)
	}
	if acct.Email == "" {
		return nil, fmt.Errorf("%w: account has no email", usecaseErrors.ErrProviderAuth)
	}
	platform := in.Platform

	user, err := s.userFor(ctx, platform, acct.Email, acct.Name)
	if err != nil {
		return nil, err
	}

	conn := &entities.PlatformConnection{
		UserID:    user.ID,
		Platform:  platform,
		AccountID: acct.ID,
		Email:     entities.NormalizeEmail(acct.Email),
	}
	// reconnecting keeps the row and its subscription
	if prev, err := s.conns.FindByUser(ctx, platform, user.ID); err == nil {
		conn.ID = prev.ID
		conn.SubscriptionID = prev.SubscriptionID
	} else if !errors.Is(err, entities.ErrConnectionNotFound) {
		return nil, fmt.Errorf("failed to load connection: %w", err)
	}
	conn.ApplyToken(token)

	if err := s.conns.Save(ctx, conn); err != nil {
		return nil, err
	}
	s.tokens.Start(conn)

	s.logger.Info("✅ Platform connected",
		zap.String("platform", string(platform)),
		zap.String("user_id", user.ID.String()),
		zap.String("account_id", acct.ID),
	)

	if err := s.RenewSubscriptions(ctx, conn); err != nil {
		// the poller retries on its next round
		s.logger.Warn("⚠️ Failed to register webhooks",
			zap.String("platform", string(platform)),
			zap.String("user_id", user.ID.String()),
			zap.Error(err),
		)
	}
	return conn, nil
}

func (s *ConnectionService) userFor(ctx context.Context, platform entities.Platform, email, name string) (*entities.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, entities.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	stub := entities.NewInviteStub(email, name)
	stub.Provider = entities.UserProvider(platform)
	stub.InviteToken = nil
	if _, err := s.users.CreateIfAbsent(ctx, stub); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	// a concurrent callback or attendee sync may have won the insert
	user, err = s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// Disconnect stops token refresh and marks the connection inactive
func (s *ConnectionService) Disconnect(ctx context.Context, platform entities.Platform, userID uuid.UUID) error {
	if err := s.conns.MarkDisconnected(ctx, platform, userID); err != nil {
		return err
	}
	s.tokens.Stop(ctx, platform, userID)
	if platform == entities.PlatformTeams && s.store != nil {
		if err := s.store.Delete(ctx, mailSubKey(userID)); err != nil && !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("Failed to forget mail subscription", zap.String("user_id", userID.String()), zap.Error(err))
		}
	}
	s.logger.Info("Platform disconnected",
		zap.String("platform", string(platform)),
		zap.String("user_id", userID.String()),
	)
	return nil
}

// RenewSubscriptions extends or recreates the push registrations of one
// connection. Zoom webhooks are configured per app and need none.
func (s *ConnectionService) RenewSubscriptions(ctx context.Context, conn *entities.PlatformConnection) error {
	switch conn.Platform {
	case entities.PlatformTeams:
		if s.teams == nil {
			return nil
		}
		return errors.Join(s.renewTeamsEvents(ctx, conn), s.renewTeamsMail(ctx, conn))
	case entities.PlatformGmeet:
		if s.gmeet == nil {
			return nil
		}
		return errors.Join(s.watchCalendar(ctx, conn), s.renewMeetEvents(ctx, conn))
	default:
		return nil
	}
}

func (s *ConnectionService) callback(path string) string {
	return strings.TrimRight(s.cfg.Server.PublicURL, "/") + path
}

func (s *ConnectionService) renewTeamsEvents(ctx context.Context, conn *entities.PlatformConnection) error {
	if conn.SubscriptionID != "" {
		err := s.teams.RenewSubscription(ctx, conn, conn.SubscriptionID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, entities.ErrConnectionNotFound) {
			return err
		}
	}

	sub, err := s.teams.Subscribe(ctx, conn, teamsEventsResource, "created,updated,deleted",
		s.callback("/api/teams/webhook"), s.cfg.Teams.ClientState)
	if err != nil {
		return err
	}
	if err := s.conns.UpdateSubscription(ctx, conn.ID, sub.ID); err != nil {
		return err
	}
	conn.SubscriptionID = sub.ID
	return nil
}

func (s *ConnectionService) renewTeamsMail(ctx context.Context, conn *entities.PlatformConnection) error {
	if s.store == nil {
		return nil
	}
	key := mailSubKey(conn.UserID)
	id, err := s.store.Get(ctx, key)
	if err != nil && !errors.Is(err, cache.ErrMiss) {
		return fmt.Errorf("failed to load mail subscription: %w", err)
	}
	if id != "" {
		err := s.teams.RenewSubscription(ctx, conn, id)
		if err == nil {
			return s.store.Set(ctx, key, id, mailSubTTL)
		}
		if !errors.Is(err, entities.ErrConnectionNotFound) {
			return err
		}
	}

	sub, err := s.teams.Subscribe(ctx, conn, teamsMailResource, "created",
		s.callback("/api/teams/handleEmailWebhook"), s.cfg.Teams.ClientState)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, key, sub.ID, mailSubTTL)
}

// watchCalendar opens a fresh push channel; Google keeps the previous one
// until it expires, and duplicate pings only cost an incremental sync
func (s *ConnectionService) watchCalendar(ctx context.Context, conn *entities.PlatformConnection) error {
	channelID := gmeet.ChannelID(conn.UserID, s.now().Unix())
	_, err := s.gmeet.WatchCalendar(ctx, conn, channelID, s.callback("/api/gmeet/calendar"), s.cfg.Gmeet.VerificationToken)
	return err
}

func (s *ConnectionService) renewMeetEvents(ctx context.Context, conn *entities.PlatformConnection) error {
	topic := s.cfg.Gmeet.PubSubTopic
	if topic == "" {
		return nil
	}
	if conn.SubscriptionID != "" {
		err := s.gmeet.RenewMeetSubscription(ctx, conn, conn.SubscriptionID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, entities.ErrConnectionNotFound) {
			return err
		}
	}

	id, err := s.gmeet.SubscribeMeetEvents(ctx, conn, topic)
	if err != nil {
		return err
	}
	if id == "" {
		// still being created; picked up on the next renewal
		return nil
	}
	if err := s.conns.UpdateSubscription(ctx, conn.ID, id); err != nil {
		return err
	}
	conn.SubscriptionID = id
	return nil
}

// Resume restarts token refresh for every stored connection after a restart
func (s *ConnectionService) Resume(ctx context.Context) (int, error) {
	conns, err := s.conns.ListConnected(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("failed to list connections: %w", err)
	}
	for _, conn := range conns {
		s.tokens.Start(conn)
	}
	s.logger.Info("🚀 Token refresh resumed", zap.Int("connections", len(conns)))
	return len(conns), nil
}

func mailSubKey(userID uuid.UUID) string {
	return "teams:mailsub:" + userID.String()
}
