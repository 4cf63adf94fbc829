package connection

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/external/gmeet"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/external/oauth"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/external/teams"
)

// Service links users to their conferencing accounts and keeps the
// provider webhooks of every connection alive
type Service interface {
	Register(ctx context.Context, in RegisterInput) (*entities.PlatformConnection, error)
	Disconnect(ctx context.Context, platform entities.Platform, userID uuid.UUID) error
	RenewSubscriptions(ctx context.Context, conn *entities.PlatformConnection) error
	Resume(ctx context.Context) (int, error)
}

// RegisterInput carries credentials a user granted through the platform's
// consent screen
type RegisterInput struct {
	Platform     entities.Platform
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time
}

// Token returns the credentials as an oauth2 token
func (in RegisterInput) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  in.AccessToken,
		RefreshToken: in.RefreshToken,
		TokenType:    in.TokenType,
		Expiry:       in.Expiry,
	}
}

// AccountReader identifies the provider account behind a token
type AccountReader interface {
	GetAccount(ctx context.Context, token *oauth2.Token) (*oauth.Account, error)
}

// TokenKeeper refreshes connection tokens in the background
type TokenKeeper interface {
	Start(conn *entities.PlatformConnection)
	Stop(ctx context.Context, platform entities.Platform, userID uuid.UUID)
}

// TeamsSubscriber manages Graph change notification subscriptions
type TeamsSubscriber interface {
	Subscribe(ctx context.Context, conn *entities.PlatformConnection, resource, changeType, notificationURL, clientState string) (*teams.Subscription, error)
	RenewSubscription(ctx context.Context, conn *entities.PlatformConnection, id string) error
}

// GmeetWatcher manages Calendar push channels and Meet event subscriptions
type GmeetWatcher interface {
	WatchCalendar(ctx context.Context, conn *entities.PlatformConnection, channelID, address, token string) (*gmeet.Channel, error)
	SubscribeMeetEvents(ctx context.Context, conn *entities.PlatformConnection, topic string) (string, error)
	RenewMeetSubscription(ctx context.Context, conn *entities.PlatformConnection, id string) error
}

var (
	_ AccountReader   = (*oauth.Provider)(nil)
	_ TokenKeeper     = (*oauth.Refresher)(nil)
	_ TeamsSubscriber = (*teams.Client)(nil)
	_ GmeetWatcher    = (*gmeet.Client)(nil)
)
