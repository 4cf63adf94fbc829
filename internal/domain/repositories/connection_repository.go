package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
)

// ConnectionRepository defines the interface for platform connection data access
type ConnectionRepository interface {
	FindByUser(ctx context.Context, platform entities.Platform, userID uuid.UUID) (*entities.PlatformConnection, error)
	FindBySubscriptionID(ctx context.Context, subscriptionID string) (*entities.PlatformConnection, error)
	FindByAccountID(ctx context.Context, platform entities.Platform, accountID string) (*entities.PlatformConnection, error)

	// ListConnected returns every active connection, optionally filtered by platform
	ListConnected(ctx context.Context, platform entities.Platform) ([]*entities.PlatformConnection, error)

	// Save inserts or replaces the connection of a platform/user pair
	Save(ctx context.Context, conn *entities.PlatformConnection) error

	// UpdateTokens persists refreshed credentials
	UpdateTokens(ctx context.Context, conn *entities.PlatformConnection) error

	// UpdateSubscription stores the webhook subscription id of a connection
	UpdateSubscription(ctx context.Context, id uuid.UUID, subscriptionID string) error

	// MarkDisconnected flags the connection inactive and clears its tokens
	MarkDisconnected(ctx context.Context, platform entities.Platform, userID uuid.UUID) error
}
