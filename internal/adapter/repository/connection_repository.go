package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
	"github.com/johnquangdev/meeting-sync/internal/domain/repositories"
)

// ConnectionRepository implements the connection repository interface using GORM
type ConnectionRepository struct {
	db *gorm.DB
}

var _ repositories.ConnectionRepository = (*ConnectionRepository)(nil)

// NewConnectionRepository creates a new connection repository
func NewConnectionRepository(db *gorm.DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

func (r *ConnectionRepository) findOne(ctx context.Context, query string, args ...interface{}) (*entities.PlatformConnection, error) {
	var c entities.PlatformConnection
	if err := conn(ctx, r.db).Where(query, args...).Order("updated_at DESC").First(&c).Error; err != nil {
		if isNotFound(err) {
			return nil, entities.ErrConnectionNotFound
		}
		return nil, fmt.Errorf("failed to find connection: %w", err)
	}
	return &c, nil
}

// FindByUser finds the connection of a user on a platform
func (r *ConnectionRepository) FindByUser(ctx context.Context, platform entities.Platform, userID uuid.UUID) (*entities.PlatformConnection, error) {
	return r.findOne(ctx, "platform = ? AND user_id = ?", platform, userID)
}

// FindBySubscriptionID finds the connection owning a webhook subscription
func (r *ConnectionRepository) FindBySubscriptionID(ctx context.Context, subscriptionID string) (*entities.PlatformConnection, error) {
	return r.findOne(ctx, "subscription_id = ? AND is_connected = true", subscriptionID)
}

// FindByAccountID finds the connection for a provider-side account
func (r *ConnectionRepository) FindByAccountID(ctx context.Context, platform entities.Platform, accountID string) (*entities.PlatformConnection, error) {
	return r.findOne(ctx, "platform = ? AND account_id = ? AND is_connected = true", platform, accountID)
}

// ListConnected lists active connections. An empty platform lists all platforms.
func (r *ConnectionRepository) ListConnected(ctx context.Context, platform entities.Platform) ([]*entities.PlatformConnection, error) {
	var conns []*entities.PlatformConnection
	q := conn(ctx, r.db).Where("is_connected = true")
	if platform != "" {
		q = q.Where("platform = ?", platform)
	}
	if err := q.Order("created_at ASC").Find(&conns).Error; err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	return conns, nil
}

// Save upserts on (platform, user_id); reconnecting revives a disconnected row
func (r *ConnectionRepository) Save(ctx context.Context, c *entities.PlatformConnection) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.IsConnected = true
	err := conn(ctx, r.db).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "platform"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"account_id", "email", "subscription_id", "access_token", "refresh_token",
				"token_type", "expiry", "is_connected", "updated_at",
			}),
		}).
		Create(c).Error
	if err != nil {
		return fmt.Errorf("failed to save connection: %w", err)
	}
	return nil
}

// UpdateTokens persists refreshed credentials
func (r *ConnectionRepository) UpdateTokens(ctx context.Context, c *entities.PlatformConnection) error {
	if err := conn(ctx, r.db).
		Model(&entities.PlatformConnection{}).
		Where("id = ?", c.ID).
		Updates(map[string]interface{}{
			"access_token":  c.AccessToken,
			"refresh_token": c.RefreshToken,
			"token_type":    c.TokenType,
			"expiry":        c.Expiry,
			"updated_at":    time.Now(),
		}).Error; err != nil {
		return fmt.Errorf("failed to update connection tokens: %w", err)
	}
	return nil
}

// UpdateSubscription stores the webhook subscription id of a connection
func (r *ConnectionRepository) UpdateSubscription(ctx context.Context, id uuid.UUID, subscriptionID string) error {
	if err := conn(ctx, r.db).
		Model(&entities.PlatformConnection{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"subscription_id": subscriptionID,
			"updated_at":      time.Now(),
		}).Error; err != nil {
		return fmt.Errorf("failed to update connection subscription: %w", err)
	}
	return nil
}

// MarkDisconnected flags the connection inactive
func (r *ConnectionRepository) MarkDisconnected(ctx context.Context, platform entities.Platform, userID uuid.UUID) error {
	res := conn(ctx, r.db).
		Model(&entities.PlatformConnection{}).
		Where("platform = ? AND user_id = ?", platform, userID).
		Updates(map[string]interface{}{
			"is_connected":  false,
			"access_token":  "",
			"refresh_token": "",
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to disconnect: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return entities.ErrConnectionNotFound
	}
	return nil
}
