package entities

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// PlatformConnection is a user's authorized link to a conferencing platform
type PlatformConnection struct {
	ID             uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID         uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index"`
	Platform       Platform   `json:"platform" gorm:"type:varchar(20);not null"`
	AccountID      string     `json:"account_id" gorm:"type:varchar(255);not null;default:'';index"`
	Email          string     `json:"email" gorm:"type:varchar(320);not null;default:''"`
	SubscriptionID string     `json:"subscription_id" gorm:"type:varchar(255);not null;default:'';index"`
	AccessToken    string     `json:"-" gorm:"type:text;not null;default:''"`
	RefreshToken   string     `json:"-" gorm:"type:text;not null;default:''"`
	TokenType      string     `json:"-" gorm:"type:varchar(20);not null;default:'Bearer'"`
	Expiry         *time.Time `json:"expiry,omitempty" gorm:"type:timestamptz"`
	IsConnected    bool       `json:"is_connected" gorm:"not null;default:true"`
	CreatedAt      time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (PlatformConnection) TableName() string {
	return "platform_connections"
}

// Token returns the stored credentials as an oauth2 token
func (c *PlatformConnection) Token() *oauth2.Token {
	t := &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    c.TokenType,
	}
	if c.Expiry != nil {
		t.Expiry = *c.Expiry
	}
	return t
}

// ApplyToken copies refreshed credentials onto the connection.
// Providers that do not rotate refresh tokens return an empty one; the old one is kept.
func (c *PlatformConnection) ApplyToken(t *oauth2.Token) {
	c.AccessToken = t.AccessToken
	if t.RefreshToken != "" {
		c.RefreshToken = t.RefreshToken
	}
	if t.TokenType != "" {
		c.TokenType = t.TokenType
	}
	if !t.Expiry.IsZero() {
		exp := t.Expiry
		c.Expiry = &exp
	}
	c.UpdatedAt = time.Now()
}

// Key identifies the connection in per-connection maps
func (c *PlatformConnection) Key() string {
	return ConnectionKey(c.Platform, c.UserID)
}

// ConnectionKey builds the map key for a platform/user pair
func ConnectionKey(platform Platform, userID uuid.UUID) string {
	return string(platform) + ":" + userID.String()
}
