package connection

import "time"

// ConnectionResponse represents a stored platform connection
type ConnectionResponse struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	Platform       string     `json:"platform"`
	AccountID      string     `json:"account_id"`
	Email          string     `json:"email"`
	SubscriptionID string     `json:"subscription_id,omitempty"`
	Expiry         *time.Time `json:"expiry,omitempty"`
	IsConnected    bool       `json:"is_connected"`
}
