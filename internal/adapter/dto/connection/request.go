package connection

import "time"

// RegisterRequest carries tokens a user granted to the platform app
type RegisterRequest struct {
	Platform     string    `json:"platform" validate:"required,platform"`
	AccessToken  string    `json:"access_token" validate:"required"`
	RefreshToken string    `json:"refresh_token" validate:"required"`
	TokenType    string    `json:"token_type"`
	Expiry       time.Time `json:"expiry"`
}

// ConnectionParams identifies a connection in the URL
type ConnectionParams struct {
	Platform string `param:"platform" validate:"required,platform"`
	UserID   string `param:"user_id" validate:"required,uuid"`
}
