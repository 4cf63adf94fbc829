package entities

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// UserProvider records how the account was created
type UserProvider string

const (
	// UserProviderEmail marks an invite stub created from an attendee list
	UserProviderEmail UserProvider = "email"
	UserProviderTeams UserProvider = "teams"
	UserProviderZoom  UserProvider = "zoom"
	UserProviderGmeet UserProvider = "gmeet"
)

// User represents a person known to the system
type User struct {
	ID       uuid.UUID    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Email    string       `json:"email" gorm:"type:varchar(320);uniqueIndex;not null"`
	Name     string       `json:"name" gorm:"type:varchar(255);not null;default:''"`
	Provider UserProvider `json:"provider" gorm:"type:varchar(20);not null;default:'email'"`
	IsActive bool         `json:"is_active" gorm:"not null;default:true"`

	// Invite stubs carry a token until the user sets a password
	InviteToken  *string `json:"-" gorm:"type:varchar(64)"`
	PasswordHash *string `json:"-" gorm:"column:password_hash;type:text"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}

// NormalizeEmail lowercases and trims an address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailDomain returns the part after '@', or "" when malformed
func EmailDomain(email string) string {
	email = NormalizeEmail(email)
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return email[at+1:]
}

// NewInviteStub creates a minimal account for an attendee that has never signed up
func NewInviteStub(email, name string) *User {
	now := time.Now()
	token := uuid.NewString()
	email = NormalizeEmail(email)
	if strings.TrimSpace(name) == "" {
		name = email
		if at := strings.Index(email, "@"); at > 0 {
			name = email[:at]
		}
	}
	return &User{
		ID:          uuid.New(),
		Email:       email,
		Name:        strings.TrimSpace(name),
		Provider:    UserProviderEmail,
		IsActive:    true,
		InviteToken: &token,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsInviteStub checks if the user has not completed sign-up
func (u *User) IsInviteStub() bool {
	return u.Provider == UserProviderEmail && u.PasswordHash == nil
}
