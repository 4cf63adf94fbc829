package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// FindByID finds a user by ID
	FindByID(ctx context.Context, id uuid.UUID) (*entities.User, error)

	// FindByEmail finds a user by normalized email
	FindByEmail(ctx context.Context, email string) (*entities.User, error)

	// CreateIfAbsent inserts the user unless the email is taken.
	// It reports whether this call created the row.
	CreateIfAbsent(ctx context.Context, user *entities.User) (bool, error)
}
