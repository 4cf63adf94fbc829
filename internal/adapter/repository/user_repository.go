package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
	"github.com/johnquangdev/meeting-sync/internal/domain/repositories"
)

// UserRepository implements the user repository interface using GORM
type UserRepository struct {
	db *gorm.DB
}

var _ repositories.UserRepository = (*UserRepository)(nil)

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{
		db: db,
	}
}

// FindByID finds a user by ID
func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	var user entities.User
	if err := conn(ctx, r.db).Where("id = ?", id).First(&user).Error; err != nil {
		if isNotFound(err) {
			return nil, entities.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return &user, nil
}

// FindByEmail finds a user by email
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entities.User, error) {
	var user entities.User
	if err := conn(ctx, r.db).
		Where("email = ?", entities.NormalizeEmail(email)).
		First(&user).Error; err != nil {
		if isNotFound(err) {
			return nil, entities.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return &user, nil
}

// CreateIfAbsent inserts the user unless the email already exists
func (r *UserRepository) CreateIfAbsent(ctx context.Context, user *entities.User) (bool, error) {
	user.Email = entities.NormalizeEmail(user.Email)
	if user.Email == "" {
		return false, entities.ErrInvalidEmail
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	res := conn(ctx, r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).
		Create(user)
	if res.Error != nil {
		return false, fmt.Errorf("failed to create user: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}
