package presenter

import (
	meetingDTO "github.com/johnquangdev/meeting-sync/internal/adapter/dto/meeting"
	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
)

// ToUserResponse converts a User entity to UserResponse DTO
func ToUserResponse(u *entities.User) *meetingDTO.UserResponse {
	if u == nil {
		return nil
	}
	return &meetingDTO.UserResponse{
		ID:         u.ID.String(),
		Email:      u.Email,
		Name:       u.Name,
		Provider:   string(u.Provider),
		InviteStub: u.IsInviteStub(),
	}
}
