package converter

import (
	"artsheets/internal/entity"
)

// UserToSummary converts a entity.DbUser to entity.UserSummary.
func UserToSummary(u *entity.DbUser) entity.UserSummary {
	if u == nil {
		return entity.UserSummary{}
	}
	return entity.UserSummary{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		IsActive:    u.IsActive,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// UsersToSummaries converts a slice of entity.DbUser to entity.UserSummary.
func UsersToSummaries(users []entity.DbUser) []entity.UserSummary {
	summaries := make([]entity.UserSummary, len(users))
	for i := range users {
		summaries[i] = UserToSummary(&users[i])
	}
	return summaries
}
