package response

import (
	"time"

	"room-booking/internal/data/entity"
)

type AuthResponse struct {
	UserID    int64           `json:"user_id"`
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Email     string          `json:"email"`
	Username  string          `json:"username"`
	Role      entity.UserRole `json:"role"`
}

func AuthToResponse(user *entity.User, token string, expiresAt time.Time) AuthResponse {
	return AuthResponse{
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: expiresAt,
		Email:     user.Email,
		Username:  user.Username,
		Role:      user.Role,
	}
}
