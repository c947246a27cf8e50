package dto

import (
	"time"

	"github.com/spec-kit/locker-service/internal/domain"
)

// CreateUserRequest payload for POST /create_user.
type CreateUserRequest struct {
	FullName string  `json:"fullname"`
	RegNo    string  `json:"regNo"`
	Password string  `json:"password"`
	Phone    *string `json:"phone"`
	Email    string  `json:"email"`
}

// LoginRequest payload for POST /login.
type LoginRequest struct {
	RegNo    string `json:"regNo"`
	Password string `json:"password"`
}

// AdminLoginRequest payload for POST /admin_login.
type AdminLoginRequest struct {
	StaffID  string `json:"staffId"`
	Password string `json:"password"`
}

// EditProfileRequest payload for PATCH /edit.
type EditProfileRequest struct {
	ID          int64   `json:"id"`
	OldPassword string  `json:"old_password"`
	NewPassword string  `json:"new_password"`
	Phone       *string `json:"phone"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UserResponse is a user profile without credentials.
type UserResponse struct {
	ID        int64     `json:"id"`
	FullName  string    `json:"fullname"`
	RegNo     string    `json:"regNo"`
	Phone     *string   `json:"phone"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// AdminResponse is an admin profile without credentials.
type AdminResponse struct {
	ID       int64  `json:"id"`
	StaffID  string `json:"staffId"`
	FullName string `json:"fullname"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

// NewUserResponse strips credentials from user.
func NewUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		FullName:  user.FullName,
		RegNo:     user.RegNo,
		Phone:     user.Phone,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}
}

// NewAdminResponse strips credentials from admin.
func NewAdminResponse(admin *domain.AdminUser) AdminResponse {
	return AdminResponse{
		ID:       admin.ID,
		StaffID:  admin.StaffID,
		FullName: admin.FullName,
		Email:    admin.Email,
		Phone:    admin.Phone,
	}
}
