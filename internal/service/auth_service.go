package service

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/spec-kit/locker-service/internal/auth"
	"github.com/spec-kit/locker-service/internal/config"
	"github.com/spec-kit/locker-service/internal/domain"
	"github.com/spec-kit/locker-service/internal/repository"
	apperrors "github.com/spec-kit/locker-service/pkg/util/errorutil"
)

const (
	minPasswordLength = 8
	// bcrypt rejects longer inputs.
	maxPasswordLength = 72
)

const invalidCredentials = "invalid credentials"

// AuthService coordinates registration, login and profile flows.
type AuthService struct {
	users      repository.UserRepository
	admins     repository.AdminRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo  repository.UserRepository
	AdminRepo repository.AdminRepository
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		admins:     deps.AdminRepo,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

// RegisterInput carries the self-registration payload.
type RegisterInput struct {
	FullName string
	RegNo    string
	Password string
	Phone    *string
	Email    string
}

// EditProfileInput carries a profile update. Either field may be omitted, not both.
type EditProfileInput struct {
	ID          int64
	OldPassword string
	NewPassword string
	Phone       *string
}

// AdminInput carries an out-of-band admin provisioning request.
type AdminInput struct {
	StaffID  string
	Password string
	FullName string
	Email    string
	Phone    string
}

// RegisterUser creates a new locker user account.
func (s *AuthService) RegisterUser(ctx context.Context, in RegisterInput) (*domain.User, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.RegNo = strings.TrimSpace(in.RegNo)
	in.Email = strings.TrimSpace(in.Email)

	details := map[string]any{}
	if in.FullName == "" {
		details["fullname"] = "required"
	}
	if in.RegNo == "" {
		details["regNo"] = "required"
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		details["email"] = "must be a valid address"
	}
	switch {
	case len(in.Password) < minPasswordLength:
		details["password"] = "must be at least 8 characters"
	case len(in.Password) > maxPasswordLength:
		details["password"] = "must be at most 72 bytes"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid registration", details)
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		FullName:     in.FullName,
		RegNo:        in.RegNo,
		PasswordHash: hash,
		Phone:        normalizePhone(in.Phone),
		Email:        in.Email,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, storeError(err)
	}
	return user, nil
}

// LoginUser authenticates a locker user by registration number.
func (s *AuthService) LoginUser(ctx context.Context, regNo, password string) (*domain.User, string, time.Time, error) {
	user, err := s.users.GetByRegNo(ctx, strings.TrimSpace(regNo))
	if err != nil {
		if isNoRows(err) {
			auth.DummyCompare(password, s.bcryptCost)
			return nil, "", time.Time{}, apperrors.NewUnauthorized(invalidCredentials)
		}
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized(invalidCredentials)
	}

	token, meta, err := s.tokenMgr.GenerateToken(user.ID, domain.SubjectTypeUser)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	return user, token, meta.ExpiresAt, nil
}

// LoginAdmin authenticates staff by staff id.
func (s *AuthService) LoginAdmin(ctx context.Context, staffID, password string) (*domain.AdminUser, string, time.Time, error) {
	admin, err := s.admins.GetByStaffID(ctx, strings.TrimSpace(staffID))
	if err != nil {
		if isNoRows(err) {
			auth.DummyCompare(password, s.bcryptCost)
			return nil, "", time.Time{}, apperrors.NewUnauthorized(invalidCredentials)
		}
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	if err := auth.ComparePassword(admin.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized(invalidCredentials)
	}

	token, meta, err := s.tokenMgr.GenerateToken(admin.ID, domain.SubjectTypeAdmin)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	return admin, token, meta.ExpiresAt, nil
}

// EditProfile updates the caller's password and/or phone. A password change
// must present the current password.
func (s *AuthService) EditProfile(ctx context.Context, principal *auth.Principal, in EditProfileInput) (*domain.User, error) {
	if !principal.IsUser(in.ID) {
		return nil, apperrors.NewForbidden("profiles can only be edited by their owner")
	}
	if in.NewPassword == "" && in.Phone == nil {
		return nil, apperrors.NewValidationError("nothing to update", nil)
	}

	user, err := s.users.GetByID(ctx, in.ID)
	if err != nil {
		return nil, storeError(err)
	}

	if in.NewPassword != "" {
		if in.OldPassword == "" {
			return nil, apperrors.NewValidationError("old_password is required to change password", nil)
		}
		if len(in.NewPassword) < minPasswordLength {
			return nil, apperrors.NewValidationError("new_password must be at least 8 characters", nil)
		}
		if len(in.NewPassword) > maxPasswordLength {
			return nil, apperrors.NewValidationError("new_password must be at most 72 bytes", nil)
		}
		if err := auth.ComparePassword(user.PasswordHash, in.OldPassword); err != nil {
			return nil, apperrors.NewUnauthorized(invalidCredentials)
		}
		hash, err := auth.HashPassword(in.NewPassword, s.bcryptCost)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		user.PasswordHash = hash
	}
	if in.Phone != nil {
		user.Phone = normalizePhone(in.Phone)
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, storeError(err)
	}
	return user, nil
}

// CreateAdmin provisions an admin account. It is only reachable from lockerctl.
func (s *AuthService) CreateAdmin(ctx context.Context, in AdminInput) (*domain.AdminUser, error) {
	in.StaffID = strings.TrimSpace(in.StaffID)
	if in.StaffID == "" {
		return nil, apperrors.NewValidationError("staff id is required", nil)
	}
	if len(in.Password) < minPasswordLength {
		return nil, apperrors.NewValidationError("password must be at least 8 characters", nil)
	}
	if len(in.Password) > maxPasswordLength {
		return nil, apperrors.NewValidationError("password must be at most 72 bytes", nil)
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	admin := &domain.AdminUser{
		StaffID:      in.StaffID,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(in.FullName),
		Email:        strings.TrimSpace(in.Email),
		Phone:        strings.TrimSpace(in.Phone),
	}
	if err := s.admins.Create(ctx, admin); err != nil {
		return nil, storeError(err)
	}
	return admin, nil
}

// ListUsers returns every registered user.
func (s *AuthService) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, storeError(err)
	}
	return users, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func normalizePhone(phone *string) *string {
	if phone == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*phone)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
