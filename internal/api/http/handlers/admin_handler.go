package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/locker-service/internal/api/dto"
	"github.com/spec-kit/locker-service/internal/service"
	apperrors "github.com/spec-kit/locker-service/pkg/util/errorutil"
)

// AdminHandler exposes staff authentication.
type AdminHandler struct {
	auth *service.AuthService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(authService *service.AuthService) *AdminHandler {
	return &AdminHandler{auth: authService}
}

// Login handles POST /admin_login.
func (h *AdminHandler) Login(c *fiber.Ctx) error {
	var req dto.AdminLoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.StaffID == "" || req.Password == "" {
		return apperrors.NewValidationError("staffId and password required", nil)
	}

	admin, token, exp, err := h.auth.LoginAdmin(c.UserContext(), req.StaffID, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"admin": dto.NewAdminResponse(admin),
			"auth":  dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	})
}
