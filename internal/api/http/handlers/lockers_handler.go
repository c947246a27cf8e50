package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/locker-service/internal/api/dto"
	"github.com/spec-kit/locker-service/internal/service"
)

// LockersHandler exposes the locker catalog.
type LockersHandler struct {
	lockers *service.LockerService
}

// NewLockersHandler constructs handler.
func NewLockersHandler(lockers *service.LockerService) *LockersHandler {
	return &LockersHandler{lockers: lockers}
}

// List GET /lockers.
func (h *LockersHandler) List(c *fiber.Ctx) error {
	lockers, err := h.lockers.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewLockerList(lockers)})
}

// ListAvailable GET /available_lockers.
func (h *LockersHandler) ListAvailable(c *fiber.Ctx) error {
	lockers, err := h.lockers.ListAvailable(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewLockerList(lockers)})
}

// Create POST /lockers.
func (h *LockersHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateLockerRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	locker, err := h.lockers.Create(c.UserContext(), req.LockerID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewLockerResponse(locker)})
}
