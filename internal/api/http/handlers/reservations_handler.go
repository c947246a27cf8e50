package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/locker-service/internal/api/dto"
	"github.com/spec-kit/locker-service/internal/domain"
	"github.com/spec-kit/locker-service/internal/service"
	apperrors "github.com/spec-kit/locker-service/pkg/util/errorutil"
)

// ReservationsHandler exposes the reservation lifecycle.
type ReservationsHandler struct {
	service *service.ReservationService
	sweeps  service.SweepTrigger
}

// NewReservationsHandler constructs handler.
func NewReservationsHandler(reservations *service.ReservationService, sweeps service.SweepTrigger) *ReservationsHandler {
	return &ReservationsHandler{service: reservations, sweeps: sweeps}
}

// ListAll GET /reservations.
func (h *ReservationsHandler) ListAll(c *fiber.Ctx) error {
	list, err := h.service.ListAll(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAdminReservationList(list, h.service.HoldTTL())})
}

// ListByUser GET /reservations/:user_id.
func (h *ReservationsHandler) ListByUser(c *fiber.Ctx) error {
	principal, err := principalOf(c)
	if err != nil {
		return err
	}
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}
	list, err := h.service.ListByUser(c.UserContext(), principal, userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewReservationList(list, h.service.HoldTTL())})
}

// Create POST /reservations/:user_id.
func (h *ReservationsHandler) Create(c *fiber.Ctx) error {
	principal, err := principalOf(c)
	if err != nil {
		return err
	}
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}
	var req dto.CreateReservationRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.UserID != 0 && req.UserID != userID {
		return apperrors.NewValidationError("user_id in body does not match path", map[string]any{
			"path_user_id": userID,
			"body_user_id": req.UserID,
		})
	}

	res, err := h.service.Create(c.UserContext(), principal, req.LockerID, userID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewReservationResponse(res, h.service.HoldTTL())})
}

// Delete DELETE /reservations/:user_id.
func (h *ReservationsHandler) Delete(c *fiber.Ctx) error {
	principal, err := principalOf(c)
	if err != nil {
		return err
	}
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}
	var req dto.LockerActionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	res, err := h.service.Delete(c.UserContext(), principal, req.LockerID, userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewReservationResponse(res, h.service.HoldTTL())})
}

// Reserve PUT /create_reservation/:user_id.
func (h *ReservationsHandler) Reserve(c *fiber.Ctx) error {
	principal, err := principalOf(c)
	if err != nil {
		return err
	}
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}
	var req dto.LockerActionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	res, err := h.service.Reserve(c.UserContext(), principal, req.LockerID, userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewReservationResponse(res, h.service.HoldTTL())})
}

// Confirm PUT /confirm_reservation.
func (h *ReservationsHandler) Confirm(c *fiber.Ctx) error {
	principal, err := principalOf(c)
	if err != nil {
		return err
	}
	var req dto.LockerActionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	res, err := h.service.Confirm(c.UserContext(), principal, req.LockerID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewReservationResponse(res, h.service.HoldTTL())})
}

// End PUT /end_reservation.
func (h *ReservationsHandler) End(c *fiber.Ctx) error {
	principal, err := principalOf(c)
	if err != nil {
		return err
	}
	var req dto.LockerActionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	res, err := h.service.End(c.UserContext(), principal, req.LockerID)
	if err != nil {
		return err
	}
	if res == nil {
		return c.JSON(fiber.Map{"data": dto.ReleasedResponse{LockerID: req.LockerID, Status: domain.ReservationStatusIdle}})
	}
	return c.JSON(fiber.Map{"data": dto.NewReservationResponse(res, h.service.HoldTTL())})
}

// TimeRemaining GET /time_remaining/:locker_id.
func (h *ReservationsHandler) TimeRemaining(c *fiber.Ctx) error {
	tr, err := h.service.TimeRemaining(c.UserContext(), c.Params("locker_id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TimeRemainingResponse{
		LockerID:         tr.LockerID,
		Status:           tr.Status,
		MinutesElapsed:   tr.MinutesElapsed,
		MinutesRemaining: tr.MinutesRemaining,
		ExpiresAt:        tr.ExpiresAt,
	}})
}

// DeleteExpired POST /delete_expired_reservations schedules a sweep.
func (h *ReservationsHandler) DeleteExpired(c *fiber.Ctx) error {
	if h.sweeps == nil {
		return apperrors.NewDomainError(apperrors.CodeUnavailableDeps, "expiry sweeper not running", http.StatusServiceUnavailable, nil)
	}
	h.sweeps.Trigger()
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": dto.SweepResponse{Status: "scheduled"}})
}
