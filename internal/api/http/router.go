package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/locker-service/internal/api/http/handlers"
	"github.com/spec-kit/locker-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Admins         *handlers.AdminHandler
	Lockers        *handlers.LockersHandler
	Reservations   *handlers.ReservationsHandler
	Streams        *handlers.StreamHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	app.Post("/create_user", cfg.Users.Register)
	app.Post("/login", cfg.Users.Login)
	app.Post("/admin_login", cfg.Admins.Login)

	app.Get("/lockers", cfg.Lockers.List)
	app.Get("/available_lockers", cfg.Lockers.ListAvailable)

	authed := cfg.AuthMiddleware.Handle
	admin := auth.RequireAdmin()
	user := auth.RequireUser()
	anyRole := auth.RequireAnyRole()

	app.Patch("/edit", authed, user, cfg.Users.Edit)
	app.Get("/users", authed, admin, cfg.Users.List)
	app.Post("/lockers", authed, admin, cfg.Lockers.Create)

	app.Get("/reservations", authed, admin, cfg.Reservations.ListAll)
	app.Get("/reservations/:user_id", authed, anyRole, cfg.Reservations.ListByUser)
	app.Post("/reservations/:user_id", authed, anyRole, cfg.Reservations.Create)
	app.Delete("/reservations/:user_id", authed, anyRole, cfg.Reservations.Delete)
	app.Put("/create_reservation/:user_id", authed, user, cfg.Reservations.Reserve)
	app.Put("/confirm_reservation", authed, user, cfg.Reservations.Confirm)
	app.Put("/end_reservation", authed, anyRole, cfg.Reservations.End)
	app.Get("/time_remaining/:locker_id", authed, anyRole, cfg.Reservations.TimeRemaining)
	app.Post("/delete_expired_reservations", authed, admin, cfg.Reservations.DeleteExpired)

	app.Get("/stream/reservations", authed, admin, cfg.Streams.StreamAll)
	app.Get("/stream/reservations/:user_id", authed, anyRole, cfg.Streams.StreamByUser)
}
