package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jefmud/species-ident/internal/services"
)

type Deps struct {
	Users      *services.UserService
	Catalog    *services.CatalogService
	Ledger     *services.LedgerService
	Picker     *services.Picker
	Aggregator *services.Aggregator
	Hub        *Hub
	Limiter    *LoginLimiter
	// Quiet disables the access log
	Quiet bool
}

// errorHandler renders fiber errors as JSON like every other response
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

// NewApp builds the fiber application with all routes
func NewApp(d Deps) *fiber.App {
	// Immutable: parsed bodies and params outlive the request in the stores
	app := fiber.New(fiber.Config{ErrorHandler: errorHandler, Immutable: true})

	// Middleware
	if !d.Quiet {
		app.Use(logger.New())
	}
	app.Use(recover.New())
	app.Use(cors.New())

	api := app.Group("/api")
	auth := AuthMiddleware(d.Users)

	// Public Routes
	api.Post("/register", RegisterHandler(d.Users))
	if d.Limiter != nil {
		api.Post("/login", d.Limiter.Middleware(), LoginHandler(d.Users))
	} else {
		api.Post("/login", LoginHandler(d.Users))
	}
	api.Post("/refresh", RefreshHandler(d.Users))
	api.Get("/summary", SummaryHandler(d.Aggregator))
	api.Get("/leaderboard", LeaderboardHandler(d.Aggregator))
	api.Get("/images/:id", GetImageHandler(d.Catalog))
	api.Get("/species", ListSpeciesHandler(d.Catalog))
	api.Get("/species/:name", SpeciesPropertyHandler(d.Catalog))

	// Protected Routes
	api.Post("/logout", auth, LogoutHandler(d.Users))
	api.Get("/profile", auth, GetProfileHandler(d.Aggregator, d.Ledger))
	api.Get("/profile/species/:species_id", auth, ProfileSpeciesHandler(d.Catalog, d.Ledger))
	api.Get("/observe", auth, NextImageHandler(d.Catalog, d.Picker))
	api.Get("/observe/:image_id", auth, ObserveImageHandler(d.Catalog, d.Ledger))
	api.Post("/observe/:image_id", auth, RecordObservationHandler(d.Ledger))
	api.Post("/observe/:image_id/talk", auth, AddTalkHandler(d.Ledger))
	api.Get("/observations/:id", auth, GetObservationHandler(d.Ledger))
	api.Delete("/observations/:id", auth, DeleteObservationHandler(d.Ledger))
	api.Delete("/talk/:id", auth, DeleteTalkHandler(d.Ledger))

	// Admin Routes
	admin := api.Group("/admin", auth, AdminOnly)
	admin.Get("/users", ListUsersHandler(d.Users))
	admin.Post("/users/audit", AuditUsersHandler(d.Users))
	admin.Post("/users/:id/password", ResetPasswordHandler(d.Users))
	admin.Post("/species", CreateSpeciesHandler(d.Catalog))
	admin.Put("/species/:id", UpdateSpeciesHandler(d.Catalog))
	admin.Get("/images", ListImagesHandler(d.Catalog))
	admin.Get("/observations", ListObservationsHandler(d.Ledger))

	// Health Check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// WebSocket Route
	// Note: Middleware order matters. WSUpgradeMiddleware rejects plain HTTP
	// before AuthMiddleware checks the token.
	if d.Hub != nil {
		app.Use("/ws", WSUpgradeMiddleware)
		app.Use("/ws", auth)
		app.Get("/ws/leaderboard", LeaderboardSocketHandler(d.Hub))
	}

	return app
}
