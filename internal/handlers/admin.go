package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/jefmud/species-ident/internal/models"
	"github.com/jefmud/species-ident/internal/services"
)

func ListUsersHandler(users *services.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := users.ListUsers(c.Context())
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(list)
	}
}

func AuditUsersHandler(users *services.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fixed, err := users.AuditPasswords(c.Context())
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(fiber.Map{"message": "User audit completed", "rehashed": fixed})
	}
}

func ResetPasswordHandler(users *services.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := paramID(c, "id")
		if !ok {
			return badID(c, "user")
		}

		var body struct {
			Password string `json:"password" form:"password"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
		}

		if err := users.ResetPassword(c.Context(), id, body.Password); err != nil {
			return writeError(c, err)
		}
		return c.SendStatus(http.StatusNoContent)
	}
}

func CreateSpeciesHandler(catalog *services.CatalogService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.SpeciesRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
		}

		sp, err := catalog.CreateSpecies(c.Context(), req)
		if err != nil {
			return writeError(c, err)
		}
		return c.Status(http.StatusCreated).JSON(sp)
	}
}

func UpdateSpeciesHandler(catalog *services.CatalogService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := paramID(c, "id")
		if !ok {
			return badID(c, "species")
		}

		var req models.SpeciesRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
		}

		sp, err := catalog.UpdateSpecies(c.Context(), id, req)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(sp)
	}
}

func ListImagesHandler(catalog *services.CatalogService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		offset, limit := pagination(c)
		images, err := catalog.ListImages(c.Context(), offset, limit)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(fiber.Map{"offset": offset, "limit": limit, "images": images})
	}
}

func ListObservationsHandler(ledger *services.LedgerService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		offset, limit := pagination(c)
		obs, err := ledger.ListObservations(c.Context(), models.ObservationFilter{
			UserID:    c.QueryInt("user_id", 0),
			ImageID:   c.QueryInt("image_id", 0),
			SpeciesID: c.QueryInt("species_id", 0),
			Offset:    offset,
			Limit:     limit,
		})
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(fiber.Map{"offset": offset, "limit": limit, "observations": obs})
	}
}
