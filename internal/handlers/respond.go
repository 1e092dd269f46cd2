package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/jefmud/species-ident/internal/models"
	"github.com/jefmud/species-ident/internal/services"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// writeError maps service errors onto HTTP responses. Forbidden carries no
// detail so ownership is not leaked.
func writeError(c *fiber.Ctx, err error) error {
	var conflict *models.ConflictError
	var invalid *models.ValidationError

	switch {
	case errors.As(err, &invalid):
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": invalid.Message, "field": invalid.Field})
	case errors.As(err, &conflict):
		return c.Status(http.StatusConflict).JSON(fiber.Map{"error": conflict.Error(), "field": conflict.Field})
	case errors.Is(err, models.ErrConflict):
		return c.Status(http.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, models.ErrSpeciesNotFound):
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "species not found", "field": "species"})
	case errors.Is(err, models.ErrNotFound):
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	case errors.Is(err, models.ErrForbidden):
		return c.Status(http.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
	case errors.Is(err, models.ErrInvalidCredentials):
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Incorrect login information"})
	case errors.Is(err, services.ErrInvalidToken):
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
	case errors.Is(err, models.ErrStoreUnavailable):
		log.Printf("store unavailable on %s %s: %v", c.Method(), c.Path(), err)
		return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{"error": "service temporarily unavailable, please try again"})
	default:
		log.Printf("Error [%s %s]: %v", c.Method(), c.Path(), err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
}

// paramID parses a positive integer route parameter.
func paramID(c *fiber.Ctx, name string) (int, bool) {
	id, err := strconv.Atoi(c.Params(name))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func badID(c *fiber.Ctx, what string) error {
	return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid " + what + " id"})
}

func pagination(c *fiber.Ctx) (offset, limit int) {
	offset = c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	limit = c.QueryInt("limit", defaultPageSize)
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	return offset, limit
}

// actor returns the authenticated caller set by AuthMiddleware
func actor(c *fiber.Ctx) models.Actor {
	a, _ := c.Locals(localActor).(models.Actor)
	return a
}
