package handlers

import (
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/jefmud/species-ident/internal/models"
	"github.com/jefmud/species-ident/internal/services"
)

func SummaryHandler(agg *services.Aggregator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		summary, err := agg.Summary(c.Context())
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(summary)
	}
}

func LeaderboardHandler(agg *services.Aggregator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		totals, err := agg.UserTotals(c.Context())
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(totals)
	}
}

func GetImageHandler(catalog *services.CatalogService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := paramID(c, "id")
		if !ok {
			return badID(c, "image")
		}
		img, err := catalog.GetImage(c.Context(), id)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(img)
	}
}

func ListSpeciesHandler(catalog *services.CatalogService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		species, err := catalog.ListSpecies(c.Context())
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(species)
	}
}

// SpeciesPropertyHandler answers GET /species/:name?p=carnivore
func SpeciesPropertyHandler(catalog *services.CatalogService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name := c.Params("name")
		prop := c.Query("p")

		if prop == "" {
			sp, err := catalog.GetSpeciesByName(c.Context(), name)
			if err != nil {
				return writeError(c, err)
			}
			return c.JSON(sp)
		}

		sp, value, err := catalog.HasProperty(c.Context(), name, prop)
		if err != nil {
			return writeError(c, err)
		}

		var msg string
		switch value {
		case models.PropertyTrue:
			msg = fmt.Sprintf("%s is a %s", sp.Name, prop)
		case models.PropertyFalse:
			msg = fmt.Sprintf("%s is NOT a %s", sp.Name, prop)
		default:
			msg = fmt.Sprintf("%s does not have a property %s", sp.Name, prop)
		}

		return c.Status(http.StatusOK).JSON(fiber.Map{
			"species":  sp.Name,
			"property": prop,
			"value":    value,
			"result":   value.String(),
			"message":  msg,
		})
	}
}
