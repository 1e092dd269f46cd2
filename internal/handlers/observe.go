package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/jefmud/species-ident/internal/models"
	"github.com/jefmud/species-ident/internal/services"
)

// NextImageHandler redirects to an image nobody has classified yet
func NextImageHandler(catalog *services.CatalogService, picker *services.Picker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		size, err := catalog.PickRange(c.Context())
		if err != nil {
			return writeError(c, err)
		}

		img, err := picker.NextUnclassified(c.Context(), size, c.QueryInt("start", 0))
		if errors.Is(err, models.ErrNotFound) {
			return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "every image has been classified"})
		}
		if err != nil {
			return writeError(c, err)
		}

		return c.Redirect(fmt.Sprintf("/api/observe/%d", img.ID), http.StatusFound)
	}
}

// ObserveImageHandler returns an image with the species list and the caller's
// observations and notes on it
func ObserveImageHandler(catalog *services.CatalogService, ledger *services.LedgerService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		imageID, ok := paramID(c, "image_id")
		if !ok {
			return badID(c, "image")
		}
		me := actor(c)

		img, err := catalog.GetImage(c.Context(), imageID)
		if err != nil {
			return writeError(c, err)
		}
		species, err := catalog.ListSpecies(c.Context())
		if err != nil {
			return writeError(c, err)
		}
		obs, err := ledger.ListObservations(c.Context(), models.ObservationFilter{UserID: me.UserID, ImageID: img.ID})
		if err != nil {
			return writeError(c, err)
		}
		talk, err := ledger.ListTalk(c.Context(), models.TalkFilter{UserID: me.UserID, ImageID: img.ID})
		if err != nil {
			return writeError(c, err)
		}

		return c.JSON(fiber.Map{
			"image":        img,
			"species":      species,
			"observations": obs,
			"talk":         talk,
		})
	}
}

func RecordObservationHandler(ledger *services.LedgerService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		imageID, ok := paramID(c, "image_id")
		if !ok {
			return badID(c, "image")
		}

		var req models.ObservationRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
		}

		obs, err := ledger.Record(c.Context(), actor(c), imageID, req)
		if err != nil {
			return writeError(c, err)
		}
		return c.Status(http.StatusCreated).JSON(obs)
	}
}

func AddTalkHandler(ledger *services.LedgerService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		imageID, ok := paramID(c, "image_id")
		if !ok {
			return badID(c, "image")
		}

		var req models.TalkRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
		}

		talk, err := ledger.AddTalk(c.Context(), actor(c), imageID, req.Notes)
		if err != nil {
			return writeError(c, err)
		}
		return c.Status(http.StatusCreated).JSON(talk)
	}
}

func GetObservationHandler(ledger *services.LedgerService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := paramID(c, "id")
		if !ok {
			return badID(c, "observation")
		}

		obs, err := ledger.GetObservation(c.Context(), id)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(fiber.Map{"observation": obs, "summary": obs.String()})
	}
}

func DeleteObservationHandler(ledger *services.LedgerService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := paramID(c, "id")
		if !ok {
			return badID(c, "observation")
		}

		obs, err := ledger.Delete(c.Context(), id, actor(c))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(fiber.Map{"deleted": obs.ID, "image_id": obs.ImageID})
	}
}

func DeleteTalkHandler(ledger *services.LedgerService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := paramID(c, "id")
		if !ok {
			return badID(c, "talk")
		}

		talk, err := ledger.DeleteTalk(c.Context(), id, actor(c))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(fiber.Map{"deleted": talk.ID, "image_id": talk.ImageID})
	}
}
