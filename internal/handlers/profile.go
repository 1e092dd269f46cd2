package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jefmud/species-ident/internal/models"
	"github.com/jefmud/species-ident/internal/services"
)

// GetProfileHandler returns the authenticated user's per-species counts and notes
func GetProfileHandler(agg *services.Aggregator, ledger *services.LedgerService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		me := actor(c)

		tallies, err := agg.SpeciesTallies(c.Context(), me.UserID)
		if err != nil {
			return writeError(c, err)
		}
		talk, err := ledger.ListTalk(c.Context(), models.TalkFilter{UserID: me.UserID})
		if err != nil {
			return writeError(c, err)
		}

		return c.JSON(fiber.Map{
			"username": me.Username,
			"species":  tallies,
			"talk":     talk,
		})
	}
}

// ProfileSpeciesHandler lists the authenticated user's observations of one species
func ProfileSpeciesHandler(catalog *services.CatalogService, ledger *services.LedgerService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		speciesID, ok := paramID(c, "species_id")
		if !ok {
			return badID(c, "species")
		}

		sp, err := catalog.GetSpecies(c.Context(), speciesID)
		if err != nil {
			return writeError(c, err)
		}
		obs, err := ledger.ListObservations(c.Context(), models.ObservationFilter{UserID: actor(c).UserID, SpeciesID: sp.ID})
		if err != nil {
			return writeError(c, err)
		}

		return c.JSON(fiber.Map{"species": sp, "observations": obs})
	}
}
