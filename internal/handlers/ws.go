package handlers

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/jefmud/species-ident/internal/models"
	"github.com/jefmud/species-ident/internal/utils"
)

// LeaderboardSocketHandler streams ledger events and leaderboard totals
func LeaderboardSocketHandler(hub *Hub) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		me, _ := c.Locals(localActor).(models.Actor)

		// Generate a unique ID for this connection
		connID := uuid.New().String()

		defer func() {
			hub.Unregister(connID)
			c.Close()
		}()

		hub.Register(connID, c, me.UserID, me.Username)

		snapshot, err := hub.Snapshot(context.Background())
		if err != nil {
			utils.LogError(err, "leaderboard snapshot")
			return
		}
		if err := hub.SendTo(c, snapshot); err != nil {
			return
		}

		// the feed is one-way; reading only detects disconnects
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("error: %v", err)
				}
				break
			}
		}
	})
}

// WSUpgradeMiddleware rejects plain HTTP requests to websocket routes
func WSUpgradeMiddleware(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}
