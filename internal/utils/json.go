package utils

import (
	"log"

	"github.com/gofiber/websocket/v2"
)

// SendJSON sends a JSON payload to a WebSocket connection.
// fasthttp websocket connections are not safe for concurrent writes; callers serialize.
func SendJSON(c *websocket.Conn, payload interface{}) error {
	return c.WriteJSON(payload)
}

// LogError logs an error if it's not nil
func LogError(err error, context string) {
	if err != nil {
		log.Printf("Error [%s]: %v", context, err)
	}
}
