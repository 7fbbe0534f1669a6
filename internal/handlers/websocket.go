package handlers

import (
	"log"

	"chatsync/internal/realtime"
	"chatsync/internal/utils"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// WebSocketUpgrade checks if the request should be upgraded to WebSocket
func WebSocketUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}

	return utils.Fail(c, fiber.StatusUpgradeRequired, utils.CodeBadRequest, "WebSocket upgrade required")
}

// ChangeFeed serves one change-feed connection
func (h *Handler) ChangeFeed(c *websocket.Conn) {
	userID, _ := c.Locals("userID").(string)
	if userID == "" {
		log.Println("Change feed connection without user")
		c.Close()
		return
	}

	client := realtime.NewClient(userID, c, h.hub)
	if !h.hub.Join(client) {
		log.Println("Change feed is shutting down")
		c.Close()
		return
	}

	go client.WritePump()
	client.ReadPump() // Blocks until the connection closes
}

// GetChangeFeedStats returns change-feed connection statistics
func (h *Handler) GetChangeFeedStats(c *fiber.Ctx) error {
	return utils.OK(c, fiber.StatusOK, fiber.Map{
		"connections":   h.hub.GetOnlineCount(),
		"subscriptions": h.hub.GetSubscriptionCount(),
	})
}
