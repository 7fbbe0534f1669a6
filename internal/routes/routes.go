package routes

import (
	"chatsync/internal/handlers"
	"chatsync/internal/middleware"
	"chatsync/internal/utils"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// SetupRoutes configures all application routes
func SetupRoutes(app *fiber.App, h *handlers.Handler, tokens *utils.Tokens) {
	api := app.Group("/api/v1")
	auth := middleware.Auth(tokens)

	// Health check (public)
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"message": "chatsync API is running",
		})
	})

	// Auth routes
	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", middleware.StrictRateLimiter(), h.Register)
	authRoutes.Post("/login", middleware.StrictRateLimiter(), h.Login)
	authRoutes.Post("/refresh", middleware.StrictRateLimiter(), h.RefreshToken)
	authRoutes.Post("/logout", auth, h.Logout)
	authRoutes.Get("/me", auth, h.GetMe)

	// Users (protected)
	api.Get("/users", auth, h.GetUsers)

	// Groups (protected)
	groups := api.Group("/groups", auth)
	groups.Get("/", h.GetGroups)
	groups.Post("/", middleware.ModerateRateLimiter(), h.CreateGroup)
	groups.Get("/:groupId/membership", h.GetMembership)
	groups.Post("/:groupId/join", h.JoinGroup)

	// Messages (protected)
	messages := api.Group("/messages", auth)
	messages.Get("/direct", h.GetDirectMessages)
	messages.Post("/direct", middleware.ModerateRateLimiter(), h.SendDirectMessage)
	messages.Get("/group/:groupId", h.GetGroupMessages)
	messages.Post("/group", middleware.ModerateRateLimiter(), h.SendGroupMessage)

	// Change feed (protected)
	api.Get("/realtime", auth, handlers.WebSocketUpgrade, websocket.New(h.ChangeFeed))
	api.Get("/realtime/stats", auth, h.GetChangeFeedStats)
}
