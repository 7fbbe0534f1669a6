package handlers

import (
	"chatsync/internal/utils"

	"github.com/gofiber/fiber/v2"
)

// GetUsers returns every user except the caller, in stable order
func (h *Handler) GetUsers(c *fiber.Ctx) error {
	users, err := h.store.ListUsers(c.UserContext(), userID(c))
	if err != nil {
		return storeError(c, err, "users")
	}
	return utils.OK(c, fiber.StatusOK, users)
}
