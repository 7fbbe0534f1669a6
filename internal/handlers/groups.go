package handlers

import (
	"strings"

	"chatsync/internal/utils"

	"github.com/gofiber/fiber/v2"
)

// CreateGroupRequest represents create group request body
type CreateGroupRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
}

// CreateGroup creates a new group with the caller as its first member
func (h *Handler) CreateGroup(c *fiber.Ctx) error {
	var req CreateGroupRequest
	if msg, ok := h.bind(c, &req); !ok {
		return utils.Fail(c, fiber.StatusBadRequest, utils.CodeBadRequest, msg)
	}

	group, err := h.store.CreateGroup(c.UserContext(), userID(c), strings.TrimSpace(req.Name), strings.TrimSpace(req.Description))
	if err != nil {
		return storeError(c, err, "group")
	}
	return utils.OK(c, fiber.StatusCreated, group)
}

// GetGroups returns all groups with members and recent messages
func (h *Handler) GetGroups(c *fiber.Ctx) error {
	groups, err := h.store.ListGroups(c.UserContext())
	if err != nil {
		return storeError(c, err, "groups")
	}
	return utils.OK(c, fiber.StatusOK, groups)
}

// GetMembership reports whether the caller belongs to a group
func (h *Handler) GetMembership(c *fiber.Ctx) error {
	groupID := c.Params("groupId")
	if !validID(groupID) {
		return utils.Fail(c, fiber.StatusNotFound, utils.CodeNotFound, "group not found")
	}

	isMember, err := h.store.IsMember(c.UserContext(), groupID, userID(c))
	if err != nil {
		return storeError(c, err, "group")
	}
	return utils.OK(c, fiber.StatusOK, fiber.Map{"member": isMember})
}

// JoinGroup adds the caller to a group. Joining an existing membership succeeds.
func (h *Handler) JoinGroup(c *fiber.Ctx) error {
	groupID := c.Params("groupId")
	if !validID(groupID) {
		return utils.Fail(c, fiber.StatusNotFound, utils.CodeNotFound, "group not found")
	}

	joined, err := h.store.JoinGroup(c.UserContext(), groupID, userID(c))
	if err != nil {
		return storeError(c, err, "group")
	}

	message := "Already a member"
	if joined {
		message = "Joined group successfully"
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": message,
		"data":    fiber.Map{"joined": joined},
	})
}
