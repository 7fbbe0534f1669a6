package handlers

import (
	"chatsync/internal/models"
	"chatsync/internal/utils"

	"github.com/gofiber/fiber/v2"
)

// GetDirectMessages returns every direct message the caller sent or received.
// Clients narrow the list to one peer.
func (h *Handler) GetDirectMessages(c *fiber.Ctx) error {
	messages, err := h.store.DirectMessagesFor(c.UserContext(), userID(c))
	if err != nil {
		return storeError(c, err, "messages")
	}
	return utils.OK(c, fiber.StatusOK, messages)
}

// SendDirectMessage sends a direct message
func (h *Handler) SendDirectMessage(c *fiber.Ctx) error {
	var req models.NewDirectMessage
	if msg, ok := h.bind(c, &req); !ok {
		return utils.Fail(c, fiber.StatusBadRequest, utils.CodeBadRequest, msg)
	}
	if !validID(req.ReceiverID) {
		return utils.Fail(c, fiber.StatusNotFound, utils.CodeNotFound, "Receiver not found")
	}

	message, err := h.store.InsertDirectMessage(c.UserContext(), userID(c), req)
	if err != nil {
		return storeError(c, err, "Receiver")
	}
	return utils.OK(c, fiber.StatusCreated, message)
}

// GetGroupMessages returns the messages of a group the caller belongs to
func (h *Handler) GetGroupMessages(c *fiber.Ctx) error {
	groupID := c.Params("groupId")
	if !validID(groupID) {
		return utils.Fail(c, fiber.StatusNotFound, utils.CodeNotFound, "group not found")
	}

	isMember, err := h.store.IsMember(c.UserContext(), groupID, userID(c))
	if err != nil {
		return storeError(c, err, "group")
	}
	if !isMember {
		return utils.Fail(c, fiber.StatusForbidden, utils.CodeNotAMember, "You are not a member of this group")
	}

	messages, err := h.store.GroupMessages(c.UserContext(), groupID)
	if err != nil {
		return storeError(c, err, "messages")
	}
	return utils.OK(c, fiber.StatusOK, messages)
}

// SendGroupMessage posts to a group the caller belongs to
func (h *Handler) SendGroupMessage(c *fiber.Ctx) error {
	var req models.NewGroupMessage
	if msg, ok := h.bind(c, &req); !ok {
		return utils.Fail(c, fiber.StatusBadRequest, utils.CodeBadRequest, msg)
	}
	if !validID(req.GroupID) {
		return utils.Fail(c, fiber.StatusNotFound, utils.CodeNotFound, "group not found")
	}

	message, err := h.store.InsertGroupMessage(c.UserContext(), userID(c), req)
	if err != nil {
		return storeError(c, err, "group")
	}
	return utils.OK(c, fiber.StatusCreated, message)
}
