package handlers

import (
	"context"
	"errors"
	"log"

	"chatsync/internal/models"
	"chatsync/internal/realtime"
	"chatsync/internal/store"
	"chatsync/internal/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Store is the data access the handlers need
type Store interface {
	CreateUser(ctx context.Context, name, email string, phone *string, passwordHash string) (models.User, error)
	GetUser(ctx context.Context, id string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	ListUsers(ctx context.Context, except string) ([]models.User, error)
	CreateGroup(ctx context.Context, creatorID, name, description string) (models.Group, error)
	ListGroups(ctx context.Context) ([]models.Group, error)
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
	JoinGroup(ctx context.Context, groupID, userID string) (bool, error)
	DirectMessagesFor(ctx context.Context, userID string) ([]models.DirectMessage, error)
	GroupMessages(ctx context.Context, groupID string) ([]models.GroupMessage, error)
	InsertDirectMessage(ctx context.Context, senderID string, in models.NewDirectMessage) (models.DirectMessage, error)
	InsertGroupMessage(ctx context.Context, senderID string, in models.NewGroupMessage) (models.GroupMessage, error)
}

var _ Store = (*store.Store)(nil)

// Handler serves the platform API
type Handler struct {
	store    Store
	tokens   *utils.Tokens
	hub      *realtime.Hub
	validate *validator.Validate
}

// New creates the API handlers
func New(s Store, tokens *utils.Tokens, hub *realtime.Hub) *Handler {
	return &Handler{
		store:    s,
		tokens:   tokens,
		hub:      hub,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// storeError maps store failures onto HTTP responses
func storeError(c *fiber.Ctx, err error, what string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return utils.Fail(c, fiber.StatusNotFound, utils.CodeNotFound, what+" not found")
	case errors.Is(err, store.ErrNotAMember):
		return utils.Fail(c, fiber.StatusForbidden, utils.CodeNotAMember, "You are not a member of this group")
	case errors.Is(err, store.ErrEmailTaken):
		return utils.Fail(c, fiber.StatusConflict, utils.CodeConflict, "Email already registered")
	}
	log.Printf("%s: %v", what, err)
	return utils.Fail(c, fiber.StatusInternalServerError, utils.CodeInternal, "Database error")
}

// bind parses and validates a request body. On failure it returns the
// message to send back.
func (h *Handler) bind(c *fiber.Ctx, out interface{}) (string, bool) {
	if err := c.BodyParser(out); err != nil {
		return "Invalid request body", false
	}
	if err := h.validate.Struct(out); err != nil {
		return validationMessage(err), false
	}
	return "", true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return "Invalid field " + verrs[0].Field() + ": failed " + verrs[0].Tag()
	}
	return "Invalid request body"
}

// validID rejects path ids that cannot be row identifiers
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func userID(c *fiber.Ctx) string {
	id, _ := c.Locals("userID").(string)
	return id
}
