package handlers

import (
	"errors"
	"strings"
	"time"

	"chatsync/internal/models"
	"chatsync/internal/store"
	"chatsync/internal/utils"

	"github.com/gofiber/fiber/v2"
)

// RegisterRequest represents registration request body
type RegisterRequest struct {
	Name     string  `json:"name" validate:"required,max=100"`
	Email    string  `json:"email" validate:"required,email"`
	Phone    *string `json:"phone,omitempty" validate:"omitempty,e164"`
	Password string  `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest represents login request body
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Session is returned on register, login and refresh
type Session struct {
	User         models.User `json:"user"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
}

// Register handles user registration
func (h *Handler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if msg, ok := h.bind(c, &req); !ok {
		return utils.Fail(c, fiber.StatusBadRequest, utils.CodeBadRequest, msg)
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		return utils.Fail(c, fiber.StatusInternalServerError, utils.CodeInternal, "Failed to hash password")
	}

	user, err := h.store.CreateUser(c.UserContext(), strings.TrimSpace(req.Name), req.Email, req.Phone, hashedPassword)
	if err != nil {
		return storeError(c, err, "user")
	}

	return h.startSession(c, fiber.StatusCreated, user)
}

// Login handles user login
func (h *Handler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if msg, ok := h.bind(c, &req); !ok {
		return utils.Fail(c, fiber.StatusBadRequest, utils.CodeBadRequest, msg)
	}

	user, err := h.store.GetUserByEmail(c.UserContext(), strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, store.ErrNotFound) {
		return utils.Fail(c, fiber.StatusUnauthorized, utils.CodeUnauthorized, "Invalid email or password")
	}
	if err != nil {
		return storeError(c, err, "user")
	}

	if !utils.CheckPassword(user.Password, req.Password) {
		return utils.Fail(c, fiber.StatusUnauthorized, utils.CodeUnauthorized, "Invalid email or password")
	}

	return h.startSession(c, fiber.StatusOK, user)
}

// GetMe returns current authenticated user
func (h *Handler) GetMe(c *fiber.Ctx) error {
	user, err := h.store.GetUser(c.UserContext(), userID(c))
	if errors.Is(err, store.ErrNotFound) {
		// Token outlived the account
		return utils.Fail(c, fiber.StatusUnauthorized, utils.CodeUnauthorized, "User not found")
	}
	if err != nil {
		return storeError(c, err, "user")
	}
	return utils.OK(c, fiber.StatusOK, user)
}

// Logout clears the auth cookies
func (h *Handler) Logout(c *fiber.Ctx) error {
	h.setCookie(c, "token", "", -1)
	h.setCookie(c, "refresh_token", "", -1)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Logged out successfully",
	})
}

// RefreshToken issues a new token pair from a refresh token
func (h *Handler) RefreshToken(c *fiber.Ctx) error {
	refreshToken := c.Cookies("refresh_token")
	if refreshToken == "" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = c.BodyParser(&body)
		refreshToken = body.RefreshToken
	}
	if refreshToken == "" {
		return utils.Fail(c, fiber.StatusUnauthorized, utils.CodeUnauthorized, "Refresh token not found")
	}

	claims, err := h.tokens.ValidateToken(refreshToken, utils.TokenTypeRefresh)
	if err != nil {
		return utils.Fail(c, fiber.StatusUnauthorized, utils.CodeUnauthorized, "Invalid refresh token")
	}

	user, err := h.store.GetUser(c.UserContext(), claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return utils.Fail(c, fiber.StatusUnauthorized, utils.CodeUnauthorized, "User not found")
	}
	if err != nil {
		return storeError(c, err, "user")
	}

	return h.startSession(c, fiber.StatusOK, user)
}

// startSession issues tokens, sets them as HTTP-only cookies and returns them
func (h *Handler) startSession(c *fiber.Ctx, status int, user models.User) error {
	token, err := h.tokens.GenerateToken(user.ID, user.Email)
	if err != nil {
		return utils.Fail(c, fiber.StatusInternalServerError, utils.CodeInternal, "Failed to generate token")
	}

	refreshToken, err := h.tokens.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		return utils.Fail(c, fiber.StatusInternalServerError, utils.CodeInternal, "Failed to generate refresh token")
	}

	h.setCookie(c, "token", token, h.tokens.AccessTTL())
	h.setCookie(c, "refresh_token", refreshToken, h.tokens.RefreshTTL())

	return utils.OK(c, status, Session{
		User:         user,
		AccessToken:  token,
		RefreshToken: refreshToken,
	})
}

func (h *Handler) setCookie(c *fiber.Ctx, name, value string, ttl time.Duration) {
	maxAge := int(ttl / time.Second)
	if ttl < 0 {
		maxAge = -1 // Delete cookie
	}
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		HTTPOnly: true,
		Secure:   c.Protocol() == "https",
		SameSite: "Lax",
		MaxAge:   maxAge,
	})
}
