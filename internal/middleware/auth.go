package middleware

import (
	"strings"

	"chatsync/internal/utils"

	"github.com/gofiber/fiber/v2"
)

func unauthorized(c *fiber.Ctx, message string) error {
	return utils.Fail(c, fiber.StatusUnauthorized, utils.CodeUnauthorized, message)
}

// tokenFrom looks for an access token in the cookie, the Authorization
// header, then the access_token query parameter (browsers cannot set headers
// on WebSocket upgrades).
func tokenFrom(c *fiber.Ctx) string {
	if token := c.Cookies("token"); token != "" {
		return token
	}
	if header := c.Get(fiber.HeaderAuthorization); header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	return c.Query("access_token")
}

// Auth validates the JWT access token and stores the caller in locals
func Auth(tokens *utils.Tokens) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := tokenFrom(c)
		if tokenString == "" {
			return unauthorized(c, "Unauthorized - No token provided")
		}

		claims, err := tokens.ValidateToken(tokenString, utils.TokenTypeAccess)
		if err != nil {
			return unauthorized(c, "Unauthorized - Invalid token")
		}

		c.Locals("userID", claims.UserID)
		c.Locals("email", claims.Email)

		return c.Next()
	}
}

// GetUserID gets user ID from context
func GetUserID(c *fiber.Ctx) string {
	userID, ok := c.Locals("userID").(string)
	if !ok {
		return ""
	}
	return userID
}
