package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterRejectsOverLimit(t *testing.T) {
	app := fiber.New()
	app.Post("/login", RateLimiter(2, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/login", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/login", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `"code":"rate_limited"`)
}
