package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"intake/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-secret"

func decodeJSON(resp *http.Response, out any) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return strings.TrimSpace(string(data))
}

func signToken(t *testing.T, userID uint, secret string, ttl time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(userID), 10),
		"exp": time.Now().Add(ttl).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func newAuthTestApp(handler fiber.Handler) *fiber.App {
	InitMiddleware(&config.Config{JWTSecret: testSecret})
	app := fiber.New()
	app.Get("/protected", handler, func(c *fiber.Ctx) error {
		uid, _ := c.Locals("userID").(uint)
		return c.JSON(fiber.Map{"user_id": uid})
	})
	return app
}

func TestAuthRequired(t *testing.T) {
	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"malformed header", "Token abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.jwt", http.StatusUnauthorized},
		{"valid token", "Bearer " + signToken(t, 7, testSecret, time.Hour), http.StatusOK},
		{"expired token", "Bearer " + signToken(t, 7, testSecret, -time.Hour), http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signToken(t, 7, "other-secret", time.Hour), http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newAuthTestApp(AuthRequired)
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			_ = resp.Body.Close()
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	tests := []struct {
		name       string
		authHeader string
		wantUserID uint
	}{
		{"anonymous passes through", "", 0},
		{"valid token resolves user", "Bearer " + signToken(t, 42, testSecret, time.Hour), 42},
		{"bad token degrades to anonymous", "Bearer invalid", 0},
		{"malformed header degrades to anonymous", "NotBearer x", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newAuthTestApp(OptionalAuth)
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var body struct {
				UserID uint `json:"user_id"`
			}
			require.NoError(t, decodeJSON(resp, &body))
			assert.Equal(t, tt.wantUserID, body.UserID)
		})
	}
}

func TestClientIP(t *testing.T) {
	app := fiber.New()
	app.Get("/ip", func(c *fiber.Ctx) error {
		return c.SendString(ClientIP(c))
	})

	t.Run("first forwarded entry wins", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ip", nil)
		req.Header.Set("X-Forwarded-For", " 203.0.113.9 , 10.0.0.1")
		resp, err := app.Test(req)
		require.NoError(t, err)
		body := readBody(t, resp)
		assert.Equal(t, "203.0.113.9", body)
	})

	t.Run("falls back to socket peer", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ip", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		body := readBody(t, resp)
		assert.NotEmpty(t, body)
	})
}
